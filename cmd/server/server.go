package main

import (
	"log/slog"
	"os"

	"github.com/steveyiyo/tutor-voice/internal/config"
	h "github.com/steveyiyo/tutor-voice/internal/http"
	"github.com/steveyiyo/tutor-voice/internal/logging"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := logging.New(cfg)
	r := h.NewRouter(h.NewDeps(cfg, log))
	log.Info("relay listening", slog.String("port", cfg.Port), slog.Bool("mint_configured", cfg.OpenAIKey != ""))
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Error("relay stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
