package http

import (
	"log/slog"

	"github.com/steveyiyo/tutor-voice/internal/config"
	"github.com/steveyiyo/tutor-voice/internal/core/gemini"
	"github.com/steveyiyo/tutor-voice/internal/core/openai"
	"github.com/steveyiyo/tutor-voice/internal/core/relay"
	"github.com/steveyiyo/tutor-voice/internal/http/handlers"
	"github.com/steveyiyo/tutor-voice/internal/repo/memory"

	"github.com/gin-gonic/gin"
)

// Deps are the collaborators behind the routes.
type Deps struct {
	Relay  *relay.Service
	Solver relay.Solver
	Log    *slog.Logger
}

// NewDeps wires production collaborators from cfg.
func NewDeps(cfg config.Config, log *slog.Logger) Deps {
	repo := memory.NewCredentialRepo()
	minter := openai.NewMinter(cfg.OpenAIKey, cfg.OpenAIModel, cfg.OpenAIVoice, cfg.OpenAISessionsURL)
	return Deps{
		Relay:  relay.NewService(repo, minter, cfg.ICEServers),
		Solver: newSolver(cfg, log),
		Log:    log,
	}
}

func newSolver(cfg config.Config, log *slog.Logger) relay.Solver {
	switch cfg.SolverProvider {
	case "openai":
		if cfg.OpenAIKey == "" {
			return nil
		}
		return openai.NewSolver(cfg.OpenAIKey, cfg.SolverModel, "")
	default:
		if cfg.GeminiKey == "" {
			return nil
		}
		model := cfg.SolverModel
		if model == "" {
			model = "gemini-2.0-flash"
		}
		s, err := gemini.NewSolver(cfg.GeminiKey, model)
		if err != nil {
			log.Warn("gemini solver unavailable", slog.String("error", err.Error()))
			return nil
		}
		return s
	}
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.Default()
	sh := handlers.NewSessionHandler(d.Relay, d.Log)
	ah := handlers.NewAnswerHandler(d.Solver, d.Log)
	hh := handlers.NewHealthHandler(d.Relay)
	r.POST("/session", sh.Create)
	r.POST("/answer", ah.Solve)
	r.GET("/healthz", hh.Get)
	return r
}
