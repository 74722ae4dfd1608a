// Package logging builds the process logger from configuration.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/steveyiyo/tutor-voice/internal/config"
)

// New returns a slog.Logger writing to stdout and, when cfg.LogFile is set,
// to a size-rotated file. It also installs the logger as the slog default.
func New(cfg config.Config) *slog.Logger {
	return NewTo(os.Stdout, cfg)
}

// NewTo is New with console output sent to w.
func NewTo(w io.Writer, cfg config.Config) *slog.Logger {
	out := w
	if cfg.LogFile != "" {
		out = io.MultiWriter(w, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.LogMaxSizeMB,
			MaxBackups: cfg.LogMaxBackups,
			MaxAge:     cfg.LogMaxAgeDays,
			Compress:   true,
		})
	}
	logger := slog.New(handler(out, cfg.LogFormat, cfg.LogLevel))
	slog.SetDefault(logger)
	return logger
}

func handler(w io.Writer, format, level string) slog.Handler {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	if strings.EqualFold(format, "console") {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
