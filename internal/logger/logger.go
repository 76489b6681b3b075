// Package logger builds the application-wide structured logger.
package logger

import (
	"log/slog"
	"os"
	"strings"

	"github.com/ventasync-reconciler/internal/config"
)

// NewLogger creates a JSON slog logger at the configured level. Debug level
// additionally records source locations.
func NewLogger(cfg *config.Config) *slog.Logger {
	level := parseLevel(cfg.Logging.Level)

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	})

	logger := slog.New(handler)
	logger.Info("logger initialized", "level", level, "app", cfg.Application.Name)

	return logger
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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
