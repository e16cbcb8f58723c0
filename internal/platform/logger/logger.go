package logger

import (
	"log/slog"
	"os"
)

// New returns the root structured logger. Services and handlers receive it by
// injection; nothing logs through the global default.
func New() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
