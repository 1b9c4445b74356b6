package logger

import (
	"log/slog"
	"os"
)

// NewTestLogger creates a logger for tests, quiet at WARN unless the
// PLAYD_TEST_DEBUG environment variable is set.
func NewTestLogger() *slog.Logger {
	cfg := Config{Level: slog.LevelWarn, Format: "text"}
	if os.Getenv("PLAYD_TEST_DEBUG") != "" {
		cfg.Level = slog.LevelDebug
	}
	return NewLogger(cfg)
}
