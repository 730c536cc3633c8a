// Package log provides slog setup helpers shared by all greenlight binaries.
package log

import (
	"log/slog"
	"os"
)

// Setup installs the process-wide default logger. Level names are parsed
// case-insensitively; an unknown name falls back to info.
func Setup(logLevel string) {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: ParseLevel(logLevel),
	})))
}

// ParseLevel maps a level name (debug, info, warn, error) to its slog level.
func ParseLevel(logLevel string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return slog.LevelInfo
	}

	return level
}

func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}
