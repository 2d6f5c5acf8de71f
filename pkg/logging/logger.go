package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/zoff-tech/queue-admin/pkg/config"
)

// New builds the process logger. Unknown levels fall back to info.
func New(cfg config.LoggingSettings) zerolog.Logger {
	return NewWithWriter(cfg, os.Stderr)
}

func NewWithWriter(cfg config.LoggingSettings, w io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	// Use ConsoleWriter for local development for more readable logs.
	if cfg.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	return zerolog.New(w).Level(level).With().Timestamp().Str("service", "queue-admin").Logger()
}
