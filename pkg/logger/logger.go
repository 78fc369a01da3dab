package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New returns the process logger. Dev gets a human-readable console writer,
// everything else emits JSON lines.
func New(env, level string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	var out io.Writer = os.Stdout
	if env == "dev" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
		if env == "dev" {
			lvl = zerolog.DebugLevel
		}
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}
