package internal

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger builds the process logger: human-readable console output in dev,
// JSON elsewhere. Invalid levels fall back to info.
func NewLogger(w io.Writer, env string, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	if env != "prod" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}

	logger := zerolog.New(w).Level(lvl).With().Timestamp().Logger()
	if err != nil {
		logger.Warn().Str("value", level).Msg("invalid log level, using info")
	}
	return logger
}
