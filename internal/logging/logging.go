package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New builds the root logger. Debug level or format "console" selects the
// human-readable writer; everything else logs JSON.
func New(level, format string, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stdout
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano

	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	if lvl == zerolog.DebugLevel || strings.EqualFold(format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "2006-01-02 15:04:05"}
	}
	logger := zerolog.New(out).Level(lvl).With().Timestamp().Str("service", "fuel-commission").Logger()
	if err != nil {
		logger.Warn().Str("level", level).Msg("invalid log level, defaulting to info")
	}
	return logger
}
