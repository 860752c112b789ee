// Package logging builds the service's zerolog logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const serviceName = "orderdesk"

// New returns a logger writing to w at the given level. format "console"
// selects the human-readable writer, anything else emits JSON lines.
func New(w io.Writer, level, format string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", level, err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	if strings.EqualFold(format, "console") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(lvl).With().
		Timestamp().
		Str("service", serviceName).
		Logger(), nil
}

// Must is New writing to stderr, falling back to info level on a bad level.
func Must(level, format string) zerolog.Logger {
	log, err := New(os.Stderr, level, format)
	if err != nil {
		log, _ = New(os.Stderr, "info", format)
		log.Warn().Err(err).Msg("falling back to info level")
	}
	return log
}
