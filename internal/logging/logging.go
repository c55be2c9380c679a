// Package logging builds the zerolog logger handed to services.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New returns a logger writing to w at the given level. Format "json" emits
// one JSON object per line; anything else uses the human console writer.
// An unrecognised level falls back to info.
func New(level, format string, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	out := w
	if format != "json" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}
