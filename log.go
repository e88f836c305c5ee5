package oraexec

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger creates the logger used by the library, an unknown level means info
// Parameters:
// @w: destination, os.Stdout if nil
// @level: zerolog level name (debug, info, warn, error)
func NewLogger(w io.Writer, level string) *zerolog.Logger {
	if w == nil {
		w = os.Stdout
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	l := zerolog.New(w).Level(lvl).With().Timestamp().Str("lib", "oraexec").Logger()
	return &l
}

// NewConsoleLogger human readable variant of NewLogger
func NewConsoleLogger(w io.Writer, level string) *zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	return NewLogger(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}, level)
}

func loggerOrNop(l *zerolog.Logger) *zerolog.Logger {
	if l == nil {
		nop := zerolog.Nop()
		return &nop
	}
	return l
}
