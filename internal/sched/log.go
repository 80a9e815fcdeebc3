package sched

import (
	"os"

	"github.com/rs/zerolog"
)

// NewLogger returns a zerolog.Logger writing structured console output,
// the replacement for the source's bare printk calls.
func NewLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"}).
		Level(lvl).
		With().Timestamp().Logger()
}
