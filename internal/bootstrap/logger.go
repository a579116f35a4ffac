package bootstrap

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// NewLogger returns the process logger. Unknown levels fall back to info.
func NewLogger(w io.Writer, service, version, level string) zerolog.Logger {
	if w == nil {
		w = os.Stdout
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).
		Level(lvl).
		With().
		Timestamp().
		Str("service", service).
		Str("version", version).
		Logger()
}
