// Package logger provides structured logging for the document server
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logger configuration
type Config struct {
	Level      string // debug, info, warn, error
	Pretty     bool   // pretty-print for development
	Output     io.Writer
	WithCaller bool
}

// New creates the root structured logger.
func New(cfg Config) zerolog.Logger {
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}
	}

	zlog := zerolog.New(output).
		With().
		Timestamp().
		Str("service", "docserve").
		Logger()

	if cfg.WithCaller {
		zlog = zlog.With().Caller().Logger()
	}
	return zlog
}

// Component returns a sub-logger tagged with a component name, used for
// the http, store and engine subsystems.
func Component(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str("component", name).Logger()
}
