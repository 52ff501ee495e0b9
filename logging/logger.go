// Package logging provides the structured logger used across every
// component: resilience primitives, extractors, curation, and the runner.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger wraps zerolog with a fixed "component" field so every log line
// from a given package is attributable without callers repeating it.
type Logger struct {
	z zerolog.Logger
}

// init configures the global zerolog level and writer once, from the
// environment, the same way every teacher-family service does it.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339

	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if os.Getenv("ENVIRONMENT") != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		})
	}
}

// New returns a component-scoped logger.
func New(component string) *Logger {
	return &Logger{z: log.With().Str("component", component).Logger()}
}

// With attaches additional key/value pairs, returning a child logger —
// used to add system/entity/pipeline context at call sites.
func (l *Logger) With(kv ...string) *Logger {
	ctx := l.z.With()
	for i := 0; i+1 < len(kv); i += 2 {
		ctx = ctx.Str(kv[i], kv[i+1])
	}
	return &Logger{z: ctx.Logger()}
}

func (l *Logger) Info() *zerolog.Event  { return l.z.Info() }
func (l *Logger) Warn() *zerolog.Event  { return l.z.Warn() }
func (l *Logger) Error() *zerolog.Event { return l.z.Error() }
func (l *Logger) Debug() *zerolog.Event { return l.z.Debug() }
