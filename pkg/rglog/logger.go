// Package rglog is the module's structured logger; the traverser holds one
// (a no-op logger by default). It wraps zerolog instead of hand-rolling a writer: component
// sub-loggers carry a "component" field the way the teacher's own
// StructuredLogger carried a service name, but the event building and level
// filtering are zerolog's.
package rglog

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Level mirrors zerolog's levels under names this module's callers use
// elsewhere (planner, traverser, emit).
type Level int8

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) zerolog() zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Config configures the root logger. Zero value logs JSON at debug level
// (LevelDebug is Level's zero value) to stderr.
type Config struct {
	Level  Level
	Output io.Writer
	Pretty bool
}

// Logger is a component-scoped wrapper around zerolog.Logger.
type Logger struct {
	zl zerolog.Logger
}

// New builds the root Logger from cfg.
func New(cfg Config) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	zl := zerolog.New(out).Level(cfg.Level.zerolog()).With().Timestamp().Logger()
	return &Logger{zl: zl}
}

// Component returns a sub-logger tagged with the given component name, the
// way traverser.New tags its "traverser" sub-logger, so log lines can be
// filtered by subsystem without separate Logger instances.
func (l *Logger) Component(name string) *Logger {
	return &Logger{zl: l.zl.With().Str("component", name).Logger()}
}

// With returns a sub-logger with the given key/value pairs attached to
// every subsequent event, mirroring StructuredLogger.With.
func (l *Logger) With(fields map[string]interface{}) *Logger {
	ctx := l.zl.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &Logger{zl: ctx.Logger()}
}

func (l *Logger) Debug() *zerolog.Event { return l.zl.Debug() }
func (l *Logger) Info() *zerolog.Event  { return l.zl.Info() }
func (l *Logger) Warn() *zerolog.Event  { return l.zl.Warn() }
func (l *Logger) Error() *zerolog.Event { return l.zl.Error() }

// Nop returns a Logger that discards everything, for tests and callers that
// don't want to configure one.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}
