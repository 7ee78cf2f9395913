// Package ldlog provides a level-filtered logging sink, one instance per
// subsystem, replacing the teacher's bracketed-prefix log.Printf
// convention with structured zerolog fields.
package ldlog

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Level mirrors zerolog's level vocabulary so callers don't need to
// import zerolog directly just to configure a minimum level.
type Level = zerolog.Level

const (
	Debug = zerolog.DebugLevel
	Info  = zerolog.InfoLevel
	Warn  = zerolog.WarnLevel
	Error = zerolog.ErrorLevel
	None  = zerolog.Disabled
)

// Loggers holds one named sink per SDK subsystem, all sharing the same
// underlying writer and minimum level.
type Loggers struct {
	DataSource *Logger
	Evaluation *Logger
	Events     *Logger
	General    *Logger
}

// Logger is a thin wrapper around a zerolog.Logger scoped to one subsystem.
type Logger struct {
	z zerolog.Logger
}

// NewLoggers builds a Loggers set writing to w at minimum level.
func NewLoggers(w io.Writer, level Level) Loggers {
	if w == nil {
		w = os.Stderr
	}
	base := zerolog.New(w).Level(level).With().Timestamp().Logger()
	return Loggers{
		DataSource: &Logger{z: base.With().Str("subsystem", "datasource").Logger()},
		Evaluation: &Logger{z: base.With().Str("subsystem", "evaluation").Logger()},
		Events:     &Logger{z: base.With().Str("subsystem", "events").Logger()},
		General:    &Logger{z: base.With().Str("subsystem", "general").Logger()},
	}
}

// DefaultLoggers builds a Loggers set writing to stderr at Info level,
// the SDK's out-of-the-box configuration.
func DefaultLoggers() Loggers {
	return NewLoggers(os.Stderr, Info)
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.z.Debug().Msgf(format, args...)
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.z.Info().Msgf(format, args...)
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.z.Warn().Msgf(format, args...)
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.z.Error().Msgf(format, args...)
}
