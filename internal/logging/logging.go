// Package logging provides a small leveled logger on top of zerolog.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Level controls which messages are emitted.
type Level int

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

// Format selects the output encoding.
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

// Config holds logger settings.
type Config struct {
	Level  Level
	Format Format
	Output io.Writer // defaults to stderr
}

// Logger wraps a zerolog.Logger with printf-style level methods.
type Logger struct {
	logger zerolog.Logger
	level  Level
}

// NewLogger constructs a Logger from the given configuration.
func NewLogger(c Config) *Logger {
	out := c.Output
	if out == nil {
		out = os.Stderr
	}
	if c.Format == FormatText {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}
	return &Logger{
		logger: zerolog.New(out).Level(zerologLevel(c.Level)).With().Timestamp().Logger(),
		level:  c.Level,
	}
}

// Enabled reports whether messages at the given level would be emitted.
func (l *Logger) Enabled(level Level) bool {
	return level <= l.level
}

func (l *Logger) Debugf(format string, args ...any) {
	l.logger.Debug().Msgf(format, args...)
}

func (l *Logger) Infof(format string, args ...any) {
	l.logger.Info().Msgf(format, args...)
}

func (l *Logger) Warnf(format string, args ...any) {
	l.logger.Warn().Msgf(format, args...)
}

func (l *Logger) Errorf(format string, args ...any) {
	l.logger.Error().Msgf(format, args...)
}

func zerologLevel(l Level) zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelInfo:
		return zerolog.InfoLevel
	case LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}
