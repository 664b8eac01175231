// Package logger is a thin structured-logging layer over logrus. Fields are
// carried as strings so call sites stay free of logrus types.
package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// LogField represents a structured log field with concrete types
type LogField struct {
	Key   string
	Value string
}

// Logger interface with simplified, focused methods
type Logger interface {
	Info(msg string, fields ...LogField)
	Error(msg string, fields ...LogField)
	Debug(msg string, fields ...LogField)
	Warn(msg string, fields ...LogField)
	WithFields(fields ...LogField) Logger
	WithCorrelationID(id string) Logger
}

// Config represents logger configuration
type Config struct {
	Level   Level
	Format  string
	Service string
	Output  io.Writer // Optional: defaults to os.Stdout if nil
}

type logger struct {
	logrus *logrus.Logger
	fields []LogField
}

// NewLogger creates a new logger instance with the given configuration
func NewLogger(config Config) Logger {
	l := logrus.New()

	if config.Format == "text" {
		l.SetFormatter(&logrus.TextFormatter{DisableColors: true})
	} else {
		l.SetFormatter(&logrus.JSONFormatter{})
	}

	if config.Output != nil {
		l.SetOutput(config.Output)
	} else {
		l.SetOutput(os.Stdout)
	}

	l.SetLevel(config.Level.logrusLevel())

	var base []LogField
	if config.Service != "" {
		base = []LogField{{Key: "service", Value: config.Service}}
	}

	return &logger{logrus: l, fields: base}
}

// Nop returns a logger that discards everything. Handy in tests.
func Nop() Logger {
	return NewLogger(Config{Level: ErrorLevel, Output: io.Discard})
}

// WithFields returns a new logger with additional fields (immutable)
func (l *logger) WithFields(fields ...LogField) Logger {
	merged := make([]LogField, 0, len(l.fields)+len(fields))
	merged = append(merged, l.fields...)
	merged = append(merged, fields...)
	return &logger{logrus: l.logrus, fields: merged}
}

// WithCorrelationID returns a new logger with correlation ID field
func (l *logger) WithCorrelationID(id string) Logger {
	return l.WithFields(CorrelationIDField(id))
}

func (l *logger) Info(msg string, fields ...LogField) {
	l.entry(fields).Info(msg)
}

func (l *logger) Error(msg string, fields ...LogField) {
	l.entry(fields).Error(msg)
}

func (l *logger) Debug(msg string, fields ...LogField) {
	l.entry(fields).Debug(msg)
}

func (l *logger) Warn(msg string, fields ...LogField) {
	l.entry(fields).Warn(msg)
}

func (l *logger) entry(fields []LogField) *logrus.Entry {
	out := make(logrus.Fields, len(l.fields)+len(fields))
	for _, f := range l.fields {
		out[f.Key] = f.Value
	}
	for _, f := range fields {
		out[f.Key] = f.Value
	}
	return l.logrus.WithFields(out)
}
