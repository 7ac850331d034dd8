package core

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

// Logger interface for structured logging
// Implementations can provide custom logging behavior (e.g., integration with logrus, zap, etc.)
type Logger interface {
	// Debug logs a debug message with optional fields
	Debug(msg string, fields ...Field)

	// Info logs an info message with optional fields
	Info(msg string, fields ...Field)

	// Warn logs a warning message with optional fields
	Warn(msg string, fields ...Field)

	// Error logs an error message with optional fields
	Error(msg string, fields ...Field)
}

// Field represents a key-value pair for structured logging
type Field struct {
	Key   string
	Value any
}

// F creates a new Field with the given key and value
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// DefaultLogger writes leveled lines through a standard library *log.Logger.
type DefaultLogger struct {
	out   *log.Logger
	debug bool
}

// NewDefaultLogger creates a DefaultLogger writing to stderr.
// Debug lines are dropped unless debug is true.
func NewDefaultLogger(debug bool) *DefaultLogger {
	return NewDefaultLoggerTo(os.Stderr, debug)
}

// NewDefaultLoggerTo creates a DefaultLogger writing to w.
func NewDefaultLoggerTo(w io.Writer, debug bool) *DefaultLogger {
	return &DefaultLogger{
		out:   log.New(w, "uthread ", log.LstdFlags|log.Lmicroseconds),
		debug: debug,
	}
}

// Debug logs a debug message
func (l *DefaultLogger) Debug(msg string, fields ...Field) {
	if !l.debug {
		return
	}
	l.log("DEBUG", msg, fields...)
}

// Info logs an info message
func (l *DefaultLogger) Info(msg string, fields ...Field) {
	l.log("INFO", msg, fields...)
}

// Warn logs a warning message
func (l *DefaultLogger) Warn(msg string, fields ...Field) {
	l.log("WARN", msg, fields...)
}

// Error logs an error message
func (l *DefaultLogger) Error(msg string, fields ...Field) {
	l.log("ERROR", msg, fields...)
}

func (l *DefaultLogger) log(level, msg string, fields ...Field) {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", level, msg)
	if len(fields) > 0 {
		b.WriteString(" {")
		for i, f := range fields {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s: %v", f.Key, f.Value)
		}
		b.WriteString("}")
	}
	l.out.Println(b.String())
}

// NoOpLogger is a logger that discards all log messages
// Useful for tests or when logging is not desired
type NoOpLogger struct{}

// NewNoOpLogger creates a new NoOpLogger
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

func (l *NoOpLogger) Debug(msg string, fields ...Field) {}
func (l *NoOpLogger) Info(msg string, fields ...Field)  {}
func (l *NoOpLogger) Warn(msg string, fields ...Field)  {}
func (l *NoOpLogger) Error(msg string, fields ...Field) {}
