// Package logger provides the level-gated logger used throughout yroomd. It
// is an injectable value rather than the package-level globals the backend
// this was generalized from used, so tests can capture output and callers
// can run multiple independently-configured instances in one process.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

// LogLevel represents the logging level.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel maps an env-var style level name to a LogLevel, defaulting to
// LevelInfo for anything unrecognized.
func ParseLevel(s string) LogLevel {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger writes level-gated, prefixed log lines to an underlying
// *log.Logger.
type Logger struct {
	level LogLevel
	out   *log.Logger
}

// New returns a Logger writing to w, gated at level.
func New(w io.Writer, level LogLevel) *Logger {
	return &Logger{level: level, out: log.New(w, "", log.Ldate|log.Ltime)}
}

// Default returns a Logger writing to stderr, reading LOG_LEVEL from the
// environment if set.
func Default() *Logger {
	return New(os.Stderr, ParseLevel(os.Getenv("LOG_LEVEL")))
}

func (l *Logger) log(level LogLevel, tag, format string, v ...interface{}) {
	if level < l.level {
		return
	}
	l.out.Printf("[%s] %s", tag, fmt.Sprintf(format, v...))
}

// Debugf logs a debug message (only shown when the logger's level is Debug).
func (l *Logger) Debugf(format string, v ...interface{}) { l.log(LevelDebug, "DEBUG", format, v...) }

// Infof logs an info message.
func (l *Logger) Infof(format string, v ...interface{}) { l.log(LevelInfo, "INFO", format, v...) }

// Warnf logs a warning message.
func (l *Logger) Warnf(format string, v ...interface{}) { l.log(LevelWarn, "WARN", format, v...) }

// Errorf logs an error message.
func (l *Logger) Errorf(format string, v ...interface{}) { l.log(LevelError, "ERROR", format, v...) }

// Fatalf logs a fatal message and exits the program.
func (l *Logger) Fatalf(format string, v ...interface{}) {
	l.out.Fatalf("[FATAL] %s", fmt.Sprintf(format, v...))
}

// With returns a copy of l at a different level, sharing the same
// destination writer.
func (l *Logger) With(level LogLevel) *Logger {
	return &Logger{level: level, out: l.out}
}
