// Package logging provides the leveled component loggers used across the store.
//
// Every line has the shape
//
//	2026/01/02 15:04:05 INFO  | repository      | saved task t-1
//
// Loggers share one underlying *log.Logger; With derives a logger for another
// component without reopening the sink.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Level is the minimum severity a logger emits.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the label printed in front of each line.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "?"
	}
}

// ParseLevel converts a config string to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("invalid log level: %s. must be one of debug, info, warn, error", s)
	}
}

// Logger writes leveled lines for one component.
type Logger struct {
	name   string
	level  Level
	logger *log.Logger
}

// New creates a logger writing to w.
func New(w io.Writer, component string, level Level) *Logger {
	return &Logger{
		name:   component,
		level:  level,
		logger: log.New(w, "", log.LstdFlags),
	}
}

// Discard returns a logger that drops everything. Intended for tests.
func Discard() *Logger {
	return New(io.Discard, "", LevelError+1)
}

// Options configures Open.
type Options struct {
	Level string
	// File, when set, receives a copy of every line and is rotated by size.
	File      string
	MaxSizeMB int
}

// Open builds the root logger from options. The returned closer releases the
// log file, if any.
func Open(opts Options) (*Logger, io.Closer, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}

	if opts.File == "" {
		return New(os.Stderr, "flequit", level), io.NopCloser(nil), nil
	}

	maxSize := opts.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 10
	}
	rotator := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    maxSize,
		MaxBackups: 3,
		MaxAge:     28,
	}
	return New(io.MultiWriter(os.Stderr, rotator), "flequit", level), rotator, nil
}

// With returns a logger for another component sharing the same sink.
func (l *Logger) With(component string) *Logger {
	if l == nil {
		return Discard()
	}
	return &Logger{name: component, level: l.level, logger: l.logger}
}

// Level returns the minimum level the logger emits.
func (l *Logger) Level() Level {
	return l.level
}

func (l *Logger) Debugf(format string, args ...any) { l.log(LevelDebug, format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.log(LevelInfo, format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.log(LevelWarn, format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.log(LevelError, format, args...) }

func (l *Logger) log(level Level, format string, args ...any) {
	if l == nil || level < l.level {
		return
	}
	l.logger.Printf("%-5s | %-15s | %s", level, l.name, fmt.Sprintf(format, args...))
}
