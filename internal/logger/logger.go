// Package logger provides leveled, module-tagged logging for riskcam.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

// Level is the severity of a log line.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelSilent
)

var levelNames = map[Level]string{
	LevelDebug:  "DEBUG",
	LevelInfo:   "INFO",
	LevelWarn:   "WARN",
	LevelError:  "ERROR",
	LevelSilent: "SILENT",
}

var levelColors = map[Level]string{
	LevelDebug: "\033[36m",
	LevelInfo:  "\033[32m",
	LevelWarn:  "\033[33m",
	LevelError: "\033[31m",
}

const resetColor = "\033[0m"

// Logger writes leveled lines prefixed with a module name.
type Logger struct {
	mu       sync.Mutex
	level    Level
	useColor bool
	out      *log.Logger
}

var (
	defaultMu     sync.RWMutex
	defaultLogger = New(LevelInfo, os.Stderr, false)
)

// Init replaces the global logger. Safe to call more than once; the last call wins.
func Init(level Level, output io.Writer, useColor bool) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = New(level, output, useColor)
}

// Default returns the global logger.
func Default() *Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// New creates a Logger writing to output (stderr when nil).
func New(level Level, output io.Writer, useColor bool) *Logger {
	if output == nil {
		output = os.Stderr
	}
	return &Logger{
		level:    level,
		useColor: useColor,
		out:      log.New(output, "", log.Ldate|log.Ltime|log.Lmicroseconds),
	}
}

// SetLevel changes the minimum level that is written.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// Level returns the current minimum level.
func (l *Logger) Level() Level {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

func (l *Logger) logf(level Level, module, format string, args ...any) {
	l.mu.Lock()
	current, color := l.level, l.useColor
	l.mu.Unlock()

	if level < current || level >= LevelSilent {
		return
	}

	prefix := "[" + levelNames[level] + "]"
	if color {
		prefix = levelColors[level] + prefix + resetColor
	}
	if module != "" {
		prefix += " [" + module + "]"
	}
	l.out.Printf("%s %s", prefix, fmt.Sprintf(format, args...))
}

func (l *Logger) Debug(module, format string, args ...any) { l.logf(LevelDebug, module, format, args...) }
func (l *Logger) Info(module, format string, args ...any)  { l.logf(LevelInfo, module, format, args...) }
func (l *Logger) Warn(module, format string, args ...any)  { l.logf(LevelWarn, module, format, args...) }
func (l *Logger) Error(module, format string, args ...any) { l.logf(LevelError, module, format, args...) }

// Debug logs through the global logger.
func Debug(module, format string, args ...any) { Default().Debug(module, format, args...) }

// Info logs through the global logger.
func Info(module, format string, args ...any) { Default().Info(module, format, args...) }

// Warn logs through the global logger.
func Warn(module, format string, args ...any) { Default().Warn(module, format, args...) }

// Error logs through the global logger.
func Error(module, format string, args ...any) { Default().Error(module, format, args...) }

// ParseLevel parses a level name such as "debug" or "WARN".
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	case "silent", "none":
		return LevelSilent, nil
	default:
		return LevelInfo, fmt.Errorf("invalid log level: %s", s)
	}
}

// String returns the upper-case name of the level.
func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "UNKNOWN"
}
