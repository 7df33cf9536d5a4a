// Package logger provides leveled logging for the certd daemon.
//
// Log lines go to stderr so they never interfere with the user-facing
// output on stdout (tables, JSON). The daemon's renewal loop logs every
// attempt outcome here; the output package is reserved for interactive
// command results.
//
// Format:
//
//	[LEVEL] 2026-02-03 10:30:45 message key=value ...
//
// By default only Warn and Error are shown; Init(true) enables Debug and
// Info for the --verbose flag.
package logger

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level represents a logging severity level.
type Level int

// Log levels from least to most severe.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the string representation of the log level.
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
		return "UNKNOWN"
	}
}

// Logger handles leveled logging with thread-safe output.
type Logger struct {
	mu     sync.Mutex
	level  Level
	output io.Writer
	now    func() time.Time
}

var std = &Logger{
	level:  LevelWarn,
	output: os.Stderr,
	now:    time.Now,
}

// Init configures the global logger from the --verbose flag.
// Verbose enables Debug and Info; otherwise only Warn and Error are shown.
func Init(verbose bool) {
	if verbose {
		SetLevel(LevelDebug)
	} else {
		SetLevel(LevelWarn)
	}
}

// SetLevel sets the minimum log level for the global logger.
func SetLevel(level Level) {
	std.mu.Lock()
	defer std.mu.Unlock()
	std.level = level
}

// SetOutput sets the output destination. Useful for testing; default is stderr.
func SetOutput(w io.Writer) {
	std.mu.Lock()
	defer std.mu.Unlock()
	std.output = w
}

// GetLevel returns the current log level.
func GetLevel() Level {
	std.mu.Lock()
	defer std.mu.Unlock()
	return std.level
}

func (l *Logger) write(level Level, msg string, fields map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.level {
		return
	}

	var b strings.Builder
	b.WriteString("[")
	b.WriteString(level.String())
	b.WriteString("] ")
	b.WriteString(l.now().Format("2006-01-02 15:04:05"))
	b.WriteString(" ")
	b.WriteString(msg)

	if len(fields) > 0 {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, fields[k])
		}
	}
	b.WriteString("\n")

	_, _ = io.WriteString(l.output, b.String())
}

// Debug logs a debug message. Only shown in verbose mode.
func Debug(format string, args ...interface{}) {
	std.write(LevelDebug, fmt.Sprintf(format, args...), nil)
}

// Info logs an informational message. Only shown in verbose mode.
func Info(format string, args ...interface{}) {
	std.write(LevelInfo, fmt.Sprintf(format, args...), nil)
}

// Warn logs a warning message.
func Warn(format string, args ...interface{}) {
	std.write(LevelWarn, fmt.Sprintf(format, args...), nil)
}

// Error logs an error message.
func Error(format string, args ...interface{}) {
	std.write(LevelError, fmt.Sprintf(format, args...), nil)
}

// DebugFields logs a debug message with structured key=value fields.
func DebugFields(msg string, fields map[string]interface{}) {
	std.write(LevelDebug, msg, fields)
}

// InfoFields logs an informational message with structured key=value fields.
func InfoFields(msg string, fields map[string]interface{}) {
	std.write(LevelInfo, msg, fields)
}

// WarnFields logs a warning message with structured key=value fields.
func WarnFields(msg string, fields map[string]interface{}) {
	std.write(LevelWarn, msg, fields)
}

// ErrorFields logs an error message with structured key=value fields.
func ErrorFields(msg string, fields map[string]interface{}) {
	std.write(LevelError, msg, fields)
}

// LogError logs an error with an additional context message.
func LogError(err error, msg string) {
	if err == nil {
		return
	}
	std.write(LevelError, fmt.Sprintf("%s: %v", msg, err), nil)
}
