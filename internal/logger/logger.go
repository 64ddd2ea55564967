// Package logger provides leveled logging for docuchat.
//
// Pipeline messages (uploads, retrieval, chat turns) are written at debug,
// info and warn level and only appear when verbose mode is enabled with the
// --verbose flag. Errors are always written.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Level orders log messages by severity.
type Level int

// Log levels, least severe first.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the tag printed in front of a message.
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
		return fmt.Sprintf("LEVEL(%d)", int(l))
	}
}

var (
	mu         sync.RWMutex
	verbose    bool
	output     io.Writer = os.Stderr
	timestamps bool
	now        = time.Now
)

// SetVerbose enables or disables debug, info and warn output.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput sets the destination for log lines. Defaults to os.Stderr.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

// SetTimestamps prefixes every line with the local time when enabled.
func SetTimestamps(enabled bool) {
	mu.Lock()
	defer mu.Unlock()
	timestamps = enabled
}

// Enabled reports whether a message at level would be written.
func Enabled(level Level) bool {
	mu.RLock()
	defer mu.RUnlock()
	return enabled(level)
}

func enabled(level Level) bool {
	return verbose || level >= LevelError
}

func logf(level Level, format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if !enabled(level) {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if timestamps {
		fmt.Fprintf(output, "%s [%s] %s\n", now().Format("15:04:05.000"), level, msg)
		return
	}
	fmt.Fprintf(output, "[%s] %s\n", level, msg)
}

// Debug logs pipeline detail.
func Debug(format string, args ...any) { logf(LevelDebug, format, args...) }

// Info logs a completed step.
func Info(format string, args ...any) { logf(LevelInfo, format, args...) }

// Warn logs a degraded but non-fatal condition.
func Warn(format string, args ...any) { logf(LevelWarn, format, args...) }

// Error logs a failure. It is written regardless of verbose mode.
func Error(format string, args ...any) { logf(LevelError, format, args...) }

// Section prints a header that groups the messages of one operation.
func Section(name string) {
	mu.RLock()
	defer mu.RUnlock()
	if verbose {
		fmt.Fprintf(output, "\n=== %s ===\n", name)
	}
}
