// Package log provides leveled, categorized logging for tdmcli.
// It wraps log/slog with a category field and key=value pairs.
// Only warnings and errors are written unless debug logging is enabled
// via --debug or TDMCLI_DEBUG.
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
)

// Level represents log severity.
type Level = slog.Level

const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// Category groups related log messages.
type Category string

const (
	CatStore   Category = "store"   // Registry load/save
	CatConfig  Category = "config"  // Configuration loading
	CatCopy    Category = "copy"    // Tree copy, move and removal
	CatArchive Category = "archive" // Archive pack/unpack
	CatEngine  Category = "engine"  // Template registry operations
	CatUpdate  Category = "update"  // Remote version check
)

var (
	mu     sync.RWMutex
	level  = new(slog.LevelVar)
	logger = newLogger(os.Stderr)
)

func init() {
	level.Set(LevelWarn)
}

func newLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Init directs log output to w at the given minimum level.
func Init(w io.Writer, minLevel Level) {
	mu.Lock()
	defer mu.Unlock()
	logger = newLogger(w)
	level.Set(minLevel)
}

// SetMinLevel sets the minimum log level.
func SetMinLevel(l Level) {
	level.Set(l)
}

// Enabled reports whether messages at l are written.
func Enabled(l Level) bool {
	mu.RLock()
	defer mu.RUnlock()
	return logger.Enabled(context.Background(), l)
}

// Debug logs at debug level.
func Debug(cat Category, msg string, fields ...any) {
	log(LevelDebug, cat, msg, fields...)
}

// Info logs at info level.
func Info(cat Category, msg string, fields ...any) {
	log(LevelInfo, cat, msg, fields...)
}

// Warn logs at warning level.
func Warn(cat Category, msg string, fields ...any) {
	log(LevelWarn, cat, msg, fields...)
}

// Error logs at error level.
func Error(cat Category, msg string, fields ...any) {
	log(LevelError, cat, msg, fields...)
}

// ErrorErr logs an error with the error value.
func ErrorErr(cat Category, msg string, err error, fields ...any) {
	if err != nil {
		fields = append(fields, "error", err.Error())
	} else {
		fields = append(fields, "error", "<nil>")
	}
	log(LevelError, cat, msg, fields...)
}

func log(l Level, cat Category, msg string, fields ...any) {
	mu.RLock()
	lg := logger
	mu.RUnlock()

	// Handle odd field count - append orphan key with no value
	if len(fields)%2 != 0 {
		fields = append(fields, "<missing>")
	}
	args := append([]any{"cat", string(cat)}, fields...)
	lg.Log(context.Background(), l, msg, args...)
}
