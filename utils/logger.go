// Package utils holds the small shared pieces the crawl, ingest, and
// refresh pipelines all lean on: leveled logging, the worker pool that
// bounds listing fan-out, and retry/backoff for flaky operations.
package utils

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// ANSI color codes for the level labels.
const (
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorCyan   = "\033[36m"
	colorReset  = "\033[0m"
)

// Logger writes timestamped, color-labeled lines. Info, Warn, and Debug
// go to stdout; Error goes to stderr so crawl output stays pipeable.
type Logger struct {
	mu  sync.Mutex
	out io.Writer
	err io.Writer
}

// NewLogger creates a Logger writing to stdout/stderr.
func NewLogger() *Logger {
	return &Logger{out: os.Stdout, err: os.Stderr}
}

func (l *Logger) emit(w io.Writer, color, level, format string, args ...any) {
	ts := time.Now().Format("2006-01-02 15:04:05")
	msg := fmt.Sprintf(format, args...)

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(w, "[%s] %s%s%s %s\n", ts, color, level, colorReset, msg)
}

func (l *Logger) Info(format string, args ...any) {
	l.emit(l.out, colorGreen, "INFO ", format, args...)
}

func (l *Logger) Warn(format string, args ...any) {
	l.emit(l.out, colorYellow, "WARN ", format, args...)
}

func (l *Logger) Error(format string, args ...any) {
	l.emit(l.err, colorRed, "ERROR", format, args...)
}

func (l *Logger) Debug(format string, args ...any) {
	l.emit(l.out, colorCyan, "DEBUG", format, args...)
}
