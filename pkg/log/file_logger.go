package log

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
)

// FileLogger appends CBOR-encoded events to a file.
// It is safe for concurrent use.
//
// Each event is encoded in full before it is written, so a failed encode
// never leaves a partial record in the file. Events that cannot be
// encoded or written, and events logged after Close, are counted by
// Dropped.
type FileLogger struct {
	mu      sync.Mutex
	file    *os.File
	path    string
	errLog  *slog.Logger
	dropped uint64
	failing bool
	closed  bool
}

// FileLoggerOption configures a FileLogger.
type FileLoggerOption func(*FileLogger)

// WithErrorLog reports encode and write failures to logger. A run of
// failures is reported once, when it starts.
func WithErrorLog(logger *slog.Logger) FileLoggerOption {
	return func(l *FileLogger) { l.errLog = logger }
}

// NewFileLogger opens path for appending, creating it with mode 0644.
func NewFileLogger(path string, opts ...FileLoggerOption) (*FileLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	l := &FileLogger{file: f, path: path}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Log writes the event. It never blocks the caller on a failure.
func (l *FileLogger) Log(event Event) {
	data, encErr := EncodeEvent(event)

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		l.dropped++
		return
	}
	err := encErr
	if err == nil {
		_, err = l.file.Write(data)
	}
	if err != nil {
		l.dropped++
		if !l.failing && l.errLog != nil {
			l.errLog.Warn("event log write failed", "path", l.path, "error", err)
		}
		l.failing = true
		return
	}
	l.failing = false
}

// Dropped returns the number of events that were not written.
func (l *FileLogger) Dropped() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dropped
}

// Close closes the file. Calling Close more than once is harmless.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("close event log %s: %w", l.path, err)
	}
	return nil
}

var _ Logger = (*FileLogger)(nil)
