// Package logging writes single-line JSON log entries.
package logging

import (
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"
)

// Logger emits one JSON object per line with "ts" and "level" filled in.
// It is safe for concurrent use.
type Logger struct {
	mu  sync.Mutex
	enc *json.Encoder
	loc *time.Location
}

// New returns a Logger writing to w with timestamps rendered in loc.
func New(w io.Writer, loc *time.Location) *Logger {
	if loc == nil {
		loc = time.UTC
	}
	return &Logger{enc: json.NewEncoder(w), loc: loc}
}

// Default logs to stdout in UTC.
func Default() *Logger {
	return New(os.Stdout, time.UTC)
}

// Info logs an informational event.
func (l *Logger) Info(event string, fields map[string]any) {
	l.write("info", event, fields)
}

// Warn logs an event worth attention that did not fail the operation.
func (l *Logger) Warn(event string, fields map[string]any) {
	l.write("warn", event, fields)
}

// Error logs a failed event; err is rendered under "error".
func (l *Logger) Error(event string, err error, fields map[string]any) {
	entry := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		entry[k] = v
	}
	if err != nil {
		entry["error"] = err.Error()
	}
	l.write("error", event, entry)
}

func (l *Logger) write(level, event string, fields map[string]any) {
	entry := make(map[string]any, len(fields)+3)
	for k, v := range fields {
		entry[k] = v
	}
	entry["ts"] = time.Now().In(l.loc).Format(time.RFC3339Nano)
	entry["level"] = level
	entry["msg"] = event

	l.mu.Lock()
	defer l.mu.Unlock()
	_ = l.enc.Encode(entry)
}
