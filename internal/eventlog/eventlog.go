// Package eventlog writes the per-session event log: a plain-text,
// append-only file with one ISO-8601-timestamped line per lifecycle event.
// It is separate from the structured application log so the file stays
// readable by support tooling that greps for ERROR: lines.
package eventlog

import (
	"fmt"
	"io"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// Log is a session-scoped event log. Safe for concurrent use.
type Log struct {
	mu   sync.Mutex
	sink io.WriteCloser
	now  func() time.Time
}

// Open creates (or appends to) the session event log at path. The lumberjack
// sink caps runaway sessions at maxSizeMB per file.
func Open(path string, maxSizeMB int) *Log {
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	return &Log{
		sink: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    maxSizeMB,
			MaxBackups: 1,
		},
		now: time.Now,
	}
}

// NewWithSink builds a Log writing to an arbitrary sink. Used by tests.
func NewWithSink(sink io.WriteCloser) *Log {
	return &Log{sink: sink, now: time.Now}
}

// Eventf appends one event line.
func (l *Log) Eventf(format string, args ...interface{}) {
	l.write(fmt.Sprintf(format, args...))
}

// Errorf appends one ERROR:-prefixed event line.
func (l *Log) Errorf(format string, args ...interface{}) {
	l.write("ERROR: " + fmt.Sprintf(format, args...))
}

func (l *Log) write(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	// Write failures are swallowed: the event log must never take the
	// session down with it.
	fmt.Fprintf(l.sink, "%s %s\n", l.now().Format(timeLayout), msg)
}

// Close closes the underlying sink.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sink.Close()
}
