package logger

import (
	"context"
	"time"
)

type contextKey struct{}

var logContextKey = contextKey{}

// LogContext holds per-command logging fields. The *Ctx functions prepend
// them to every record.
type LogContext struct {
	TraceID   string
	SpanID    string
	Command   string // CLI command (cat, put, cp, bench, ...)
	Backend   string // storage backend (local, memory, s3, badger)
	Path      string // object the command operates on
	StartTime time.Time
}

// WithContext returns a copy of ctx carrying lc.
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext returns the LogContext of ctx, or nil.
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a LogContext for a command.
func NewLogContext(command string) *LogContext {
	return &LogContext{
		Command:   command,
		StartTime: time.Now(),
	}
}

// Clone returns a copy of lc.
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	c := *lc
	return &c
}

// WithBackend returns a copy with the backend set.
func (lc *LogContext) WithBackend(name string) *LogContext {
	c := lc.Clone()
	if c != nil {
		c.Backend = name
	}
	return c
}

// WithPath returns a copy with the path set.
func (lc *LogContext) WithPath(path string) *LogContext {
	c := lc.Clone()
	if c != nil {
		c.Path = path
	}
	return c
}

// WithTrace returns a copy with trace info set.
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	c := lc.Clone()
	if c != nil {
		c.TraceID = traceID
		c.SpanID = spanID
	}
	return c
}

// DurationMs returns the time since StartTime in milliseconds.
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
