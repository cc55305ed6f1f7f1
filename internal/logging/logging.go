// Package logging provides the structured logger and trace ID plumbing used
// across the service.
package logging

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type traceIDKey struct{}

// Logger wraps logrus with a fixed service field and trace-aware helpers.
type Logger struct {
	*logrus.Logger
	service string
}

// New creates a JSON logger for the named service.
func New(service string) *Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	return &Logger{Logger: l, service: service}
}

// SetLevelFromString applies a textual level, defaulting to info on garbage.
func (l *Logger) SetLevelFromString(level string) {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	l.SetLevel(parsed)
}

// Entry returns an entry carrying the service name and, when present, the
// trace ID from ctx.
func (l *Logger) Entry(ctx context.Context) *logrus.Entry {
	entry := l.WithField("service", l.service)
	if traceID := GetTraceID(ctx); traceID != "" {
		entry = entry.WithField("trace_id", traceID)
	}
	return entry
}

// LogRequest records one completed HTTP request.
func (l *Logger) LogRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
	entry := l.Entry(ctx).WithFields(logrus.Fields{
		"method":      method,
		"path":        path,
		"status":      status,
		"duration_ms": duration.Milliseconds(),
	})
	if status >= http.StatusInternalServerError {
		entry.Error("http request")
		return
	}
	entry.Info("http request")
}

// NewTraceID generates a fresh request trace ID.
func NewTraceID() string {
	return uuid.NewString()
}

// WithTraceID attaches a trace ID to the context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, traceID)
}

// GetTraceID returns the context's trace ID, or "" when none was attached.
func GetTraceID(ctx context.Context) string {
	if traceID, ok := ctx.Value(traceIDKey{}).(string); ok {
		return traceID
	}
	return ""
}
