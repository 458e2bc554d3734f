// Package logger provides structured JSON logging with request correlation.
// No response bodies or header values are logged; request_id and
// request_type enable traceability across the optimization pipeline.
package logger

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"time"
)

type contextKey string

const RequestIDKey contextKey = "request_id"

// LogEntry is the structured log payload (JSON) for one pipeline invocation.
type LogEntry struct {
	Time        string  `json:"time"`
	Level       string  `json:"level"`
	RequestID   string  `json:"request_id,omitempty"`
	RequestType string  `json:"request_type,omitempty"`
	Strategy    string  `json:"strategy,omitempty"`
	Status      int     `json:"status,omitempty"`
	DurationMs  float64 `json:"duration_ms,omitempty"`
	Message     string  `json:"message,omitempty"`
	Error       string  `json:"error,omitempty"`
}

// RequestLog writes a single JSON line for one request as it passes through
// the optimization pipeline.
func RequestLog(out *os.File, reqID, requestType, strategy string, status int, duration time.Duration, errMsg string) {
	level := "info"
	if status >= 500 {
		level = "error"
	} else if status >= 400 {
		level = "warn"
	}
	entry := LogEntry{
		Time:        time.Now().UTC().Format(time.RFC3339Nano),
		Level:       level,
		RequestID:   reqID,
		RequestType: requestType,
		Strategy:    strategy,
		Status:      status,
		DurationMs:  float64(duration.Milliseconds()),
		Error:       errMsg,
	}
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(entry)
}

// FromContext returns the request ID from context, or empty string.
func FromContext(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// WithRequestID returns a context carrying the given request ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// StdLogger returns a slog.Logger for non-request logs (startup, shutdown,
// retraining, cleanup). JSON when LOG_JSON=1.
func StdLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if os.Getenv("LOG_JSON") == "1" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
