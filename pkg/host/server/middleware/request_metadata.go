package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type contextKey string

const (
	requestIDKey contextKey = "requestID"
	traceIDKey   contextKey = "traceID"
)

// EnsureRequestIDs returns a request carrying request and trace IDs in its
// context and headers. Incoming X-Request-Id and X-Trace-Id values are kept;
// a missing trace ID reuses the request ID.
func EnsureRequestIDs(r *http.Request) (*http.Request, string, string) {
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		return r, rid, TraceIDFromContext(r.Context())
	}

	requestID := r.Header.Get("X-Request-Id")
	if requestID == "" {
		requestID = uuid.NewString()
		r.Header.Set("X-Request-Id", requestID)
	}

	traceID := r.Header.Get("X-Trace-Id")
	if traceID == "" {
		traceID = requestID
		r.Header.Set("X-Trace-Id", traceID)
	}

	ctx := context.WithValue(r.Context(), requestIDKey, requestID)
	ctx = context.WithValue(ctx, traceIDKey, traceID)
	return r.WithContext(ctx), requestID, traceID
}

// RequestIDFromContext returns the request ID set by EnsureRequestIDs.
func RequestIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey).(string)
	return v
}

// TraceIDFromContext returns the trace ID set by EnsureRequestIDs.
func TraceIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(traceIDKey).(string)
	return v
}
