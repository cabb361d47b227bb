// Package middleware holds the functional HTTP middleware used by the docs
// host. Each constructor returns a func(http.Handler) http.Handler so callers
// can compose them in any order.
package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/cors"
)

// Logger represents the subset of logging behaviour required by the middleware.
type Logger interface {
	Infow(msg string, keysAndValues ...any)
	Warnw(msg string, keysAndValues ...any)
	Errorw(msg string, keysAndValues ...any)
}

// ProblemWriter emits problem+json responses.
type ProblemWriter func(w http.ResponseWriter, status int, title, detail, traceID, instance string)

// ObserveFunc receives the outcome of a completed request.
type ObserveFunc func(r *http.Request, status int, elapsed time.Duration)

// AllowFunc determines whether a client is permitted to proceed based on a key and timestamp.
type AllowFunc func(key string, now time.Time) bool

// ClientKey derives the rate-limit key for a request.
type ClientKey func(*http.Request) string

// Chain applies middleware so the first argument is outermost.
func Chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] != nil {
			h = mws[i](h)
		}
	}
	return h
}

// RequestMetadata ensures every request has IDs and the response echoes them back.
func RequestMetadata() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req, requestID, traceID := EnsureRequestIDs(r)
			w.Header().Set("X-Request-Id", requestID)
			w.Header().Set("X-Trace-Id", traceID)
			next.ServeHTTP(w, req)
		})
	}
}

// SecurityHeaders applies hardening headers. Framing stays same-origin so
// the docs UIs can be embedded by the host's own pages.
func SecurityHeaders() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			headers := w.Header()
			headers.Set("X-Content-Type-Options", "nosniff")
			headers.Set("X-Frame-Options", "SAMEORIGIN")
			headers.Set("Referrer-Policy", "no-referrer")
			headers.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
			next.ServeHTTP(w, r)
		})
	}
}

// BodyLimit rejects requests exceeding limit and caps readable bytes.
func BodyLimit(limit int64, write ProblemWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > limit {
				writeProblem(w, r, write, http.StatusRequestEntityTooLarge, "Payload Too Large", fmt.Sprintf("Request body exceeds %d bytes", limit))
				return
			}
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit enforces per-client rate limiting using the supplied allow/key functions.
func RateLimit(allow AllowFunc, key ClientKey, now func() time.Time, write ProblemWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if allow == nil || key == nil {
			return next
		}
		if now == nil {
			now = time.Now
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions || allow(key(r), now()) {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("Retry-After", "1")
			writeProblem(w, r, write, http.StatusTooManyRequests, "Too Many Requests", "Rate limit exceeded")
		})
	}
}

// CORS applies handler and rejects disallowed origins with a problem response.
func CORS(handler *cors.Cors, write ProblemWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if handler == nil {
			return next
		}
		corsHandler := handler.Handler(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			if origin != "" && !handler.OriginAllowed(r) {
				writeProblem(w, r, write, http.StatusForbidden, "Not allowed by CORS", fmt.Sprintf("Origin %s is not allowed", origin))
				return
			}
			corsHandler.ServeHTTP(w, r)
		})
	}
}

// Logging records structured request information and reports each completed
// request to observe.
func Logging(logger Logger, observe ObserveFunc, clientAddr ClientKey) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if logger == nil && observe == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			writer := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(writer, r)

			duration := time.Since(start)
			status := writer.status
			if status == 0 {
				status = http.StatusOK
			}
			if observe != nil {
				observe(r, status, duration)
			}
			if logger == nil {
				return
			}

			fields := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"durationMs", float64(duration.Microseconds()) / 1000.0,
				"bytesWritten", writer.bytes,
			}
			if rid := RequestIDFromContext(r.Context()); rid != "" {
				fields = append(fields, "requestId", rid)
			}
			if tid := TraceIDFromContext(r.Context()); tid != "" {
				fields = append(fields, "traceId", tid)
			}
			if clientAddr != nil {
				if remote := clientAddr(r); remote != "" {
					fields = append(fields, "remoteAddr", remote)
				}
			}

			switch {
			case status >= 500:
				logger.Errorw("http request completed", fields...)
			case status >= 400:
				logger.Warnw("http request completed", fields...)
			default:
				logger.Infow("http request completed", fields...)
			}
		})
	}
}

func writeProblem(w http.ResponseWriter, r *http.Request, write ProblemWriter, status int, title, detail string) {
	if write == nil {
		http.Error(w, http.StatusText(status), status)
		return
	}
	write(w, status, title, detail, TraceIDFromContext(r.Context()), r.URL.Path)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusRecorder) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

func (w *statusRecorder) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
