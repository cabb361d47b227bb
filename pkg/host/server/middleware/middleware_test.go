package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/cors"
)

type recordingLogger struct {
	mu      sync.Mutex
	entries []string
}

func (l *recordingLogger) record(level string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, level)
}

func (l *recordingLogger) Infow(string, ...any)  { l.record("info") }
func (l *recordingLogger) Warnw(string, ...any)  { l.record("warn") }
func (l *recordingLogger) Errorw(string, ...any) { l.record("error") }

func ok() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequestMetadataGeneratesAndEchoesIDs(t *testing.T) {
	var seenRequestID, seenTraceID string
	handler := RequestMetadata()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenRequestID = RequestIDFromContext(r.Context())
		seenTraceID = TraceIDFromContext(r.Context())
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/swagger/", nil))

	if seenRequestID == "" || seenRequestID != rr.Header().Get("X-Request-Id") {
		t.Fatalf("expected generated request id echoed, got %q / %q", seenRequestID, rr.Header().Get("X-Request-Id"))
	}
	if seenTraceID != seenRequestID {
		t.Fatalf("expected trace id to default to request id")
	}
}

func TestRequestMetadataKeepsIncomingTrace(t *testing.T) {
	handler := RequestMetadata()(ok())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Trace-Id", "trace-123")

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if got := rr.Header().Get("X-Trace-Id"); got != "trace-123" {
		t.Fatalf("expected incoming trace id kept, got %q", got)
	}
}

func TestSecurityHeaders(t *testing.T) {
	rr := httptest.NewRecorder()
	SecurityHeaders()(ok()).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("expected nosniff header")
	}
	if rr.Header().Get("X-Frame-Options") != "SAMEORIGIN" {
		t.Fatalf("unexpected frame options %q", rr.Header().Get("X-Frame-Options"))
	}
}

func TestBodyLimitRejectsLargeBodies(t *testing.T) {
	var status int
	write := func(w http.ResponseWriter, s int, title, detail, traceID, instance string) {
		status = s
		w.WriteHeader(s)
	}
	handler := BodyLimit(4, write)(ok())

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/products", strings.NewReader("0123456789")))
	if status != http.StatusRequestEntityTooLarge || rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rr.Code)
	}
}

func TestRateLimitBlocksAndSkipsOptions(t *testing.T) {
	calls := 0
	allow := func(string, time.Time) bool {
		calls++
		return calls == 1
	}
	handler := RateLimit(allow, func(*http.Request) string { return "client" }, time.Now, nil)(ok())

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected first request allowed, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodOptions, "/", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected OPTIONS to bypass limiter, got %d", rr.Code)
	}
}

func TestCORSRejectsUnknownOrigin(t *testing.T) {
	c := cors.New(cors.Options{AllowedOrigins: []string{"https://allowed.example.com"}})
	handler := CORS(c, nil)(ok())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://allowed.example.com")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected allowed origin to pass, got %d", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "https://allowed.example.com" {
		t.Fatalf("expected CORS header on allowed origin")
	}
}

func TestLoggingObservesStatusAndLevel(t *testing.T) {
	logger := &recordingLogger{}
	var observed int
	handler := Logging(logger, func(_ *http.Request, status int, _ time.Duration) { observed = status }, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}),
	)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))
	if observed != http.StatusNotFound {
		t.Fatalf("expected observed status 404, got %d", observed)
	}
	if len(logger.entries) != 1 || logger.entries[0] != "warn" {
		t.Fatalf("expected one warn entry, got %v", logger.entries)
	}
}

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	Chain(ok(), mark("outer"), nil, mark("inner")).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if strings.Join(order, ",") != "outer,inner" {
		t.Fatalf("unexpected order %v", order)
	}
}
