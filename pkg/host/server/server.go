// Package server wires the docs host: OpenAPI documents, the Swagger UI and
// ReDoc pages, health endpoints and metrics behind the shared middleware
// chain.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/theroutercompany/apidocs/internal/openapi"
	"github.com/theroutercompany/apidocs/internal/platform/health"
	"github.com/theroutercompany/apidocs/pkg/docs/redoc"
	"github.com/theroutercompany/apidocs/pkg/docs/swaggerui"
	hostconfig "github.com/theroutercompany/apidocs/pkg/host/config"
	hostmetrics "github.com/theroutercompany/apidocs/pkg/host/metrics"
	"github.com/theroutercompany/apidocs/pkg/host/problem"
	"github.com/theroutercompany/apidocs/pkg/host/server/middleware"
	pkglog "github.com/theroutercompany/apidocs/pkg/log"
)

type readinessReporter interface {
	Readiness(ctx context.Context) health.Report
}

// Option configures optional server dependencies.
type Option func(*Server)

// WithLogger overrides the logger used by the server. Defaults to the shared logger.
func WithLogger(logger pkglog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithReadiness overrides the readiness reporter. By default readiness
// builds every document version.
func WithReadiness(checker readinessReporter) Option {
	return func(s *Server) {
		s.healthChecker = checker
	}
}

// WithMetrics exposes registry on /metrics and records request counters.
func WithMetrics(registry *hostmetrics.Registry) Option {
	return func(s *Server) {
		s.metrics = registry
	}
}

// WithClock overrides the time source used by the rate limiter.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// Server coordinates HTTP routes and lifecycle hooks.
type Server struct {
	cfg           hostconfig.Config
	router        *http.ServeMux
	httpServer    *http.Server
	handler       http.Handler
	documents     openapi.DocumentProvider
	healthChecker readinessReporter
	metrics       *hostmetrics.Registry
	rateLimiter   *rateLimiter
	cors          *cors.Cors
	swagger       *swaggerui.UI
	redoc         *redoc.UI
	docsPrefix    string
	bootTime      time.Time
	now           func() time.Time
	logger        pkglog.Logger
}

// New constructs a server serving documents under the configured UIs.
func New(cfg hostconfig.Config, documents openapi.DocumentProvider, opts ...Option) (*Server, error) {
	if documents == nil {
		return nil, errors.New("document provider required")
	}

	s := &Server{
		cfg:         cfg,
		router:      http.NewServeMux(),
		documents:   documents,
		rateLimiter: newRateLimiter(cfg.RateLimit.Window.AsDuration(), cfg.RateLimit.Max),
		cors:        buildCORS(cfg.CORS.AllowedOrigins),
		docsPrefix:  strings.Trim(cfg.SwaggerUI.RoutePrefix, "/"),
		bootTime:    time.Now().UTC(),
		now:         time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.logger == nil {
		s.logger = pkglog.Named("server")
	}
	if s.healthChecker == nil {
		s.healthChecker = health.NewChecker(documents, cfg.Readiness.Timeout.AsDuration())
	}
	if !cfg.Metrics.Enabled {
		s.metrics = nil
	}
	if s.docsPrefix == "" {
		s.docsPrefix = "swagger"
	}

	if err := s.buildUIs(); err != nil {
		return nil, err
	}
	s.mountRoutes()

	var docs http.Handler = s.router
	if s.redoc != nil {
		docs = s.redoc.Middleware(docs)
	}
	if s.swagger != nil {
		docs = s.swagger.Middleware(docs)
	}

	var rateLimit func(http.Handler) http.Handler
	if s.rateLimiter != nil {
		rateLimit = middleware.RateLimit(s.rateLimiter.allow, clientKey, s.now, problem.Write)
	}

	handler := middleware.Chain(docs,
		middleware.RequestMetadata(),
		middleware.SecurityHeaders(),
		middleware.Logging(s.logger, s.observe, clientAddress),
		middleware.CORS(s.cors, problem.Write),
		rateLimit,
		middleware.BodyLimit(cfg.HTTP.MaxBodyBytes, problem.Write),
	)

	http2Server := &http2.Server{}
	s.handler = h2c.NewHandler(handler, http2Server)
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := http2.ConfigureServer(s.httpServer, http2Server); err != nil {
		s.logger.Errorw("failed to configure http2 server", "error", err)
	}
	return s, nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start begins serving HTTP requests until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, listener)
}

// Serve accepts connections on listener until ctx is cancelled, then shuts
// down within the configured timeout.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Infow("http server listening", "addr", listener.Addr().String())
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.HTTP.ShutdownTimeout.AsDuration())
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Errorw("http server shutdown failed", "error", err)
			return err
		}
		return ctx.Err()
	case err := <-errCh:
		if err != nil {
			s.logger.Errorw("http server stopped with error", "error", err)
		}
		return err
	}
}

// Shutdown gracefully stops the HTTP server using the provided context.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) buildUIs() error {
	if s.cfg.SwaggerUI.Enabled {
		opts := s.cfg.SwaggerUI.Options
		if len(opts.ConfigObject.URLs) == 0 {
			names := make(map[string]string, len(s.cfg.Documents.Versions))
			for _, doc := range s.cfg.Documents.Versions {
				names[doc.Version] = doc.Name
			}
			for _, version := range s.documents.Versions() {
				name := names[version]
				if name == "" {
					name = version
				}
				opts.SwaggerEndpoint(version+"/swagger.json", name)
			}
		}
		ui, err := swaggerui.New(opts)
		if err != nil {
			return fmt.Errorf("swagger ui: %w", err)
		}
		s.swagger = ui
	}
	if s.cfg.ReDoc.Enabled {
		ui, err := redoc.New(s.cfg.ReDoc.Options)
		if err != nil {
			return fmt.Errorf("redoc: %w", err)
		}
		s.redoc = ui
	}
	return nil
}

func (s *Server) mountRoutes() {
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /readyz", s.handleReadiness)
	s.router.HandleFunc(fmt.Sprintf("GET /%s/{version}/swagger.json", s.docsPrefix), s.handleDocument)
	s.router.HandleFunc("GET /openapi.json", s.handleDocument)
	if s.metrics != nil {
		s.router.Handle("GET /metrics", s.metrics.Handler())
	}
}

// observe feeds request metrics with a bounded route label.
func (s *Server) observe(r *http.Request, status int, elapsed time.Duration) {
	s.metrics.ObserveRequest(s.routeLabel(r.URL.Path), status, elapsed)
}

func (s *Server) routeLabel(path string) string {
	trimmed := strings.Trim(path, "/")
	switch {
	case trimmed == "health" || trimmed == "readyz" || trimmed == "metrics" || trimmed == "openapi.json":
		return trimmed
	case strings.HasPrefix(trimmed+"/", s.docsPrefix+"/") && strings.HasSuffix(trimmed, "/swagger.json"):
		return "document"
	case s.swagger != nil && hasPrefixSegment(trimmed, s.cfg.SwaggerUI.RoutePrefix):
		return "swaggerui"
	case s.redoc != nil && hasPrefixSegment(trimmed, s.cfg.ReDoc.RoutePrefix):
		return "redoc"
	default:
		return "other"
	}
}

func hasPrefixSegment(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := struct {
		Status    string  `json:"status"`
		Uptime    float64 `json:"uptime"`
		Timestamp string  `json:"timestamp"`
		Version   string  `json:"version,omitempty"`
	}{
		Status:    "ok",
		Uptime:    time.Since(s.bootTime).Seconds(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   s.cfg.Version,
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	report := s.healthChecker.Readiness(r.Context())

	statusCode := http.StatusOK
	if !report.Ready() {
		statusCode = http.StatusServiceUnavailable
	}

	response := struct {
		health.Report
		RequestID string `json:"requestId,omitempty"`
		TraceID   string `json:"traceId,omitempty"`
	}{
		Report:    report,
		RequestID: middleware.RequestIDFromContext(r.Context()),
		TraceID:   middleware.TraceIDFromContext(r.Context()),
	}
	writeJSON(w, statusCode, response)
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	version := r.PathValue("version")
	if version == "" {
		versions := s.documents.Versions()
		if len(versions) == 0 {
			problem.Write(w, http.StatusServiceUnavailable, "OpenAPI Unavailable", "no document versions configured", middleware.TraceIDFromContext(r.Context()), r.URL.Path)
			return
		}
		version = versions[0]
	}

	data, err := s.documents.Document(r.Context(), version)
	if err != nil {
		traceID := middleware.TraceIDFromContext(r.Context())
		if errors.Is(err, openapi.ErrUnknownVersion) {
			problem.Write(w, http.StatusNotFound, "Not Found", err.Error(), traceID, r.URL.Path)
			return
		}
		s.logger.Errorw("openapi document unavailable", "error", err, "version", version)
		problem.Write(w, http.StatusServiceUnavailable, "OpenAPI Unavailable", err.Error(), traceID, r.URL.Path)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.Warnw("failed to write openapi response", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func clientKey(r *http.Request) string {
	if addr := clientAddress(r); addr != "" {
		return addr
	}
	return "global"
}

func clientAddress(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}

func buildCORS(origins []string) *cors.Cors {
	allowAll := len(origins) == 0
	allowed := make(map[string]struct{}, len(origins))
	for _, origin := range origins {
		o := strings.TrimSpace(origin)
		if o == "*" {
			allowAll = true
		}
		if o != "" {
			allowed[o] = struct{}{}
		}
	}

	return cors.New(cors.Options{
		AllowedMethods:       []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowedHeaders:       []string{"*"},
		ExposedHeaders:       []string{"X-Request-Id", "X-Trace-Id"},
		OptionsSuccessStatus: http.StatusNoContent,
		AllowOriginRequestFunc: func(_ *http.Request, origin string) bool {
			if origin == "" || allowAll {
				return true
			}
			_, ok := allowed[origin]
			return ok
		},
	})
}
