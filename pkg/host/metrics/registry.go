// Package metrics wraps a Prometheus registry and the collectors the docs
// host exports.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultNamespace = "apidocs"

// Option configures behaviour of a Registry.
type Option func(*options)

type options struct {
	namespace                 string
	registerDefaultCollectors bool
}

// WithNamespace overrides the namespace prefixed to host collectors.
func WithNamespace(namespace string) Option {
	return func(o *options) {
		o.namespace = strings.TrimSpace(namespace)
	}
}

// WithoutDefaultCollectors disables automatic registration of Go and process
// collectors.
func WithoutDefaultCollectors() Option {
	return func(o *options) {
		o.registerDefaultCollectors = false
	}
}

// Registry wraps a Prometheus registry together with the host collectors.
type Registry struct {
	namespace string
	registry  *prometheus.Registry

	requests       *prometheus.CounterVec
	latency        *prometheus.HistogramVec
	documentBuilds *prometheus.CounterVec
}

// NewRegistry creates a registry with the host collectors registered.
func NewRegistry(opts ...Option) *Registry {
	settings := options{
		namespace:                 defaultNamespace,
		registerDefaultCollectors: true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&settings)
		}
	}

	reg := prometheus.NewRegistry()
	if settings.registerDefaultCollectors {
		reg.MustRegister(collectors.NewGoCollector())
		reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	r := &Registry{
		namespace: settings.namespace,
		registry:  reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: settings.namespace,
			Name:      "requests_total",
			Help:      "HTTP requests served, by route and status code.",
		}, []string{"route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: settings.namespace,
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency, by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		documentBuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: settings.namespace,
			Name:      "document_builds_total",
			Help:      "OpenAPI document requests, by version and outcome.",
		}, []string{"version", "outcome"}),
	}
	reg.MustRegister(r.requests, r.latency, r.documentBuilds)
	return r
}

// Namespace returns the configured namespace.
func (r *Registry) Namespace() string {
	if r == nil {
		return ""
	}
	return r.namespace
}

// Handler exposes the registry; a nil registry yields 404.
func (r *Registry) Handler() http.Handler {
	if r == nil || r.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Register adds a custom collector. Registration failures panic, mirroring
// prometheus.MustRegister.
func (r *Registry) Register(c prometheus.Collector) {
	if r == nil || r.registry == nil || c == nil {
		return
	}
	r.registry.MustRegister(c)
}

// ObserveRequest records one served request.
func (r *Registry) ObserveRequest(route string, status int, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	r.latency.WithLabelValues(route).Observe(elapsed.Seconds())
}

// ObserveDocument records one document request outcome.
func (r *Registry) ObserveDocument(version, outcome string) {
	if r == nil {
		return
	}
	r.documentBuilds.WithLabelValues(version, outcome).Inc()
}

// Raw returns the underlying Prometheus registry.
func (r *Registry) Raw() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}
