package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestHandlerExposesHostMetrics(t *testing.T) {
	reg := NewRegistry(WithoutDefaultCollectors())
	reg.ObserveRequest("swagger", 200, 5*time.Millisecond)
	reg.ObserveDocument("v1", "built")

	rr := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))

	if rr.Code != 200 {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{
		`apidocs_requests_total{route="swagger",status="200"} 1`,
		`apidocs_document_builds_total{outcome="built",version="v1"} 1`,
		`apidocs_request_duration_seconds_count{route="swagger"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in metrics output", want)
		}
	}
}

func TestRegisterCustomCollector(t *testing.T) {
	reg := NewRegistry(WithoutDefaultCollectors())
	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: reg.Namespace(),
		Name:      "custom_total",
		Help:      "test counter",
	})
	reg.Register(counter)
	counter.Inc()

	rr := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rr.Body.String(), "apidocs_custom_total 1") {
		t.Fatalf("expected custom counter in metrics output")
	}
}

func TestNamespaceOption(t *testing.T) {
	reg := NewRegistry(WithNamespace("docs"), WithoutDefaultCollectors())
	if reg.Namespace() != "docs" {
		t.Fatalf("expected namespace docs, got %s", reg.Namespace())
	}
	reg.ObserveDocument("v1", "cached")
	mfs, err := reg.Raw().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, mf := range mfs {
		if mf.GetName() == "docs_document_builds_total" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected namespaced collector")
	}
}

func TestNilRegistryIsSafe(t *testing.T) {
	var reg *Registry
	reg.ObserveRequest("x", 200, time.Millisecond)
	reg.ObserveDocument("v1", "built")

	rr := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	if rr.Code != 404 {
		t.Fatalf("expected 404 from nil registry, got %d", rr.Code)
	}
}
