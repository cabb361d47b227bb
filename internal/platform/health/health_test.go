package health

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubSource map[string]func(ctx context.Context) ([]byte, error)

func (s stubSource) Document(ctx context.Context, version string) ([]byte, error) {
	return s[version](ctx)
}

func (s stubSource) Versions() []string {
	versions := make([]string, 0, len(s))
	for v := range s {
		versions = append(versions, v)
	}
	return versions
}

func serve(raw string) func(context.Context) ([]byte, error) {
	return func(context.Context) ([]byte, error) { return []byte(raw), nil }
}

func TestReadinessReportsReadyWhenAllDocumentsBuild(t *testing.T) {
	checker := NewChecker(stubSource{"v1": serve(`{"openapi":"3.0.3"}`)}, 250*time.Millisecond)

	report := checker.Readiness(context.Background())
	if !report.Ready() {
		t.Fatalf("expected ready status, got %s", report.Status)
	}
	if len(report.Documents) != 1 {
		t.Fatalf("expected 1 document, got %d", len(report.Documents))
	}
	if !report.Documents[0].Healthy || report.Documents[0].Bytes == 0 {
		t.Fatalf("expected healthy document, got %+v", report.Documents[0])
	}
}

func TestReadinessReportsDegradedOnFailure(t *testing.T) {
	checker := NewChecker(stubSource{
		"v1": serve(`{}`),
		"v2": func(context.Context) ([]byte, error) { return nil, errors.New("duplicate path /api/products") },
	}, 250*time.Millisecond)

	report := checker.Readiness(context.Background())
	if report.Status != "degraded" {
		t.Fatalf("expected degraded status, got %s", report.Status)
	}
	var failed int
	for _, doc := range report.Documents {
		if !doc.Healthy {
			failed++
			if doc.Error == "" {
				t.Fatalf("expected error message for %s", doc.Version)
			}
		}
	}
	if failed != 1 {
		t.Fatalf("expected 1 failed document, got %d", failed)
	}
}

func TestReadinessRejectsInvalidJSON(t *testing.T) {
	checker := NewChecker(stubSource{"v1": serve(`openapi: 3.0.3`)}, 0)
	if report := checker.Readiness(context.Background()); report.Ready() {
		t.Fatalf("expected degraded status for non-JSON document")
	}
}

func TestReadinessHonorsContextCancellation(t *testing.T) {
	checker := NewChecker(stubSource{"v1": func(ctx context.Context) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}, 100*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := checker.Readiness(ctx)
	if report.Status != "degraded" {
		t.Fatalf("expected degraded status when context cancelled, got %s", report.Status)
	}
}

func TestReadinessWithoutSourceIsReady(t *testing.T) {
	if report := NewChecker(nil, time.Second).Readiness(context.Background()); !report.Ready() {
		t.Fatalf("expected ready without a document source")
	}
}
