// Package health reports whether the docs host can serve its documents.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// DocumentSource is the subset of the OpenAPI service readiness depends on.
type DocumentSource interface {
	Document(ctx context.Context, version string) ([]byte, error)
	Versions() []string
}

// DocumentReport captures the outcome of building a single document version.
type DocumentReport struct {
	Version   string    `json:"version"`
	Healthy   bool      `json:"healthy"`
	Bytes     int       `json:"bytes,omitempty"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checkedAt"`
}

// Report aggregates readiness across document versions.
type Report struct {
	Status    string           `json:"status"`
	CheckedAt time.Time        `json:"checkedAt"`
	Documents []DocumentReport `json:"documents"`
}

// Ready reports whether every document could be served.
func (r Report) Ready() bool {
	return r.Status == "ready"
}

// Checker evaluates readiness of the configured documents.
type Checker struct {
	source  DocumentSource
	timeout time.Duration
}

// NewChecker returns a checker over source. A nil source is always ready.
func NewChecker(source DocumentSource, timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Checker{source: source, timeout: timeout}
}

// Readiness builds every known document version and returns an aggregated
// report. Versions are checked concurrently.
func (c *Checker) Readiness(ctx context.Context) Report {
	if c.source == nil {
		return Report{Status: "ready", CheckedAt: time.Now().UTC()}
	}
	versions := c.source.Versions()
	if len(versions) == 0 {
		return Report{Status: "degraded", CheckedAt: time.Now().UTC()}
	}

	results := make([]DocumentReport, len(versions))
	var wg sync.WaitGroup
	for idx, version := range versions {
		wg.Add(1)
		go func(i int, v string) {
			defer wg.Done()
			results[i] = c.probe(ctx, v)
		}(idx, version)
	}
	wg.Wait()

	report := Report{Status: "ready", CheckedAt: time.Now().UTC(), Documents: results}
	for _, r := range results {
		if !r.Healthy {
			report.Status = "degraded"
			break
		}
	}
	return report
}

func (c *Checker) probe(ctx context.Context, version string) DocumentReport {
	report := DocumentReport{Version: version, CheckedAt: time.Now().UTC()}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := reqCtx.Err(); err != nil {
		report.Error = err.Error()
		return report
	}

	raw, err := c.source.Document(reqCtx, version)
	if err != nil {
		report.Error = err.Error()
		return report
	}
	if !json.Valid(raw) {
		report.Error = fmt.Sprintf("document %s is not valid JSON", version)
		return report
	}

	report.Healthy = true
	report.Bytes = len(raw)
	return report
}
