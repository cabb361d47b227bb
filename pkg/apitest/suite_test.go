package apitest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadSuiteConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "suite.yaml")
	data := "baseUrl: http://localhost:8080\nversion: v1\ntimeout: 2s\ncases:\n  - operation: GetProduct\n    variant: \"200\"\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadSuiteConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Concurrency != 4 {
		t.Fatalf("expected default concurrency 4, got %d", cfg.Concurrency)
	}
	if cfg.Fixtures != "testdata/fixtures" {
		t.Fatalf("unexpected default fixtures dir %q", cfg.Fixtures)
	}
	if cfg.RequestTimeout() != 2*time.Second {
		t.Fatalf("unexpected timeout %v", cfg.RequestTimeout())
	}
	if len(cfg.Cases) != 1 || cfg.Cases[0].String() != "GetProduct/200" {
		t.Fatalf("unexpected cases %v", cfg.Cases)
	}
}

func TestLoadSuiteConfigRequiresVersion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "suite.yaml")
	if err := os.WriteFile(path, []byte("cases:\n  - operation: X\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := LoadSuiteConfig(path); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestSuiteRunKeepsOrder(t *testing.T) {
	suite := Suite{
		Runner:      NewRunner(NewStore("testdata/fixtures"), NewHandlerTransport(productHandler(t))),
		Version:     "v1",
		Concurrency: 2,
	}
	cases := []SuiteCase{
		{Operation: "GetProduct", Variant: "200"},
		{Operation: "GetProduct", Variant: "404"},
		{Operation: "Missing", Variant: "200"},
	}

	results := suite.Run(context.Background(), cases)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if !results[0].Passed() {
		t.Fatalf("expected first case to pass: %v %s", results[0].Err, results[0].Report.Render())
	}
	if results[1].Passed() || results[1].Err != nil {
		t.Fatalf("expected second case to mismatch without error")
	}
	if results[2].Err == nil {
		t.Fatalf("expected missing fixture error")
	}
	for i, res := range results {
		if res.Case != cases[i] {
			t.Fatalf("result %d out of order", i)
		}
	}
}
