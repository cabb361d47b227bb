package redoc

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewUsesDefaults(t *testing.T) {
	ui, err := New(Options{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	opts := ui.Options()
	if opts.SpecURL != "../swagger/v1/swagger.json" {
		t.Fatalf("unexpected spec url %q", opts.SpecURL)
	}
	if opts.RoutePrefix != "" {
		t.Fatalf("zero options should keep an empty prefix, got %q", opts.RoutePrefix)
	}

	index := string(ui.Index())
	for _, want := range []string{
		"<title>API Docs</title>",
		`Redoc.init("../swagger/v1/swagger.json", {`,
		`src="https://cdn.redoc.ly/redoc/latest/bundles/redoc.standalone.js"`,
	} {
		if !strings.Contains(index, want) {
			t.Fatalf("index missing %q", want)
		}
	}
}

func TestConfigObjectRendering(t *testing.T) {
	opts := DefaultOptions()
	opts.HideDownloadButton()
	opts.ScrollYOffset(64)
	opts.ConfigObject.AdditionalItems = map[string]any{
		"theme":         map[string]any{"spacing": map[string]any{"unit": 4}},
		"disableSearch": true,
	}

	ui, err := New(opts)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	index := string(ui.Index())
	for _, want := range []string{
		`"expandResponses":"200,201"`,
		`"hideDownloadButton":true`,
		`"scrollYOffset":64`,
		`"disableSearch":false`,
		`"theme":{"spacing":{"unit":4}}`,
	} {
		if !strings.Contains(index, want) {
			t.Fatalf("index missing %q", want)
		}
	}
}

func TestMiddlewareServesUnderPrefix(t *testing.T) {
	mw, err := Middleware(DefaultOptions())
	if err != nil {
		t.Fatalf("middleware: %v", err)
	}
	handler := mw(http.NotFoundHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api-docs?x=1", nil))
	if rec.Code != http.StatusMovedPermanently {
		t.Fatalf("expected redirect, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/api-docs/?x=1" {
		t.Fatalf("unexpected location %q", loc)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api-docs/", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "redoc-container") {
		t.Fatalf("expected page, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api-docs/", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("non-GET should pass through, got %d", rec.Code)
	}
}
