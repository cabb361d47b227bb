package apitest

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRecordThenReplay(t *testing.T) {
	dir := t.TempDir()
	recorder := NewRecorder(dir)

	req := &RequestDefinition{
		Method: http.MethodGet,
		URI:    "/api/products/42",
		Header: http.Header{"Accept": {"application/json"}},
	}
	resp, err := recorder.Capture(context.Background(), NewHandlerTransport(productHandler(t)), "v1", "GetProduct", "", req)
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if resp.Status != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Status)
	}

	if _, err := os.Stat(filepath.Join(dir, "v1", "GetProduct", "response.200.http")); err != nil {
		t.Fatalf("expected variant named after status: %v", err)
	}

	runner := NewRunner(NewStore(dir), NewHandlerTransport(productHandler(t)))
	report, err := runner.Run(context.Background(), "v1", "GetProduct", "200", nil)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !report.OK() {
		t.Fatalf("expected recorded fixture to replay cleanly:\n%s", report.Render())
	}
}

func TestRecordOverwritesAndDropsVolatileHeaders(t *testing.T) {
	dir := t.TempDir()
	recorder := NewRecorder(dir)
	req := &RequestDefinition{Method: http.MethodGet, URI: "/health"}

	first := &ActualResponse{Status: 200, Header: http.Header{"Content-Type": {"text/plain"}}, Body: []byte("old")}
	if err := recorder.Record("v1", "Health", "200", req, first); err != nil {
		t.Fatalf("record: %v", err)
	}
	second := &ActualResponse{
		Status: 200,
		Header: http.Header{"Content-Type": {"text/plain"}, "Date": {"Mon, 01 Jan 2024 00:00:00 GMT"}, "X-Request-Id": {"abc"}},
		Body:   []byte("new"),
	}
	if err := recorder.Record("v1", "Health", "200", req, second); err != nil {
		t.Fatalf("record: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "v1", "Health", "response.200.http"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	text := string(raw)
	if !strings.HasSuffix(text, "\r\n\r\nnew") {
		t.Fatalf("expected overwritten body, got %q", text)
	}
	if strings.Contains(text, "Date:") || strings.Contains(text, "X-Request-Id") {
		t.Fatalf("expected volatile headers dropped, got %q", text)
	}
	if second.Header.Get("Date") == "" {
		t.Fatalf("record must not mutate the captured response")
	}

	entries, _ := os.ReadDir(filepath.Join(dir, "v1", "Health"))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".fixture-") {
			t.Fatalf("temporary file left behind: %s", e.Name())
		}
	}
}

func TestRecordRejectsInvalidKeys(t *testing.T) {
	recorder := NewRecorder(t.TempDir())
	req := &RequestDefinition{Method: http.MethodGet, URI: "/"}
	resp := &ActualResponse{Status: 200}

	if err := recorder.Record("v1", "../escape", "200", req, resp); err == nil {
		t.Fatalf("expected traversal to be rejected")
	}
	if err := recorder.Record("v1", "Op", "", req, resp); err == nil {
		t.Fatalf("expected empty variant to be rejected")
	}
}

func TestRecordingTransport(t *testing.T) {
	dir := t.TempDir()
	transport := NewRecordingTransport(NewHandlerTransport(productHandler(t)), NewRecorder(dir))
	req := &RequestDefinition{Method: http.MethodGet, URI: "/api/products/42"}

	if _, err := transport.Send(context.Background(), req); err != nil {
		t.Fatalf("send without key: %v", err)
	}
	if entries, _ := os.ReadDir(dir); len(entries) != 0 {
		t.Fatalf("expected nothing recorded without a fixture key, got %d entries", len(entries))
	}

	ctx := WithFixtureKey(context.Background(), FixtureKey{Version: "v1", Operation: "GetProduct"})
	resp, err := transport.Send(ctx, req)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if resp.Status != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Status)
	}
	for _, name := range []string{"request.http", "response.200.http"} {
		if _, err := os.Stat(filepath.Join(dir, "v1", "GetProduct", name)); err != nil {
			t.Fatalf("expected %s: %v", name, err)
		}
	}
}

func TestRunnerAttachesFixtureKey(t *testing.T) {
	var got FixtureKey
	transport := TransportFunc(func(ctx context.Context, req *RequestDefinition) (*ActualResponse, error) {
		got, _ = FixtureKeyFromContext(ctx)
		return &ActualResponse{Status: http.StatusOK, Header: http.Header{}}, nil
	})

	runner := NewRunner(NewStore("testdata/fixtures"), transport)
	if _, err := runner.Run(context.Background(), "v1", "GetProduct", "200", nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	want := FixtureKey{Version: "v1", Operation: "GetProduct", Variant: "200"}
	if got != want {
		t.Fatalf("expected key %+v, got %+v", want, got)
	}
}
