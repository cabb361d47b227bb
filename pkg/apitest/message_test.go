package apitest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
)

func TestParseResponseVariants(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		status  int
		body    string
		wantErr bool
	}{
		{name: "crlf", raw: "HTTP/1.1 201 Created\r\nLocation: /x\r\n\r\n", status: 201},
		{name: "lf with body", raw: "HTTP/1.1 200 OK\nContent-Type: text/plain\n\nhello\n", status: 200, body: "hello"},
		{name: "no reason", raw: "HTTP/1.1 204\n", status: 204},
		{name: "leading blank lines", raw: "\n\nHTTP/1.0 404 Not Found\n\n", status: 404},
		{name: "bad code", raw: "HTTP/1.1 abc OK\n\n", wantErr: true},
		{name: "bad proto", raw: "HTTQ/1.1 200 OK\n\n", wantErr: true},
		{name: "short body", raw: "HTTP/1.1 200 OK\nContent-Length: 10\n\nabc", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, _, body, err := parseResponse("test.http", []byte(tc.raw))
			if tc.wantErr {
				if !errors.Is(err, ErrFixtureMalformed) {
					t.Fatalf("expected malformed error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if status != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, status)
			}
			if string(body) != tc.body {
				t.Fatalf("expected body %q, got %q", tc.body, body)
			}
		})
	}
}

func TestParseRequestRejectsLowercaseMethod(t *testing.T) {
	if _, err := parseRequest("r.http", []byte("get /x HTTP/1.1\n\n")); !errors.Is(err, ErrFixtureMalformed) {
		t.Fatalf("expected malformed error, got %v", err)
	}
}

func TestWriteThenParseRequest(t *testing.T) {
	def := &RequestDefinition{
		Method: http.MethodPost,
		URI:    "/api/products?dryRun=true",
		Header: http.Header{"Content-Type": {"application/json"}, "Connection": {"close"}},
		Body:   []byte("{\"name\":\"foo\"}\n"),
	}

	var buf bytes.Buffer
	if err := writeRequest(&buf, def); err != nil {
		t.Fatalf("write: %v", err)
	}
	if strings.Contains(buf.String(), "Connection") {
		t.Fatalf("hop-by-hop headers must not be persisted")
	}

	parsed, err := parseRequest("r.http", buf.Bytes())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !bytes.Equal(parsed.Body, def.Body) {
		t.Fatalf("expected body %q to survive including trailing newline, got %q", def.Body, parsed.Body)
	}
	if parsed.URI != def.URI || parsed.Method != def.Method {
		t.Fatalf("unexpected request line %s %s", parsed.Method, parsed.URI)
	}
}

func TestNewHTTPRequestJoinsBaseURL(t *testing.T) {
	def := &RequestDefinition{Method: http.MethodGet, URI: "/api/products?page=2", Header: http.Header{"Accept": {"application/json"}}}

	req, err := def.NewHTTPRequest(context.Background(), "http://127.0.0.1:8080/base/")
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if got := req.URL.String(); got != "http://127.0.0.1:8080/base/api/products?page=2" {
		t.Fatalf("unexpected url %s", got)
	}
	if req.Header.Get("Accept") != "application/json" {
		t.Fatalf("expected headers copied")
	}
}

func TestNewHTTPRequestKeepsEncodedSegments(t *testing.T) {
	def := &RequestDefinition{Method: http.MethodGet, URI: "/files/a%2Fb"}

	req, err := def.NewHTTPRequest(context.Background(), "http://h/base")
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if got := req.URL.String(); got != "http://h/base/files/a%2Fb" {
		t.Fatalf("unexpected url %s", got)
	}
}

func TestNewHTTPRequestDerivesContentLength(t *testing.T) {
	def := &RequestDefinition{
		Method: http.MethodPost,
		URI:    "/api/products",
		Header: http.Header{"Content-Length": {"17"}, "Content-Type": {"application/json"}},
		Body:   []byte(`{}`),
	}

	req, err := def.NewHTTPRequest(context.Background(), "")
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if req.Header.Get("Content-Length") != "" {
		t.Fatalf("expected no stale Content-Length header")
	}
	if req.ContentLength != 2 {
		t.Fatalf("expected content length 2, got %d", req.ContentLength)
	}
}

func TestRequestFromHTTPRestoresBody(t *testing.T) {
	req, _ := http.NewRequest(http.MethodPost, "http://example.com/api/products", strings.NewReader(`{"name":"x"}`))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	def, err := RequestFromHTTP(req)
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if def.ContentType() != "application/json" {
		t.Fatalf("unexpected content type %q", def.ContentType())
	}
	rest, _ := io.ReadAll(req.Body)
	if string(rest) != `{"name":"x"}` {
		t.Fatalf("expected body restored, got %q", rest)
	}
}
