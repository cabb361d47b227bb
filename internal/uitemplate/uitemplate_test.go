package uitemplate

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRenderReplacesPlaceholders(t *testing.T) {
	out := Render([]byte("<title>%(DocumentTitle)</title>%(Missing)<x>"), Values{"DocumentTitle": "Docs"})
	if string(out) != "<title>Docs</title><x>" {
		t.Fatalf("unexpected render %q", out)
	}
}

func TestJSONEscapesScriptTerminator(t *testing.T) {
	out, err := JSON(map[string]string{"x": "</script>"})
	if err != nil {
		t.Fatalf("json: %v", err)
	}
	if strings.Contains(out, "</script>") {
		t.Fatalf("expected script terminator escaped, got %s", out)
	}
}

func TestNormalizePrefix(t *testing.T) {
	for in, want := range map[string]string{"/swagger/": "swagger", " api-docs ": "api-docs", "/": "", "a/b/": "a/b"} {
		if got := NormalizePrefix(in); got != want {
			t.Fatalf("NormalizePrefix(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPageMiddlewareRoutes(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	handler := Page{Prefix: "swagger", Body: []byte("<html>ui</html>")}.Middleware(next)

	cases := []struct {
		method   string
		path     string
		status   int
		location string
	}{
		{http.MethodGet, "/swagger", http.StatusMovedPermanently, "/swagger/"},
		{http.MethodGet, "/swagger?urls.primaryName=v2", http.StatusMovedPermanently, "/swagger/?urls.primaryName=v2"},
		{http.MethodGet, "/swagger/", http.StatusOK, ""},
		{http.MethodHead, "/swagger/index.html", http.StatusOK, ""},
		{http.MethodGet, "/swagger/v1/swagger.json", http.StatusTeapot, ""},
		{http.MethodPost, "/swagger/", http.StatusTeapot, ""},
		{http.MethodGet, "/other", http.StatusTeapot, ""},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		if rec.Code != tc.status {
			t.Fatalf("%s %s: expected %d, got %d", tc.method, tc.path, tc.status, rec.Code)
		}
		if tc.location != "" && rec.Header().Get("Location") != tc.location {
			t.Fatalf("%s %s: expected redirect to %s, got %s", tc.method, tc.path, tc.location, rec.Header().Get("Location"))
		}
	}
}

func TestPageMiddlewareRootPrefix(t *testing.T) {
	handler := Page{Body: []byte("root")}.Middleware(nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "root" {
		t.Fatalf("expected root page, got %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown path, got %d", rec.Code)
	}
}
