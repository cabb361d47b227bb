package acceptance

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/theroutercompany/apidocs/internal/openapi"
	"github.com/theroutercompany/apidocs/internal/sample/products"
	"github.com/theroutercompany/apidocs/pkg/apitest"
	hostconfig "github.com/theroutercompany/apidocs/pkg/host/config"
	"github.com/theroutercompany/apidocs/pkg/host/server"
	pkglog "github.com/theroutercompany/apidocs/pkg/log"
)

func TestDocsHost_ServesUIsAndDocuments(t *testing.T) {
	dir := t.TempDir()
	fragment := filepath.Join(dir, "products.yaml")
	if err := os.WriteFile(fragment, products.OpenAPI, 0o600); err != nil {
		t.Fatalf("write fragment: %v", err)
	}

	cfg := hostconfig.Default()
	cfg.Documents.Versions = []hostconfig.DocumentConfig{{Version: "v1", Name: "Products v1", Inputs: []string{fragment}}}
	cfg.SwaggerUI.DocumentTitle = "Products API"

	documents := openapi.NewService(
		openapi.WithDocument("v1", fragment),
		openapi.WithDistDir(filepath.Join(dir, "dist")),
		openapi.WithLogger(pkglog.Nop()),
	)
	srv, err := server.New(cfg, documents, server.WithLogger(pkglog.Nop()))
	if err != nil {
		t.Fatalf("build server: %v", err)
	}

	baseURL, stop := serve(t, srv)
	defer stop()

	page := get(t, baseURL+"/swagger/", http.StatusOK)
	if !strings.Contains(page, "<title>Products API</title>") {
		t.Fatalf("swagger ui page missing title:\n%s", page)
	}
	if !strings.Contains(page, `"url":"v1/swagger.json"`) {
		t.Fatalf("swagger ui page missing document url:\n%s", page)
	}

	redocPage := get(t, baseURL+"/api-docs/", http.StatusOK)
	if !strings.Contains(redocPage, "Redoc.init") {
		t.Fatalf("redoc page missing bootstrap:\n%s", redocPage)
	}

	raw := get(t, baseURL+"/swagger/v1/swagger.json", http.StatusOK)
	var doc struct {
		Paths map[string]json.RawMessage `json:"paths"`
	}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		t.Fatalf("decode document: %v", err)
	}
	if _, ok := doc.Paths["/api/products/{id}"]; !ok {
		t.Fatalf("document missing products path: %v", doc.Paths)
	}
	if _, err := os.Stat(documents.DistPath("v1")); err != nil {
		t.Fatalf("expected persisted document: %v", err)
	}

	get(t, baseURL+"/swagger/v2/swagger.json", http.StatusNotFound)
	get(t, baseURL+"/readyz", http.StatusOK)
}

func TestContractSuite_AgainstLiveAPI(t *testing.T) {
	handler := products.NewHandler(nil).Routes()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	httpServer := &http.Server{Handler: handler, ReadHeaderTimeout: time.Second}
	go func() { _ = httpServer.Serve(listener) }()
	defer httpServer.Close()

	validator, err := apitest.LoadSchemaValidator(context.Background(), products.OpenAPI)
	if err != nil {
		t.Fatalf("load schema validator: %v", err)
	}
	runner := apitest.NewRunner(
		apitest.NewStore(filepath.Join(repoRoot(t), "internal", "sample", "products", "testdata", "fixtures")),
		apitest.NewClientTransport(&http.Client{Timeout: 5 * time.Second}, "http://"+listener.Addr().String()),
		apitest.WithSchemaValidator(validator),
	)

	suite := &apitest.Suite{Runner: runner, Version: "v1-imported", Concurrency: 2}
	results := suite.Run(context.Background(), []apitest.SuiteCase{
		{Operation: "CreateProduct", Variant: "201"},
		{Operation: "GetProduct", Variant: "404"},
	})
	for _, res := range results {
		if res.Err != nil {
			t.Fatalf("%s: %v", res.Case, res.Err)
		}
		for _, m := range res.Report.Entries {
			if m.Aspect == apitest.AspectSchema && res.Case.Variant != "201" {
				continue
			}
			t.Fatalf("%s:\n%s", res.Case, res.Report.Render())
		}
	}
}

func serve(t *testing.T, srv *server.Server) (string, func()) {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, listener) }()

	return "http://" + listener.Addr().String(), func() {
		cancel()
		if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("serve: %v", err)
		}
	}
}

func get(t *testing.T, url string, want int) string {
	t.Helper()
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read %s: %v", url, err)
	}
	if resp.StatusCode != want {
		t.Fatalf("GET %s: expected %d, got %d: %s", url, want, resp.StatusCode, body)
	}
	return string(body)
}

func repoRoot(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	return filepath.Clean(filepath.Join(wd, "..", ".."))
}
