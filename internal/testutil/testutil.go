// Package testutil provides testing utilities for the money moved service.
package testutil

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"go.uber.org/zap"

	"moneymoved/internal/config"
	"moneymoved/internal/dataset"
	"moneymoved/internal/services/analytics"
	"moneymoved/internal/services/matcher"
	"moneymoved/internal/services/storage"
)

// TestServer wraps httptest.Server with convenience methods
type TestServer struct {
	Server  *httptest.Server
	BaseURL string
	t       *testing.T
}

// ProjectRoot returns the root directory of the project.
// It works by finding the go.mod file.
func ProjectRoot() string {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		panic("could not get caller info")
	}

	dir := filepath.Dir(filename)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			panic("could not find project root (go.mod)")
		}
		dir = parent
	}
}

// TestDataDir returns the path to the testdata directory
func TestDataDir() string {
	return filepath.Join(ProjectRoot(), "testdata")
}

// TestConfig returns the environment for a server over testdata.
func TestConfig() map[string]string {
	dir := TestDataDir()
	return map[string]string{
		"MM_DATA_DIR":     dir,
		"MM_CATALOG_FILE": filepath.Join(dir, "catalog.yaml"),
		"MM_ASSETS_FILE":  filepath.Join(dir, "assets.yaml"),
		"MM_DEBUG":        "true",
		"MM_LISTEN_ADDR":  ":0",
	}
}

// SetTestEnv sets the test environment for the duration of t.
func SetTestEnv(t *testing.T) {
	t.Helper()
	for k, v := range TestConfig() {
		t.Setenv(k, v)
	}
}

// Fixture is an analytics service over the testdata datasets.
type Fixture struct {
	Service *analytics.Service
	Catalog *config.Catalog
	Assets  *matcher.AssetRegistry
}

// NewFixture registers every dataset of testdata/catalog.yaml.
func NewFixture(t *testing.T) *Fixture {
	t.Helper()
	dir := TestDataDir()

	cat, err := config.LoadCatalog(filepath.Join(dir, "catalog.yaml"))
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	assets, err := matcher.LoadAssetRegistry(filepath.Join(dir, "assets.yaml"), "")
	if err != nil {
		t.Fatalf("load assets: %v", err)
	}
	store, err := storage.New(dir)
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}

	cfg := config.DefaultConfig()
	opts := cfg.Options(cat)
	registry := dataset.NewRegistry(dataset.NewFileLoader(store, opts.Calendar, zap.NewNop()), zap.NewNop())
	svc := analytics.New(registry, opts, zap.NewNop())
	if err := svc.RegisterAll(context.Background(), cat.Datasets); err != nil {
		t.Fatalf("register datasets: %v", err)
	}
	return &Fixture{Service: svc, Catalog: cat, Assets: assets}
}

// NewTestServer creates a new test server using the application's router.
func NewTestServer(t *testing.T, router http.Handler) *TestServer {
	t.Helper()

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &TestServer{
		Server:  server,
		BaseURL: server.URL,
		t:       t,
	}
}

// GET performs a GET request to the given path
func (ts *TestServer) GET(path string) *http.Response {
	ts.t.Helper()

	resp, err := http.Get(ts.BaseURL + path)
	if err != nil {
		ts.t.Fatalf("GET %s failed: %v", path, err)
	}
	return resp
}

// GETWithQuery performs a GET request with query parameters
func (ts *TestServer) GETWithQuery(path string, query url.Values) *http.Response {
	ts.t.Helper()

	target := ts.BaseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	resp, err := http.Get(target)
	if err != nil {
		ts.t.Fatalf("GET %s failed: %v", path, err)
	}
	return resp
}

// Close shuts down the test server
func (ts *TestServer) Close() {
	ts.Server.Close()
}

// ReadBody reads and returns the response body as a string
func ReadBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response body: %v", err)
	}
	return string(body)
}
