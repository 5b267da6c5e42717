package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"testing"

	"moneymoved/internal/config"
	"moneymoved/internal/services/storage"
	"moneymoved/internal/testutil"
)

// setupTestServer initializes dependencies with test data and returns a test server
func setupTestServer(t *testing.T) *testutil.TestServer {
	t.Helper()

	testutil.SetTestEnv(t)
	cfg = config.Load()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Invalid test config: %v", err)
	}

	// Initialize storage (unsealed for tests)
	var err error
	store, err = storage.New(cfg.DataDirectory)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	if err := SetupDependencies(context.Background(), cfg); err != nil {
		t.Fatalf("Failed to setup dependencies: %v", err)
	}

	return testutil.NewTestServer(t, SetupRouter())
}

// TestHealthEndpoint tests the /api/health endpoint
func TestHealthEndpoint(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Close()

	resp := ts.GET("/api/health")
	testutil.AssertResponse(t, resp).
		StatusOK().
		ContentTypeJSON().
		ContainsAll(`"status":"ok"`, `"merged"`, `"pledge_active_arr"`, `"sealed":false`)
}

func TestVersionEndpoint(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Close()

	var got struct {
		Version string `json:"version"`
	}
	testutil.AssertResponse(t, ts.GET("/api/version")).
		StatusOK().
		DecodeJSON(&got)
	if got.Version == "" {
		t.Error("Expected a version string")
	}
}

// TestCompressedResponses checks that the middleware stack is installed
func TestCompressedResponses(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Close()

	req, err := http.NewRequest(http.MethodGet, ts.BaseURL+"/api/health", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Accept-Encoding", "gzip")
	resp, err := http.DefaultTransport.RoundTrip(req)
	if err != nil {
		t.Fatalf("GET /api/health failed: %v", err)
	}
	defer resp.Body.Close()

	if ce := resp.Header.Get("Content-Encoding"); ce != "gzip" {
		t.Errorf("Expected gzip response, got Content-Encoding %q", ce)
	}
}

// TestChartEndpoints checks every chart type answers with JSON
func TestChartEndpoints(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Close()

	chartTypes := []string{
		"cumulative",
		"trend",
		"grouped",
		"ranking",
		"flow",
		"calendar",
	}

	for _, chartType := range chartTypes {
		t.Run(chartType, func(t *testing.T) {
			resp := ts.GETWithQuery("/api/charts/"+chartType, url.Values{"fy": {"2025"}})
			body := testutil.AssertResponse(t, resp).
				StatusOK().
				ContentTypeJSON().
				Body()

			var data map[string]any
			if err := json.Unmarshal([]byte(body), &data); err != nil {
				t.Errorf("Invalid JSON response: %v", err)
			}
		})
	}
}

// TestDatasetEndpoints checks the dataset browser routes are mounted
func TestDatasetEndpoints(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Close()

	testutil.AssertResponse(t, ts.GET("/api/datasets")).
		StatusOK().
		ContentTypeJSON().
		Contains(`"name":"merged"`)

	testutil.AssertResponse(t, ts.GET("/api/datasets/merged/values/payment_platform")).
		StatusOK().
		ContainsAll("PayPal", "Stripe")
}

func TestNotFound(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Close()

	testutil.AssertResponse(t, ts.GET("/dashboard")).
		Status(http.StatusNotFound)
}
