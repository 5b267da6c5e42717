package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"moneymoved/internal/version"
)

type endpoint struct {
	path        string
	method      string
	contentType string
	contains    []string
}

var endpoints = []endpoint{
	// API
	{path: "/api/health", method: "GET", contentType: "application/json", contains: []string{`"status":"ok"`}},
	{path: "/api/version", method: "GET", contentType: "application/json", contains: []string{`"version"`}},
	{path: "/api/fiscal-years", method: "GET", contentType: "application/json", contains: []string{`"label"`}},
	{path: "/api/overview", method: "GET", contentType: "application/json", contains: []string{`"kpis"`}},

	// Charts
	{path: "/api/charts/cumulative", method: "GET", contentType: "application/json", contains: []string{`"milestones"`}},
	{path: "/api/charts/trend", method: "GET", contentType: "application/json", contains: []string{`"series"`}},
	{path: "/api/charts/grouped", method: "GET", contentType: "application/json", contains: []string{`"Recurring"`}},
	{path: "/api/charts/ranking", method: "GET", contentType: "application/json", contains: []string{`"rows"`}},
	{path: "/api/charts/flow", method: "GET", contentType: "application/json", contains: []string{`"totals"`}},
	{path: "/api/charts/calendar", method: "GET", contentType: "application/json", contains: []string{`"weeks"`}},

	// Datasets
	{path: "/api/datasets", method: "GET", contentType: "application/json", contains: nil},
}

type result struct {
	endpoint endpoint
	status   int
	duration time.Duration
	err      error
	body     string
}

var (
	validateURL     string
	validateTimeout time.Duration
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check that a running server answers every endpoint",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := &http.Client{Timeout: validateTimeout}
		passed, failed := runValidation(cmd.OutOrStdout(), client, validateURL, endpoints, verbose)
		if failed > 0 {
			return fmt.Errorf("%d of %d endpoints failed", failed, passed+failed)
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().StringVar(&validateURL, "url", "http://localhost:8080", "Base URL of the server to validate")
	validateCmd.Flags().DurationVar(&validateTimeout, "request-timeout", 10*time.Second, "Request timeout")
}

func runValidation(out io.Writer, client *http.Client, baseURL string, eps []endpoint, verbose bool) (passed, failed int) {
	fmt.Fprintf(out, "Validating server at %s\n", baseURL)
	fmt.Fprintf(out, "Testing %d endpoints...\n\n", len(eps))

	for _, ep := range eps {
		r := validateEndpoint(client, baseURL, ep)

		if r.err != nil {
			failed++
			fmt.Fprintf(out, "FAIL %s %s\n", ep.method, ep.path)
			fmt.Fprintf(out, "     Error: %v\n", r.err)
		} else if r.status != http.StatusOK {
			failed++
			fmt.Fprintf(out, "FAIL %s %s\n", ep.method, ep.path)
			fmt.Fprintf(out, "     Status: %d (expected 200)\n", r.status)
		} else {
			passed++
			if verbose {
				fmt.Fprintf(out, "PASS %s %s (%v)\n", ep.method, ep.path, r.duration)
			}
		}
	}

	fmt.Fprintf(out, "\n========================================\n")
	fmt.Fprintf(out, "Results: %d passed, %d failed\n", passed, failed)
	return passed, failed
}

func validateEndpoint(client *http.Client, baseURL string, ep endpoint) result {
	start := time.Now()

	req, err := http.NewRequest(ep.method, baseURL+ep.path, nil)
	if err != nil {
		return result{endpoint: ep, err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("User-Agent", version.Get().UserAgent())

	resp, err := client.Do(req)
	if err != nil {
		return result{endpoint: ep, err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return result{endpoint: ep, err: fmt.Errorf("failed to read body: %w", err)}
	}

	r := result{
		endpoint: ep,
		status:   resp.StatusCode,
		duration: time.Since(start),
		body:     string(body),
	}

	// Validate content type
	ct := resp.Header.Get("Content-Type")
	if !strings.Contains(ct, ep.contentType) {
		r.err = fmt.Errorf("wrong content type: got %q, expected %q", ct, ep.contentType)
		return r
	}

	// Validate JSON if expected
	if ep.contentType == "application/json" {
		var js any
		if err := json.Unmarshal(body, &js); err != nil {
			r.err = fmt.Errorf("invalid JSON: %w", err)
			return r
		}
	}

	// Validate required content
	for _, needle := range ep.contains {
		if !strings.Contains(r.body, needle) {
			r.err = fmt.Errorf("missing expected content: %q", needle)
			return r
		}
	}

	return r
}
