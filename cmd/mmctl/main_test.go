package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moneymoved/internal/models"
	"moneymoved/internal/testutil"
)

// run executes mmctl with args and returns what it printed.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestValuesCommand(t *testing.T) {
	out, err := run(t, "values", "merged", "pledge_frequency", "--data-dir", testutil.TestDataDir(), "--count=false")
	require.NoError(t, err)

	var got []string
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, []string{"Annual", "Monthly", "One-Time"}, got)
}

func TestCumulativeCommand(t *testing.T) {
	out, err := run(t, "cumulative", "--fy", "2025", "--data-dir", testutil.TestDataDir())
	require.NoError(t, err)

	var got models.Cumulative
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 200.0, got.CurrentValue)
	assert.Equal(t, 1_800_000.0, got.Target)
}

func TestRankingCommand(t *testing.T) {
	out, err := run(t, "ranking", "--fy", "2025", "--top-n", "2", "--data-dir", testutil.TestDataDir())
	require.NoError(t, err)

	var got models.Ranking
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got.Rows, 3)
	assert.Equal(t, "Yale", got.Rows[0].Entity)
	assert.Equal(t, "yale-university.png", got.Rows[0].Asset)
}

func TestFlowCommand(t *testing.T) {
	out, err := run(t, "flow", "--fy", "2025", "--mode", "target", "--target", "4000", "--data-dir", testutil.TestDataDir())
	require.NoError(t, err)

	var got models.Flow
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 2000.0, got.Totals.Gap)
	assert.Equal(t, got.Totals.Outflow, got.Totals.Inflow)
}

func TestMatchCommand(t *testing.T) {
	out, err := run(t, "match", "ACME", "Nobody", "--data-dir", testutil.TestDataDir())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "acme.png")
	assert.Contains(t, lines[1], "substring")
	assert.Contains(t, lines[2], "-")
}

func TestUnknownDatasetFails(t *testing.T) {
	_, err := run(t, "describe", "missing", "--data-dir", testutil.TestDataDir())
	assert.Error(t, err)
}

func TestSealRoundTrip(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"merged.csv", "pledge_active_arr.csv", "catalog.yaml", "assets.yaml"} {
		data, err := os.ReadFile(filepath.Join(testutil.TestDataDir(), name))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0644))
	}
	t.Setenv("MM_DATA_PASSWORD", "correct horse battery")

	_, err := run(t, "seal", "--data-dir", dir)
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(dir, "merged.csv"))
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(raw), "Harvard"))

	out, err := run(t, "status", "--data-dir", dir)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(out, ": sealed\n"), out)

	out, err = run(t, "describe", "pledge_active_arr", "--data-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, `"rows": 4`)

	_, err = run(t, "unseal", "--data-dir", dir)
	require.NoError(t, err)

	raw, err = os.ReadFile(filepath.Join(dir, "merged.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Harvard")
}

func TestValidateEndpoints(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.UserAgent(), "mmctl/"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer ok.Close()

	var buf bytes.Buffer
	passed, failed := runValidation(&buf, ok.Client(), ok.URL, endpoints[:1], true)
	assert.Equal(t, 1, passed)
	assert.Equal(t, 0, failed)
	assert.Contains(t, buf.String(), "PASS GET /api/health")

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html></html>"))
	}))
	defer broken.Close()

	buf.Reset()
	passed, failed = runValidation(&buf, broken.Client(), broken.URL, endpoints, false)
	assert.Equal(t, 0, passed)
	assert.Equal(t, len(endpoints), failed)
	assert.Contains(t, buf.String(), "wrong content type")
}
