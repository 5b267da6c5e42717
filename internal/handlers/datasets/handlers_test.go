package datasets

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moneymoved/internal/services/analytics"
	"moneymoved/internal/testutil"
)

func newServer(t *testing.T) *testutil.TestServer {
	t.Helper()
	fx := testutil.NewFixture(t)
	Initialize(fx.Service, nil)

	r := chi.NewRouter()
	RegisterRoutes(r)
	return testutil.NewTestServer(t, r)
}

func TestListDatasets(t *testing.T) {
	ts := newServer(t)

	var got []analytics.DatasetInfo
	testutil.AssertResponse(t, ts.GET("/api/datasets")).
		StatusOK().
		ContentTypeJSON().
		DecodeJSON(&got)

	require.Len(t, got, 2)
	assert.Equal(t, "merged", got[0].Name)
	assert.Equal(t, 7, got[0].Rows)
	assert.Equal(t, "pledge_active_arr", got[1].Name)
	assert.Equal(t, 4, got[1].Rows)
}

func TestDescribeDataset(t *testing.T) {
	ts := newServer(t)

	testutil.AssertResponse(t, ts.GET("/api/datasets/merged")).
		StatusOK().
		ContainsAll(`"name":"merged"`, `"payment_date_fy"`, `"payment_date_day_of_week"`)

	testutil.AssertResponse(t, ts.GET("/api/datasets/missing")).
		Status(http.StatusNotFound).
		ErrorKind("unknown_dataset")
}

func TestUniqueValues(t *testing.T) {
	ts := newServer(t)

	var got struct {
		Values []string `json:"values"`
	}
	testutil.AssertResponse(t, ts.GET("/api/datasets/merged/values/pledge_frequency")).
		StatusOK().
		DecodeJSON(&got)
	assert.Equal(t, []string{"Annual", "Monthly", "One-Time"}, got.Values)

	testutil.AssertResponse(t, ts.GETWithQuery("/api/datasets/merged/values/pledge_frequency", url.Values{"desc": {"true"}})).
		StatusOK().
		DecodeJSON(&got)
	assert.Equal(t, []string{"One-Time", "Monthly", "Annual"}, got.Values)

	testutil.AssertResponse(t, ts.GET("/api/datasets/merged/values/nope")).
		Status(http.StatusBadRequest).
		ErrorKind("schema")
}

func TestUniqueCount(t *testing.T) {
	ts := newServer(t)

	var got struct {
		Count int `json:"count"`
	}
	// Harvard, Acme Corp, Yale and null.
	testutil.AssertResponse(t, ts.GET("/api/datasets/merged/count/pledge_donor_chapter")).
		StatusOK().
		DecodeJSON(&got)
	assert.Equal(t, 4, got.Count)
}

func TestRows(t *testing.T) {
	ts := newServer(t)

	var got struct {
		Total int              `json:"total"`
		Rows  []map[string]any `json:"rows"`
	}
	testutil.AssertResponse(t, ts.GETWithQuery("/api/datasets/merged/rows", url.Values{
		"filter":  {"payment_amount_usd:gt:60", "pledge_donor_chapter:is_not_null"},
		"columns": {"pledge_donor_chapter,payment_amount_usd"},
		"limit":   {"1"},
	})).StatusOK().DecodeJSON(&got)

	assert.Equal(t, 2, got.Total)
	require.Len(t, got.Rows, 1)
	assert.Len(t, got.Rows[0], 2)
	assert.Equal(t, "Harvard", got.Rows[0]["pledge_donor_chapter"])
}

func TestRowsErrors(t *testing.T) {
	ts := newServer(t)

	tests := []struct {
		name   string
		query  url.Values
		status int
		kind   string
	}{
		{"malformed filter", url.Values{"filter": {"payment_amount_usd"}}, http.StatusBadRequest, "parameter"},
		{"unsupported operator", url.Values{"filter": {"payment_amount_usd:like:1"}}, http.StatusBadRequest, "unsupported_operator"},
		{"not a number", url.Values{"filter": {"payment_amount_usd:gt:lots"}}, http.StatusBadRequest, "schema"},
		{"unknown projection", url.Values{"columns": {"nope"}}, http.StatusBadRequest, "schema"},
		{"bad limit", url.Values{"limit": {"ten"}}, http.StatusBadRequest, "parameter"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testutil.AssertResponse(t, ts.GETWithQuery("/api/datasets/merged/rows", tt.query)).
				Status(tt.status).
				ErrorKind(tt.kind)
		})
	}
}
