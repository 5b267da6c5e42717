package charts

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moneymoved/internal/models"
	"moneymoved/internal/testutil"
)

func newServer(t *testing.T) *testutil.TestServer {
	t.Helper()
	fx := testutil.NewFixture(t)
	Initialize(fx.Service, fx.Assets, Views{MoneyMoved: fx.Catalog.MoneyMoved, Flow: fx.Catalog.Flow}, nil)

	r := chi.NewRouter()
	RegisterRoutes(r)
	return testutil.NewTestServer(t, r)
}

func TestCumulativeChart(t *testing.T) {
	ts := newServer(t)

	var got models.Cumulative
	testutil.AssertResponse(t, ts.GETWithQuery("/api/charts/cumulative", url.Values{"fy": {"2025"}})).
		StatusOK().
		ContentTypeJSON().
		DecodeJSON(&got)

	require.Len(t, got.Series.Points, 12)
	assert.Equal(t, 200.0, *got.Series.Points[2].Value)
	assert.Nil(t, got.Series.Points[3].Value)
	assert.Equal(t, 1_800_000.0, got.Target)
}

func TestCumulativeDefaultsToLatestYear(t *testing.T) {
	ts := newServer(t)

	var got models.Cumulative
	testutil.AssertResponse(t, ts.GETWithQuery("/api/charts/cumulative", url.Values{
		"amount": {"cf"},
		"target": {"1000"},
	})).StatusOK().DecodeJSON(&got)

	assert.Equal(t, 140.0, got.CurrentValue)
	assert.Equal(t, 1000.0, got.Target)
	assert.Equal(t, "Jul '24", got.Series.Points[0].Label)
}

func TestTrendChartWithFilter(t *testing.T) {
	ts := newServer(t)

	var got models.SeriesSet
	testutil.AssertResponse(t, ts.GETWithQuery("/api/charts/trend", url.Values{
		"fy":     {"2025"},
		"split":  {"payment_platform"},
		"filter": {"pledge_donor_chapter:eq:Harvard"},
	})).StatusOK().DecodeJSON(&got)

	require.Len(t, got.Series, 1)
	assert.Equal(t, "Stripe", got.Series[0].Name)
	assert.Equal(t, 100.0, *got.Series[0].Points[0].Value)
}

func TestRankingChart(t *testing.T) {
	ts := newServer(t)

	var got models.Ranking
	testutil.AssertResponse(t, ts.GETWithQuery("/api/charts/ranking", url.Values{
		"fy":    {"2025"},
		"top_n": {"2"},
	})).StatusOK().DecodeJSON(&got)

	require.Len(t, got.Rows, 3)
	assert.Equal(t, "Yale", got.Rows[0].Entity)
	assert.Equal(t, models.OtherEntity, got.Rows[1].Entity)
	assert.Equal(t, 200.0, got.Rows[1].Total)
	assert.Equal(t, models.UnknownEntity, got.Rows[2].Entity)
	assert.Equal(t, 580.0, got.Rows[2].Total)
	assert.Equal(t, "2024", got.Prior)
}

func TestFlowChart(t *testing.T) {
	ts := newServer(t)

	var got models.Flow
	testutil.AssertResponse(t, ts.GETWithQuery("/api/charts/flow", url.Values{
		"fy":     {"2025"},
		"mode":   {"target"},
		"target": {"4000"},
	})).StatusOK().DecodeJSON(&got)

	assert.Equal(t, 2000.0, got.Totals.Gap)
	assert.Equal(t, got.Totals.Outflow, got.Totals.Inflow)
}

func TestChartErrors(t *testing.T) {
	ts := newServer(t)

	tests := []struct {
		name   string
		path   string
		query  url.Values
		status int
		kind   string
	}{
		{"unknown dataset", "/api/charts/cumulative", url.Values{"dataset": {"missing"}}, http.StatusNotFound, "unknown_dataset"},
		{"bad year", "/api/charts/trend", url.Values{"fy": {"soon"}}, http.StatusBadRequest, "parameter"},
		{"bad amount", "/api/charts/cumulative", url.Values{"amount": {"gross"}}, http.StatusBadRequest, "schema"},
		{"bad filter column", "/api/charts/trend", url.Values{"filter": {"nope:eq:1"}}, http.StatusBadRequest, "schema"},
		{"bad flow mode", "/api/charts/flow", url.Values{"mode": {"sideways"}}, http.StatusBadRequest, "parameter"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testutil.AssertResponse(t, ts.GETWithQuery(tt.path, tt.query)).
				Status(tt.status).
				ErrorKind(tt.kind)
		})
	}

	testutil.AssertResponse(t, ts.GET("/api/charts/pie")).
		Status(http.StatusBadRequest).
		Contains("Unknown chart type")
}

func TestOverviewEndpoint(t *testing.T) {
	ts := newServer(t)

	var got models.Overview
	testutil.AssertResponse(t, ts.GETWithQuery("/api/overview", url.Values{"fy": {"2025"}})).
		StatusOK().
		DecodeJSON(&got)

	assert.Equal(t, "FY2025", got.Label)
	require.Len(t, got.KPIs, 2)
	assert.Equal(t, 200.0, got.KPIs[0].Total)
	require.NotNil(t, got.Calendar)
	assert.Equal(t, 200.0, got.Calendar.Total)
}

func TestFiscalYearsEndpoint(t *testing.T) {
	ts := newServer(t)

	var got []struct {
		Value int    `json:"value"`
		Label string `json:"label"`
	}
	testutil.AssertResponse(t, ts.GET("/api/fiscal-years")).StatusOK().DecodeJSON(&got)

	require.Len(t, got, 2)
	assert.Equal(t, 2025, got[0].Value)
	assert.Equal(t, "FY2024", got[1].Label)
}

func TestAssetMatchEndpoint(t *testing.T) {
	ts := newServer(t)

	testutil.AssertResponse(t, ts.GETWithQuery("/api/assets/match", url.Values{"name": {"ACME"}})).
		StatusOK().
		ContainsAll(`"matched":true`, `"asset":"acme.png"`)

	testutil.AssertResponse(t, ts.GETWithQuery("/api/assets/match", url.Values{"name": {"Nobody"}})).
		Status(http.StatusNotFound).
		Contains(`"matched":false`)

	testutil.AssertResponse(t, ts.GETWithQuery("/api/assets/match", url.Values{
		"name":     {"Nobody Inc"},
		"fallback": {"true"},
	})).StatusOK().Contains(`"strategy":"fallback"`)
}
