package charts

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apphttp "moneymoved/internal/http"
	"moneymoved/internal/query"
	"moneymoved/internal/services/aggregate"
	"moneymoved/internal/services/analytics"
	"moneymoved/internal/services/matcher"
)

// Views names the datasets behind the money moved charts and the active
// pledge flow.
type Views struct {
	MoneyMoved string
	Flow       string
}

var (
	svc    *analytics.Service
	assets *matcher.AssetRegistry
	views  Views
	logger = zap.NewNop()
)

// Initialize sets up the charts package with required dependencies
func Initialize(s *analytics.Service, a *matcher.AssetRegistry, v Views, l *zap.Logger) {
	svc = s
	assets = a
	views = v
	if l != nil {
		logger = l
	}
}

// RegisterRoutes registers all chart routes
func RegisterRoutes(r chi.Router) {
	r.Get("/api/overview", handleOverview)
	r.Get("/api/fiscal-years", handleFiscalYears)
	r.Get("/api/charts/{chartType}", handleChartData)
	r.Get("/api/assets/match", handleAssetMatch)
}

// request holds the parameters shared by the chart endpoints.
type request struct {
	dataset string
	fy      int
	// filters are the money moved filters plus extra, the filter=
	// parameters of the request.
	filters []query.Clause
	extra   []query.Clause
	amount  analytics.Amount
}

func parseRequest(r *http.Request, defaultDataset string) (request, error) {
	req := request{dataset: defaultDataset}
	if name := r.URL.Query().Get("dataset"); name != "" {
		req.dataset = name
	}

	schema, err := svc.Schema(req.dataset)
	if err != nil {
		return req, err
	}
	fy, err := apphttp.IntParam(r, "fy", 0)
	if err != nil {
		return req, err
	}
	if fy == 0 {
		fy = latestFiscalYear(req.dataset)
	}
	req.fy = fy

	req.extra, err = apphttp.ParseFilters(r, schema)
	if err != nil {
		return req, err
	}
	req.amount, err = svc.Amount(r.URL.Query().Get("amount"))
	if err != nil {
		return req, err
	}
	req.filters = append(svc.MoneyMovedFilters(fy), req.extra...)
	return req, nil
}

// latestFiscalYear is the default year selection. Datasets without a
// fiscal year column return zero, which leaves the year unfiltered.
func latestFiscalYear(name string) int {
	years, err := svc.FiscalYears(name)
	if err != nil || len(years) == 0 {
		return 0
	}
	return years[0]
}

func handleChartData(w http.ResponseWriter, r *http.Request) {
	chartType := chi.URLParam(r, "chartType")

	if chartType == "flow" {
		handleFlow(w, r)
		return
	}

	req, err := parseRequest(r, views.MoneyMoved)
	if err != nil {
		apphttp.Error(w, logger, err)
		return
	}

	var chartData any
	switch chartType {
	case "cumulative":
		target, perr := apphttp.FloatParam(r, "target", req.amount.Target)
		if perr != nil {
			apphttp.Error(w, logger, perr)
			return
		}
		chartData, err = svc.CumulativeSeries(req.dataset, req.filters, req.amount.Column, target)
	case "trend":
		chartData, err = svc.TrendSeries(req.dataset, req.filters, req.amount.Column, r.URL.Query().Get("split"))
	case "grouped":
		chartData, err = svc.GroupedSeries(req.dataset, req.filters, req.amount.Column, r.URL.Query().Get("group"))
	case "calendar":
		chartData, err = svc.CalendarPivot(req.dataset, req.filters, req.amount.Column)
	case "ranking":
		chartData, err = ranking(r, req)
	default:
		apphttp.ErrorResponse(w, "Unknown chart type", http.StatusBadRequest)
		return
	}
	if err != nil {
		apphttp.Error(w, logger, err)
		return
	}

	apphttp.JSON(w, http.StatusOK, chartData)
}

// ranking compares fy against prior_fy, which defaults to the year before.
// The year filter of the money moved views is replaced by the pair.
func ranking(r *http.Request, req request) (any, error) {
	prior, err := apphttp.IntParam(r, "prior_fy", req.fy-1)
	if err != nil {
		return nil, err
	}
	topN, err := apphttp.IntParam(r, "top_n", 0)
	if err != nil {
		return nil, err
	}
	return svc.TopNRanking(req.dataset, analytics.RankingRequest{
		Filters:      req.extra,
		AmountColumn: req.amount.Column,
		Current:      req.fy,
		Prior:        prior,
		TopN:         topN,
		Assets:       assets,
	})
}

func handleFlow(w http.ResponseWriter, r *http.Request) {
	name := views.Flow
	if d := r.URL.Query().Get("dataset"); d != "" {
		name = d
	}
	schema, err := svc.Schema(name)
	if err != nil {
		apphttp.Error(w, logger, err)
		return
	}

	fy, err := apphttp.IntParam(r, "fy", 0)
	if err != nil {
		apphttp.Error(w, logger, err)
		return
	}
	target, err := apphttp.FloatParam(r, "target", svc.Options().FlowAmount.Target)
	if err != nil {
		apphttp.Error(w, logger, err)
		return
	}
	mode, err := aggregate.ParseFlowMode(r.URL.Query().Get("mode"))
	if err != nil {
		apphttp.Error(w, logger, &apphttp.ParamError{Name: "mode", Value: r.URL.Query().Get("mode"), Err: err})
		return
	}
	extra, err := apphttp.ParseFilters(r, schema)
	if err != nil {
		apphttp.Error(w, logger, err)
		return
	}

	filters := append(svc.FlowYearFilters(fy), extra...)
	flow, err := svc.FlowAggregation(name, filters, mode, target)
	if err != nil {
		apphttp.Error(w, logger, err)
		return
	}
	apphttp.JSON(w, http.StatusOK, flow)
}

func handleOverview(w http.ResponseWriter, r *http.Request) {
	req, err := parseRequest(r, views.MoneyMoved)
	if err != nil {
		apphttp.Error(w, logger, err)
		return
	}

	overview, err := svc.Overview(r.Context(), req.dataset, req.fy, req.amount.Key)
	if err != nil {
		apphttp.Error(w, logger, err)
		return
	}
	apphttp.JSON(w, http.StatusOK, overview)
}

func handleFiscalYears(w http.ResponseWriter, r *http.Request) {
	name := views.MoneyMoved
	if d := r.URL.Query().Get("dataset"); d != "" {
		name = d
	}
	years, err := svc.FiscalYears(name)
	if err != nil {
		apphttp.Error(w, logger, err)
		return
	}

	cal := svc.Options().Calendar
	type option struct {
		Value int    `json:"value"`
		Label string `json:"label"`
	}
	options := make([]option, len(years))
	for i, fy := range years {
		options[i] = option{Value: fy, Label: cal.YearLabel(fy)}
	}
	apphttp.JSON(w, http.StatusOK, options)
}

func handleAssetMatch(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	fallback, err := apphttp.BoolParam(r, "fallback", false)
	if err != nil {
		apphttp.Error(w, logger, err)
		return
	}

	res, ok := svc.MatchEntityAsset(name, assets, fallback)
	if !ok {
		apphttp.JSON(w, http.StatusNotFound, map[string]any{"name": name, "matched": false})
		return
	}
	apphttp.JSON(w, http.StatusOK, map[string]any{"name": name, "matched": true, "result": res})
}
