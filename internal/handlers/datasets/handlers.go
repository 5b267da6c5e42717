package datasets

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apphttp "moneymoved/internal/http"
	"moneymoved/internal/services/analytics"
)

// maxRows caps the rows endpoint when no limit is given.
const maxRows = 500

var (
	svc    *analytics.Service
	logger = zap.NewNop()
)

// Initialize sets up the datasets package with required dependencies
func Initialize(s *analytics.Service, l *zap.Logger) {
	svc = s
	if l != nil {
		logger = l
	}
}

// RegisterRoutes registers all dataset routes
func RegisterRoutes(r chi.Router) {
	r.Get("/api/datasets", handleList)
	r.Get("/api/datasets/{name}", handleDescribe)
	r.Get("/api/datasets/{name}/values/{column}", handleUniqueValues)
	r.Get("/api/datasets/{name}/count/{column}", handleUniqueCount)
	r.Get("/api/datasets/{name}/rows", handleRows)
}

func handleList(w http.ResponseWriter, r *http.Request) {
	names := svc.Datasets()
	infos := make([]analytics.DatasetInfo, 0, len(names))
	for _, name := range names {
		info, err := svc.Describe(name)
		if err != nil {
			apphttp.Error(w, logger, err)
			return
		}
		infos = append(infos, info)
	}
	apphttp.JSON(w, http.StatusOK, infos)
}

func handleDescribe(w http.ResponseWriter, r *http.Request) {
	info, err := svc.Describe(chi.URLParam(r, "name"))
	if err != nil {
		apphttp.Error(w, logger, err)
		return
	}
	apphttp.JSON(w, http.StatusOK, info)
}

func handleUniqueValues(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	column := chi.URLParam(r, "column")
	desc, err := apphttp.BoolParam(r, "desc", false)
	if err != nil {
		apphttp.Error(w, logger, err)
		return
	}

	values, err := svc.UniqueValues(name, column, desc)
	if err != nil {
		apphttp.Error(w, logger, err)
		return
	}
	apphttp.JSON(w, http.StatusOK, map[string]any{
		"dataset": name,
		"column":  column,
		"values":  values,
	})
}

func handleUniqueCount(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	column := chi.URLParam(r, "column")

	count, err := svc.UniqueCount(name, column)
	if err != nil {
		apphttp.Error(w, logger, err)
		return
	}
	apphttp.JSON(w, http.StatusOK, map[string]any{
		"dataset": name,
		"column":  column,
		"count":   count,
	})
}

// handleRows runs an ad hoc query: repeated filter=column:op[:value]
// parameters, an optional columns=a,b projection and a row limit.
func handleRows(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	schema, err := svc.Schema(name)
	if err != nil {
		apphttp.Error(w, logger, err)
		return
	}
	filters, err := apphttp.ParseFilters(r, schema)
	if err != nil {
		apphttp.Error(w, logger, err)
		return
	}
	limit, err := apphttp.IntParam(r, "limit", maxRows)
	if err != nil {
		apphttp.Error(w, logger, err)
		return
	}

	frame, err := svc.Query(name, filters, apphttp.ListParam(r, "columns"))
	if err != nil {
		apphttp.Error(w, logger, err)
		return
	}
	view, err := frame.Collect()
	if err != nil {
		apphttp.Error(w, logger, err)
		return
	}

	records := view.Records()
	total := len(records)
	if limit >= 0 && limit < total {
		records = records[:limit]
	}
	apphttp.JSON(w, http.StatusOK, map[string]any{
		"dataset": name,
		"columns": view.Fields(),
		"total":   total,
		"rows":    records,
	})
}
