// Package analytics is the entry point the dashboard talks to. It wires the
// dataset registry, the query layer, the aggregation pipelines and the
// entity matcher behind one set of operations keyed by dataset name.
package analytics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"moneymoved/internal/dataset"
	"moneymoved/internal/fiscal"
	"moneymoved/internal/models"
	"moneymoved/internal/query"
	"moneymoved/internal/services/aggregate"
	"moneymoved/internal/services/matcher"
)

// Amount is a selectable amount column and the fundraising target that
// goes with it.
type Amount struct {
	Key    string  `yaml:"key" json:"key"`
	Column string  `yaml:"column" json:"column"`
	Target float64 `yaml:"target" json:"target"`
}

// Options names the columns the dashboard views read.
type Options struct {
	Calendar fiscal.Calendar
	// FiscalDate is the date column the fiscal year, period, week and
	// day-of-week columns are derived from.
	FiscalDate      string
	EntityColumn    string
	FrequencyColumn string
	// ExcludedPortfolios are removed from the money moved views.
	PortfolioColumn    string
	ExcludedPortfolios []string
	// Amounts lists the selectable amount columns; the first is the default.
	Amounts []Amount
	// FlowAmount and FlowYearColumn drive the active pledge flow.
	FlowAmount     Amount
	FlowYearColumn string
	DefaultTopN    int
}

// DefaultOptions returns the column layout of the merged payments export.
func DefaultOptions() Options {
	return Options{
		Calendar:        fiscal.Default(),
		FiscalDate:      "payment_date",
		EntityColumn:    "pledge_donor_chapter",
		FrequencyColumn: "pledge_frequency",
		PortfolioColumn: "payment_portfolio",
		ExcludedPortfolios: []string{
			"One for the World Discretionary Fund",
			"One for the World Operating Costs",
		},
		Amounts: []Amount{
			{Key: "actual", Column: "payment_amount_usd", Target: 1_800_000},
			{Key: "cf", Column: "payment_cf_amount_usd", Target: 1_260_000},
		},
		FlowAmount:     Amount{Key: "arr", Column: "pledge_active_arr", Target: 1_200_000},
		FlowYearColumn: "pledge_starts_at_fy",
		DefaultTopN:    10,
	}
}

// Service answers dashboard requests.
type Service struct {
	registry *dataset.Registry
	query    *query.Service
	agg      *aggregate.Service
	opts     Options
	fiscal   dataset.FiscalNames
	logger   *zap.Logger
}

// New creates the analytics service over registry.
func New(registry *dataset.Registry, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		registry: registry,
		query:    query.NewService(registry),
		agg:      aggregate.New(opts.Calendar, logger.Named("aggregate")),
		opts:     opts,
		fiscal:   dataset.FiscalColumns(opts.FiscalDate),
		logger:   logger,
	}
}

// Options returns the column layout in use.
func (s *Service) Options() Options { return s.opts }

// FiscalColumns returns the derived fiscal column names.
func (s *Service) FiscalColumns() dataset.FiscalNames { return s.fiscal }

// RegisterDataset loads src under name once; later calls return the same
// dataset.
func (s *Service) RegisterDataset(ctx context.Context, name string, src dataset.Source) (*dataset.Dataset, error) {
	return s.registry.Register(ctx, name, src)
}

// RegisterAll registers every source concurrently.
func (s *Service) RegisterAll(ctx context.Context, sources map[string]dataset.Source) error {
	return s.registry.RegisterAll(ctx, sources)
}

// Datasets returns the registered dataset names.
func (s *Service) Datasets() []string { return s.registry.Names() }

// Schema returns the schema of a registered dataset.
func (s *Service) Schema(name string) (*dataset.Schema, error) {
	ds, err := s.registry.Get(name)
	if err != nil {
		return nil, err
	}
	return ds.Schema(), nil
}

// DatasetInfo describes a registered dataset.
type DatasetInfo struct {
	Name     string          `json:"name"`
	ID       string          `json:"id"`
	Rows     int             `json:"rows"`
	Path     string          `json:"path,omitempty"`
	LoadedAt time.Time       `json:"loaded_at"`
	Columns  []dataset.Field `json:"columns"`
}

// Describe returns the handle details and schema of a dataset.
func (s *Service) Describe(name string) (DatasetInfo, error) {
	ds, err := s.registry.Get(name)
	if err != nil {
		return DatasetInfo{}, err
	}
	return DatasetInfo{
		Name:     ds.Name,
		ID:       ds.ID.String(),
		Rows:     ds.Len(),
		Path:     ds.Source.Path,
		LoadedAt: ds.LoadedAt,
		Columns:  ds.Schema().Fields(),
	}, nil
}

// UniqueValues returns the sorted distinct non-null values of column.
func (s *Service) UniqueValues(name, column string, desc bool) ([]any, error) {
	return s.query.UniqueValues(name, column, desc)
}

// UniqueCount returns the distinct count of column, null included.
func (s *Service) UniqueCount(name, column string) (int, error) {
	return s.query.UniqueCount(name, column)
}

// Query returns a lazy filtered projection of a dataset.
func (s *Service) Query(name string, filters []query.Clause, columns []string) (*query.Frame, error) {
	return s.query.Query(name, filters, columns)
}

// FiscalYears lists the fiscal years present in a dataset, newest first,
// for the year selector.
func (s *Service) FiscalYears(name string) ([]int, error) {
	vals, err := s.query.UniqueValues(name, s.fiscal.Year, true)
	if err != nil {
		return nil, err
	}
	years := make([]int, 0, len(vals))
	for _, v := range vals {
		if f, ok := dataset.ToFloat(v); ok {
			years = append(years, int(f))
		}
	}
	return years, nil
}

// Amount resolves an amount selector. The empty key selects the default.
func (s *Service) Amount(key string) (Amount, error) {
	if len(s.opts.Amounts) == 0 {
		return Amount{}, fmt.Errorf("no amount columns configured")
	}
	if key == "" {
		return s.opts.Amounts[0], nil
	}
	for _, a := range s.opts.Amounts {
		if strings.EqualFold(a.Key, key) || a.Column == key {
			return a, nil
		}
	}
	return Amount{}, &dataset.SchemaError{Column: key, Reason: "unknown amount selector"}
}

// MoneyMovedFilters returns the filters shared by the money moved views: the
// fiscal year, when non-zero, and the portfolio exclusions.
func (s *Service) MoneyMovedFilters(fy int) []query.Clause {
	var filters []query.Clause
	if fy != 0 {
		filters = append(filters, query.Eq(s.fiscal.Year, fy))
	}
	if s.opts.PortfolioColumn != "" && len(s.opts.ExcludedPortfolios) > 0 {
		filters = append(filters, query.NotIn(s.opts.PortfolioColumn, query.Strings(s.opts.ExcludedPortfolios...)...))
	}
	return filters
}

// MatchEntityAsset resolves an entity name to an asset key. It never
// modifies reg.
func (s *Service) MatchEntityAsset(name string, reg *matcher.AssetRegistry, useFallback bool) (matcher.Result, bool) {
	return matcher.Heuristic{UseFallback: useFallback}.Match(name, reg)
}

func (s *Service) collect(name string, filters []query.Clause, columns ...string) (*query.View, error) {
	frame, err := s.query.Query(name, filters, columns)
	if err != nil {
		return nil, err
	}
	v, err := frame.Collect()
	if err != nil {
		return nil, err
	}
	s.logger.Debug("collected view",
		zap.String("dataset", name),
		zap.Int("filters", len(filters)),
		zap.Int("rows", v.Len()))
	return v, nil
}

// fiscalYear picks the fiscal year out of an equality filter on the fiscal
// year column, for period labels. Zero when there is none.
func (s *Service) fiscalYear(filters []query.Clause) int {
	for _, c := range filters {
		if c.Column != s.fiscal.Year || c.Op != query.OpEq {
			continue
		}
		if f, ok := dataset.ToFloat(c.Value); ok {
			return int(f)
		}
	}
	return 0
}

// emptyWarning logs results built from no rows.
func (s *Service) emptyWarning(chart string, w *models.EmptyResultWarning) {
	if w != nil {
		s.logger.Info("empty chart result", zap.String("chart", chart), zap.String("reason", w.Reason))
	}
}
