package analytics

import (
	"context"
	"strconv"

	"golang.org/x/sync/errgroup"

	"moneymoved/internal/models"
	"moneymoved/internal/query"
	"moneymoved/internal/services/aggregate"
	"moneymoved/internal/services/matcher"
)

// CumulativeSeries is the goal-progress chart of amountColumn against
// target.
func (s *Service) CumulativeSeries(name string, filters []query.Clause, amountColumn string, target float64) (*models.Cumulative, error) {
	v, err := s.collect(name, filters, s.fiscal.Period, amountColumn)
	if err != nil {
		return nil, err
	}
	out, err := s.agg.Cumulative(v, aggregate.CumulativeParams{
		PeriodColumn: s.fiscal.Period,
		AmountColumn: amountColumn,
		Target:       target,
		FiscalYear:   s.fiscalYear(filters),
	})
	if err != nil {
		return nil, err
	}
	s.emptyWarning("cumulative", out.Warning)
	return out, nil
}

// TrendSeries is the monthly trend, split by split when it is non-empty.
func (s *Service) TrendSeries(name string, filters []query.Clause, amountColumn, split string) (*models.SeriesSet, error) {
	cols := []string{s.fiscal.Period, amountColumn}
	if split != "" {
		cols = append(cols, split)
	}
	v, err := s.collect(name, filters, cols...)
	if err != nil {
		return nil, err
	}
	out, err := s.agg.Trend(v, aggregate.TrendParams{
		PeriodColumn: s.fiscal.Period,
		AmountColumn: amountColumn,
		SplitColumn:  split,
		FiscalYear:   s.fiscalYear(filters),
	})
	if err != nil {
		return nil, err
	}
	s.emptyWarning("trend", out.Warning)
	return out, nil
}

// GroupedSeries is the recurring versus one-time chart. An empty
// groupColumn uses the configured frequency column.
func (s *Service) GroupedSeries(name string, filters []query.Clause, amountColumn, groupColumn string) (*models.SeriesSet, error) {
	if groupColumn == "" {
		groupColumn = s.opts.FrequencyColumn
	}
	v, err := s.collect(name, filters, s.fiscal.Period, amountColumn, groupColumn)
	if err != nil {
		return nil, err
	}
	out, err := s.agg.Grouped(v, aggregate.GroupedParams{
		PeriodColumn: s.fiscal.Period,
		AmountColumn: amountColumn,
		GroupColumn:  groupColumn,
		FiscalYear:   s.fiscalYear(filters),
	})
	if err != nil {
		return nil, err
	}
	s.emptyWarning("grouped", out.Warning)
	return out, nil
}

// RankingRequest selects the two fiscal years to compare.
type RankingRequest struct {
	Filters      []query.Clause
	AmountColumn string
	Current      int
	Prior        int
	// TopN of zero uses the configured default; negative keeps everyone.
	TopN   int
	Assets *matcher.AssetRegistry
}

// TopNRanking compares entity totals between two fiscal years.
func (s *Service) TopNRanking(name string, req RankingRequest) (*models.Ranking, error) {
	filters := append([]query.Clause{}, req.Filters...)
	filters = append(filters, query.In(s.fiscal.Year, req.Current, req.Prior))

	v, err := s.collect(name, filters, s.opts.EntityColumn, s.fiscal.Year, req.AmountColumn)
	if err != nil {
		return nil, err
	}
	topN := req.TopN
	if topN == 0 {
		topN = s.opts.DefaultTopN
	}
	out, err := s.agg.Ranking(v, aggregate.RankingParams{
		EntityColumn: s.opts.EntityColumn,
		PeriodColumn: s.fiscal.Year,
		AmountColumn: req.AmountColumn,
		Current:      strconv.Itoa(req.Current),
		Prior:        strconv.Itoa(req.Prior),
		TopN:         topN,
		Assets:       req.Assets,
	})
	if err != nil {
		return nil, err
	}
	s.emptyWarning("ranking", out.Warning)
	return out, nil
}

// FlowAggregation is the entity to frequency to outcome flow of the
// configured flow amount. mode is "actual" or "target".
func (s *Service) FlowAggregation(name string, filters []query.Clause, mode string, target float64) (*models.Flow, error) {
	amount := s.opts.FlowAmount.Column
	v, err := s.collect(name, filters, s.opts.EntityColumn, s.opts.FrequencyColumn, amount)
	if err != nil {
		return nil, err
	}
	out, err := s.agg.Flow(v, aggregate.FlowParams{
		EntityColumn:      s.opts.EntityColumn,
		FrequencyColumn:   s.opts.FrequencyColumn,
		AmountColumn:      amount,
		Mode:              mode,
		Target:            target,
		ClassifyFrequency: true,
	})
	if err != nil {
		return nil, err
	}
	s.emptyWarning("flow", out.Warning)
	return out, nil
}

// FlowYearFilters selects the pledges that started in fy.
func (s *Service) FlowYearFilters(fy int) []query.Clause {
	if fy == 0 || s.opts.FlowYearColumn == "" {
		return nil
	}
	return []query.Clause{query.Eq(s.opts.FlowYearColumn, fy)}
}

// CalendarPivot is the day-of-week by fiscal-week heatmap of amountColumn.
func (s *Service) CalendarPivot(name string, filters []query.Clause, amountColumn string) (*models.CalendarPivot, error) {
	v, err := s.collect(name, filters, s.opts.FiscalDate, amountColumn)
	if err != nil {
		return nil, err
	}
	out, err := s.agg.CalendarPivot(v, aggregate.CalendarParams{
		DateColumn:   s.opts.FiscalDate,
		AmountColumn: amountColumn,
		FiscalYear:   s.fiscalYear(filters),
	})
	if err != nil {
		return nil, err
	}
	s.emptyWarning("calendar", out.Warning)
	return out, nil
}

// Overview builds the headline panel for fy: a KPI per configured amount
// plus the progress chart and heatmap of the selected amount. The parts are
// computed concurrently.
func (s *Service) Overview(ctx context.Context, name string, fy int, amountKey string) (*models.Overview, error) {
	selected, err := s.Amount(amountKey)
	if err != nil {
		return nil, err
	}
	filters := s.MoneyMovedFilters(fy)
	out := &models.Overview{
		FiscalYear: fy,
		KPIs:       make([]models.AmountKPI, len(s.opts.Amounts)),
	}
	if fy != 0 {
		out.Label = s.opts.Calendar.YearLabel(fy)
	}

	g, ctx := errgroup.WithContext(ctx)
	for i, a := range s.opts.Amounts {
		i, a := i, a
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			c, err := s.CumulativeSeries(name, filters, a.Column, a.Target)
			if err != nil {
				return err
			}
			out.KPIs[i] = models.AmountKPI{Key: a.Key, Column: a.Column, KPI: c.KPI}
			if a.Key == selected.Key {
				out.Cumulative = c
			}
			return nil
		})
	}
	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		c, err := s.CalendarPivot(name, filters, selected.Column)
		if err != nil {
			return err
		}
		out.Calendar = c
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
