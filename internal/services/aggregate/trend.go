package aggregate

import (
	"sort"
	"strings"

	"moneymoved/internal/dataset"
	"moneymoved/internal/models"
	"moneymoved/internal/services/classifier"
)

// TrendParams configures the monthly trend pipeline.
type TrendParams struct {
	PeriodColumn string
	AmountColumn string
	// SplitColumn optionally splits the trend into one series per value.
	SplitColumn string
	FiscalYear  int
}

// Trend sums the amount column per fiscal period. Without a split column it
// returns one series named after the amount column. With one, every distinct
// split value gets its own series, sorted by name with Unknown last; null
// split values are collected under Unknown.
func (s *Service) Trend(t Table, p TrendParams) (*models.SeriesSet, error) {
	if err := requireColumn(t, p.PeriodColumn, dataset.KindNumber); err != nil {
		return nil, err
	}
	if err := requireColumn(t, p.AmountColumn, dataset.KindNumber); err != nil {
		return nil, err
	}

	out := &models.SeriesSet{}
	if t.Len() == 0 {
		out.Warning = empty("no rows for trend series")
	}
	if p.SplitColumn == "" {
		ps := s.sumByPeriod(t, allRows(t), p.PeriodColumn, p.AmountColumn)
		out.Series = []models.Series{s.series(p.AmountColumn, p.FiscalYear, ps)}
		return out, nil
	}
	if err := requireColumn(t, p.SplitColumn); err != nil {
		return nil, err
	}

	groups := make(map[string][]int)
	for row := 0; row < t.Len(); row++ {
		key, ok := t.Text(row, p.SplitColumn)
		if !ok || strings.TrimSpace(key) == "" {
			key = models.UnknownEntity
		}
		groups[key] = append(groups[key], row)
	}
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if (names[i] == models.UnknownEntity) != (names[j] == models.UnknownEntity) {
			return names[j] == models.UnknownEntity
		}
		return names[i] < names[j]
	})

	out.Series = make([]models.Series, 0, len(names))
	for _, name := range names {
		ps := s.sumByPeriod(t, groups[name], p.PeriodColumn, p.AmountColumn)
		out.Series = append(out.Series, s.series(name, p.FiscalYear, ps))
	}
	return out, nil
}

// GroupedParams configures the recurring versus one-time pipeline.
type GroupedParams struct {
	PeriodColumn string
	AmountColumn string
	GroupColumn  string
	FiscalYear   int
}

// Grouped sums the amount column per fiscal period and frequency category.
// Every category in classifier.Categories is always present, in that order,
// and raw values the classifier does not recognise land in Unspecified.
func (s *Service) Grouped(t Table, p GroupedParams) (*models.SeriesSet, error) {
	if err := requireColumn(t, p.PeriodColumn, dataset.KindNumber); err != nil {
		return nil, err
	}
	if err := requireColumn(t, p.AmountColumn, dataset.KindNumber); err != nil {
		return nil, err
	}
	if err := requireColumn(t, p.GroupColumn); err != nil {
		return nil, err
	}

	groups := make(map[classifier.Category][]int, len(classifier.Categories))
	for row := 0; row < t.Len(); row++ {
		raw, ok := t.Text(row, p.GroupColumn)
		cat := classifier.ClassifyValue(raw, ok)
		groups[cat] = append(groups[cat], row)
	}

	out := &models.SeriesSet{Series: make([]models.Series, 0, len(classifier.Categories))}
	for _, cat := range classifier.Categories {
		ps := s.sumByPeriod(t, groups[cat], p.PeriodColumn, p.AmountColumn)
		out.Series = append(out.Series, s.series(string(cat), p.FiscalYear, ps))
	}
	if t.Len() == 0 {
		out.Warning = empty("no rows for grouped series")
	}
	return out, nil
}
