// Package aggregate turns filtered transaction rows into the fiscal-period
// series, rankings, flows and pivots the dashboard charts draw. Every
// pipeline is a pure function of its input rows and parameters.
package aggregate

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"moneymoved/internal/dataset"
	"moneymoved/internal/fiscal"
	"moneymoved/internal/models"
)

// Table is the row access the pipelines need. query.View implements it.
type Table interface {
	Len() int
	Kind(column string) (dataset.Kind, bool)
	Number(row int, column string) (float64, bool)
	Text(row int, column string) (string, bool)
	Date(row int, column string) (time.Time, bool)
}

// Service runs the aggregation pipelines for one fiscal calendar.
type Service struct {
	calendar fiscal.Calendar
	logger   *zap.Logger
}

// New creates an aggregation service.
func New(cal fiscal.Calendar, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{calendar: cal, logger: logger}
}

// Calendar returns the fiscal calendar in use.
func (s *Service) Calendar() fiscal.Calendar { return s.calendar }

func requireColumn(t Table, column string, kinds ...dataset.Kind) error {
	if column == "" {
		return &dataset.SchemaError{Column: column, Reason: "column name is empty"}
	}
	k, ok := t.Kind(column)
	if !ok {
		return &dataset.SchemaError{Column: column, Reason: "not in query result"}
	}
	if len(kinds) == 0 {
		return nil
	}
	for _, want := range kinds {
		if k == want {
			return nil
		}
	}
	return &dataset.SchemaError{Column: column, Reason: fmt.Sprintf("is %s, want %s", k, kinds[0])}
}

// period reads a fiscal index cell. Values outside 1..Periods, fractional
// values and nulls report false.
func (s *Service) period(t Table, row int, column string) (int, bool) {
	v, ok := t.Number(row, column)
	if !ok || v != math.Trunc(v) {
		return 0, false
	}
	idx := int(v)
	if idx < 1 || idx > s.calendar.Periods {
		return 0, false
	}
	return idx, true
}

func amount(t Table, row int, column string) (decimal.Decimal, bool) {
	v, ok := t.Number(row, column)
	if !ok {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(v), true
}

// periodSums groups rows by fiscal period and sums the amount column. A
// period is present once any row falls into it, even if its amounts are
// all null.
type periodSums struct {
	sums    map[int]decimal.Decimal
	present map[int]bool
	skipped int
}

func (s *Service) sumByPeriod(t Table, rows []int, periodCol, amountCol string) periodSums {
	ps := periodSums{sums: make(map[int]decimal.Decimal), present: make(map[int]bool)}
	for _, row := range rows {
		idx, ok := s.period(t, row, periodCol)
		if !ok {
			ps.skipped++
			continue
		}
		ps.present[idx] = true
		if v, ok := amount(t, row, amountCol); ok {
			ps.sums[idx] = ps.sums[idx].Add(v)
		}
	}
	return ps
}

// series lays sums out over every fiscal period. Periods without rows get
// a nil value.
func (s *Service) series(name string, fy int, ps periodSums) models.Series {
	points := make([]models.Point, s.calendar.Periods)
	for i := range points {
		idx := i + 1
		points[i] = models.Point{Index: idx, Label: s.calendar.PeriodLabel(fy, idx)}
		if ps.present[idx] {
			points[i].Value = ptr(ps.sums[idx].InexactFloat64())
		}
	}
	return models.Series{Name: name, Points: points}
}

func allRows(t Table) []int {
	rows := make([]int, t.Len())
	for i := range rows {
		rows[i] = i
	}
	return rows
}

func ptr(v float64) *float64 { return &v }

func empty(reason string) *models.EmptyResultWarning {
	return &models.EmptyResultWarning{Reason: reason}
}
