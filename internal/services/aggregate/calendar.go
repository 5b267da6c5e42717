package aggregate

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"moneymoved/internal/dataset"
	"moneymoved/internal/fiscal"
	"moneymoved/internal/models"
)

// CalendarParams configures the day-of-week by fiscal-week pivot.
type CalendarParams struct {
	DateColumn   string
	AmountColumn string
	// DayColumn and WeekColumn are optional precomputed placements. When
	// empty the placement is derived from DateColumn.
	DayColumn  string
	WeekColumn string
	// FiscalYear selects the year whose dates are pivoted. Zero means the
	// latest fiscal year among the dated rows.
	FiscalYear int
}

// CalendarPivot sums amounts into a 7 x 53 grid covering one fiscal year.
// Empty cells are zero and their first date is nil. Rows that cannot be
// placed and dated rows from other fiscal years are skipped; undated rows
// placed through DayColumn and WeekColumn are always kept.
func (s *Service) CalendarPivot(t Table, p CalendarParams) (*models.CalendarPivot, error) {
	if err := requireColumn(t, p.DateColumn, dataset.KindDate); err != nil {
		return nil, err
	}
	if err := requireColumn(t, p.AmountColumn, dataset.KindNumber); err != nil {
		return nil, err
	}
	if p.DayColumn != "" {
		if err := requireColumn(t, p.DayColumn); err != nil {
			return nil, err
		}
	}
	if p.WeekColumn != "" {
		if err := requireColumn(t, p.WeekColumn, dataset.KindNumber); err != nil {
			return nil, err
		}
	}

	sums := make([][]decimal.Decimal, fiscal.DaysInWeek)
	first := make([][]*time.Time, fiscal.DaysInWeek)
	for d := range sums {
		sums[d] = make([]decimal.Decimal, fiscal.WeeksInYear)
		first[d] = make([]*time.Time, fiscal.WeeksInYear)
	}

	fy := p.FiscalYear
	if fy == 0 {
		fy = s.latestYear(t, p.DateColumn)
	}

	total := decimal.Zero
	skipped, otherYears := 0, 0
	for row := 0; row < t.Len(); row++ {
		date, hasDate := t.Date(row, p.DateColumn)
		if hasDate && s.calendar.Year(date) != fy {
			otherYears++
			continue
		}
		day, week, ok := s.place(t, row, p, date, hasDate)
		if !ok {
			skipped++
			continue
		}
		v, ok := amount(t, row, p.AmountColumn)
		if !ok {
			continue
		}
		sums[day][week-1] = sums[day][week-1].Add(v)
		total = total.Add(v)
		if hasDate {
			if cur := first[day][week-1]; cur == nil || date.Before(*cur) {
				d := date
				first[day][week-1] = &d
			}
		}
	}
	if skipped > 0 {
		s.logger.Debug("calendar pivot: rows without placement", zap.Int("skipped", skipped))
	}
	if otherYears > 0 {
		s.logger.Debug("calendar pivot: rows outside fiscal year",
			zap.Int("fiscal_year", fy), zap.Int("skipped", otherYears))
	}

	out := &models.CalendarPivot{
		FiscalYear: fy,
		Days:       append([]string(nil), fiscal.DayNames...),
		Weeks:      make([]int, fiscal.WeeksInYear),
		Amounts:    make([][]float64, fiscal.DaysInWeek),
		FirstDates: first,
		Total:      total.InexactFloat64(),
	}
	for w := range out.Weeks {
		out.Weeks[w] = w + 1
	}
	for d := range sums {
		out.Amounts[d] = make([]float64, fiscal.WeeksInYear)
		for w, v := range sums[d] {
			out.Amounts[d][w] = v.InexactFloat64()
		}
	}
	if t.Len() == 0 {
		out.Warning = empty("no rows for calendar pivot")
	}
	return out, nil
}

func (s *Service) latestYear(t Table, dateColumn string) int {
	latest := 0
	for row := 0; row < t.Len(); row++ {
		if date, ok := t.Date(row, dateColumn); ok {
			latest = max(latest, s.calendar.Year(date))
		}
	}
	return latest
}

func (s *Service) place(t Table, row int, p CalendarParams, date time.Time, hasDate bool) (day, week int, ok bool) {
	switch {
	case p.DayColumn != "":
		name, present := t.Text(row, p.DayColumn)
		if !present {
			return 0, 0, false
		}
		if day, ok = fiscal.ParseDay(name); !ok {
			return 0, 0, false
		}
	case hasDate:
		day = fiscal.DayIndex(date)
	default:
		return 0, 0, false
	}

	switch {
	case p.WeekColumn != "":
		v, present := t.Number(row, p.WeekColumn)
		if !present || v != math.Trunc(v) {
			return 0, 0, false
		}
		week = int(v)
	case hasDate:
		week = s.calendar.WeekOfYear(date)
	default:
		return 0, 0, false
	}
	if week < 1 || week > fiscal.WeeksInYear {
		return 0, 0, false
	}
	return day, week, true
}
