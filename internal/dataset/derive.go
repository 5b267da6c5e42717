package dataset

import (
	"fmt"

	"moneymoved/internal/fiscal"
)

// FiscalNames are the columns derived from one date column.
type FiscalNames struct {
	Year      string
	Period    string
	MonthYear string
	Week      string
	DayOfWeek string
}

// FiscalColumns returns the derived column names for dateColumn, e.g.
// payment_date_fy and payment_date_fm for payment_date.
func FiscalColumns(dateColumn string) FiscalNames {
	return FiscalNames{
		Year:      dateColumn + "_fy",
		Period:    dateColumn + "_fm",
		MonthYear: dateColumn + "_calendar_monthyear",
		Week:      dateColumn + "_week_of_fy",
		DayOfWeek: dateColumn + "_day_of_week",
	}
}

// deriveFiscal appends fiscal year, period, label, week and weekday columns
// computed from the named date column. Columns already present are kept.
func deriveFiscal(cols []*Column, dateColumn string, cal fiscal.Calendar) ([]*Column, error) {
	var src *Column
	existing := make(map[string]bool, len(cols))
	for _, c := range cols {
		existing[c.Name()] = true
		if c.Name() == dateColumn {
			src = c
		}
	}
	if src == nil {
		return nil, &SchemaError{Column: dateColumn, Reason: "fiscal date column not found"}
	}
	if src.Kind() != KindDate {
		return nil, &SchemaError{Column: dateColumn, Reason: fmt.Sprintf("fiscal date column is %s, want date", src.Kind())}
	}

	n := src.Len()
	fy := make([]float64, n)
	fm := make([]float64, n)
	label := make([]string, n)
	week := make([]float64, n)
	dow := make([]string, n)
	present := make([]bool, n)

	for i := 0; i < n; i++ {
		t, ok := src.Date(i)
		if !ok {
			continue
		}
		present[i] = true
		fy[i] = float64(cal.Year(t))
		fm[i] = float64(cal.Index(t))
		label[i] = cal.Label(t)
		week[i] = float64(cal.WeekOfYear(t))
		dow[i] = fiscal.DayName(fiscal.DayIndex(t))
	}

	names := FiscalColumns(dateColumn)
	derived := []*Column{
		NewNumberColumn(names.Year, fy, present),
		NewNumberColumn(names.Period, fm, present),
		NewStringColumn(names.MonthYear, label, present),
		NewNumberColumn(names.Week, week, present),
		NewStringColumn(names.DayOfWeek, dow, present),
	}
	for _, c := range derived {
		if !existing[c.Name()] {
			cols = append(cols, c)
		}
	}
	return cols, nil
}
