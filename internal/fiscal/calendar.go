// Package fiscal maps calendar dates onto a fiscal year that starts in a
// configurable month.
package fiscal

import (
	"fmt"
	"strings"
	"time"
)

// WeeksInYear is the number of fiscal weeks a calendar pivot spans. A fiscal
// year of 365 or 366 days touches at most 53 seven-day buckets.
const WeeksInYear = 53

// DaysInWeek is the number of day-of-week rows in a calendar pivot.
const DaysInWeek = 7

// DayNames lists day-of-week labels in pivot order, Monday first.
var DayNames = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// Calendar describes a fiscal year.
type Calendar struct {
	// StartMonth is the first calendar month of the fiscal year.
	StartMonth time.Month
	// Periods is the number of fiscal periods a series is padded to.
	Periods int
}

// Default returns the July-start, twelve-period calendar.
func Default() Calendar {
	return Calendar{StartMonth: time.July, Periods: 12}
}

// New returns a calendar, falling back to defaults for out-of-range values.
func New(start time.Month, periods int) Calendar {
	c := Default()
	if start >= time.January && start <= time.December {
		c.StartMonth = start
	}
	if periods > 0 {
		c.Periods = periods
	}
	return c
}

// Validate reports whether the calendar can be used for aggregation.
func (c Calendar) Validate() error {
	if c.StartMonth < time.January || c.StartMonth > time.December {
		return fmt.Errorf("fiscal start month %d out of range", c.StartMonth)
	}
	if c.Periods < 1 || c.Periods > 12 {
		return fmt.Errorf("fiscal periods %d out of range 1..12", c.Periods)
	}
	return nil
}

// Index returns the 1-based fiscal period of t.
func (c Calendar) Index(t time.Time) int {
	return (int(t.Month())-int(c.StartMonth)+12)%12 + 1
}

// Year returns the fiscal year of t, named after the calendar year in which
// the fiscal year ends.
func (c Calendar) Year(t time.Time) int {
	if c.StartMonth == time.January || t.Month() < c.StartMonth {
		return t.Year()
	}
	return t.Year() + 1
}

// YearStart returns midnight UTC of the first day of fiscal year fy.
func (c Calendar) YearStart(fy int) time.Time {
	year := fy
	if c.StartMonth != time.January {
		year = fy - 1
	}
	return time.Date(year, c.StartMonth, 1, 0, 0, 0, 0, time.UTC)
}

// PeriodStart returns the first day of fiscal period index in fiscal year fy.
func (c Calendar) PeriodStart(fy, index int) time.Time {
	return c.YearStart(fy).AddDate(0, index-1, 0)
}

// Label formats t as the month label of its fiscal period, e.g. "Jul '24".
func (c Calendar) Label(t time.Time) string {
	return t.Format("Jan '06")
}

// PeriodLabel returns the display label for a fiscal period. When fy is zero
// only the month abbreviation is returned.
func (c Calendar) PeriodLabel(fy, index int) string {
	if fy == 0 {
		month := time.Month((int(c.StartMonth)-1+index-1)%12 + 1)
		return month.String()[:3]
	}
	return c.Label(c.PeriodStart(fy, index))
}

// YearLabel formats a fiscal year for display, e.g. "FY2025".
func (c Calendar) YearLabel(fy int) string {
	return fmt.Sprintf("FY%d", fy)
}

// WeekOfYear returns the 1-based seven-day bucket of t counted from the first
// day of its fiscal year.
func (c Calendar) WeekOfYear(t time.Time) int {
	start := c.YearStart(c.Year(t))
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	days := int(day.Sub(start).Hours() / 24)
	return days/7 + 1
}

// DayIndex returns the 0-based Monday-first day of week of t.
func DayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// DayName returns the Monday-first day label for a 0-based day index.
func DayName(i int) string {
	if i < 0 || i >= len(DayNames) {
		return ""
	}
	return DayNames[i]
}

// ParseDay maps a day-of-week label (full or three-letter, any case) to its
// Monday-first index.
func ParseDay(name string) (int, bool) {
	if len(name) < 3 {
		return 0, false
	}
	for i, d := range DayNames {
		if len(name) == 3 && strings.EqualFold(name, d[:3]) {
			return i, true
		}
		if strings.EqualFold(name, d) {
			return i, true
		}
	}
	return 0, false
}
