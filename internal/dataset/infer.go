package dataset

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// dateLayouts are tried in order when a cell may hold a date.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.000000",
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	"2006/01/02",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
}

// parseDate tries every known layout.
func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseNumber parses an amount, dropping currency symbols and thousands
// separators. Parentheses mark a negative value: (100.00) is -100.
func parseNumber(s string) (float64, bool) {
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		s = "-" + s[1:len(s)-1]
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// inferColumn picks the narrowest kind that fits every present cell. Cells
// are nil, string, float64, int64 or time.Time.
func inferColumn(name string, cells []any, forceDate bool) *Column {
	if forceDate {
		return dateColumn(name, cells)
	}

	seen := 0
	allNumbers, allDates := true, true
	for _, c := range cells {
		if c == nil {
			continue
		}
		seen++
		switch v := c.(type) {
		case float64, int64:
			allDates = false
		case time.Time:
			allNumbers = false
		case string:
			if allNumbers {
				if _, ok := parseNumber(v); !ok {
					allNumbers = false
				}
			}
			if allDates {
				if _, ok := parseDate(v); !ok {
					allDates = false
				}
			}
		default:
			allNumbers, allDates = false, false
		}
		if !allNumbers && !allDates {
			break
		}
	}

	switch {
	case seen == 0:
		return stringColumn(name, cells)
	case allNumbers:
		return numberColumn(name, cells)
	case allDates:
		return dateColumn(name, cells)
	default:
		return stringColumn(name, cells)
	}
}

func numberColumn(name string, cells []any) *Column {
	vals := make([]float64, len(cells))
	present := make([]bool, len(cells))
	for i, c := range cells {
		switch v := c.(type) {
		case float64:
			vals[i], present[i] = v, true
		case int64:
			vals[i], present[i] = float64(v), true
		case string:
			vals[i], present[i] = parseNumber(v)
		}
	}
	return NewNumberColumn(name, vals, present)
}

func dateColumn(name string, cells []any) *Column {
	vals := make([]time.Time, len(cells))
	present := make([]bool, len(cells))
	for i, c := range cells {
		switch v := c.(type) {
		case time.Time:
			vals[i], present[i] = v, true
		case string:
			vals[i], present[i] = parseDate(v)
		}
	}
	return NewDateColumn(name, vals, present)
}

func stringColumn(name string, cells []any) *Column {
	vals := make([]string, len(cells))
	present := make([]bool, len(cells))
	for i, c := range cells {
		switch v := c.(type) {
		case nil:
		case string:
			vals[i], present[i] = v, true
		case float64:
			vals[i], present[i] = strconv.FormatFloat(v, 'f', -1, 64), true
		case int64:
			vals[i], present[i] = strconv.FormatInt(v, 10), true
		case time.Time:
			vals[i], present[i] = v.Format("2006-01-02"), true
		}
	}
	return NewStringColumn(name, vals, present)
}
