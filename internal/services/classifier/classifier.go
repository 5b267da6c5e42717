// Package classifier normalizes free-text pledge frequencies into the fixed
// categories the grouped and flow charts use.
package classifier

import (
	"strings"
)

// Category is a normalized payment frequency.
type Category string

const (
	Recurring   Category = "Recurring"
	OneTime     Category = "One-Time"
	Unspecified Category = "Unspecified"
)

// Categories lists every category in display order.
var Categories = []Category{Recurring, OneTime, Unspecified}

// Recurring frequency keywords (lowercase)
var RecurringKeywords = []string{
	"recurring", "monthly", "month",
	"quarterly", "quarter",
	"annual", "annually", "yearly", "year",
	"weekly", "biweekly", "bi-weekly",
	"subscription", "installment", "pledge",
}

// One-time frequency keywords (lowercase)
var OneTimeKeywords = []string{
	"one-time", "one time", "onetime",
	"one-off", "one off", "once",
	"single", "lump sum", "lump-sum",
}

// Placeholder values that carry no information (lowercase)
var EmptyValues = []string{
	"", "null", "none", "n/a", "na", "unknown", "-", "unspecified",
}

// Classify maps a raw frequency value to a category. Anything that is empty
// or unrecognized is Unspecified.
func Classify(raw string) Category {
	v := strings.ToLower(strings.TrimSpace(raw))

	for _, e := range EmptyValues {
		if v == e {
			return Unspecified
		}
	}

	// One-time is checked first: "one-time pledge" is not recurring
	for _, kw := range OneTimeKeywords {
		if strings.Contains(v, kw) {
			return OneTime
		}
	}
	for _, kw := range RecurringKeywords {
		if strings.Contains(v, kw) {
			return Recurring
		}
	}

	return Unspecified
}

// ClassifyValue is Classify for a possibly missing cell.
func ClassifyValue(raw string, ok bool) Category {
	if !ok {
		return Unspecified
	}
	return Classify(raw)
}
