package models

import "time"

// CalendarPivot is the day-of-week by fiscal-week heatmap. Amounts has one
// row per day and one column per week; empty cells are zero. FirstDates
// holds the earliest transaction date per cell, nil when the cell is empty.
// FiscalYear is zero when no row carried a date.
type CalendarPivot struct {
	FiscalYear int                 `json:"fiscal_year,omitempty"`
	Days       []string            `json:"days"`
	Weeks      []int               `json:"weeks"`
	Amounts    [][]float64         `json:"amounts"`
	FirstDates [][]*time.Time      `json:"first_dates"`
	Total      float64             `json:"total"`
	Warning    *EmptyResultWarning `json:"warning,omitempty"`
}
