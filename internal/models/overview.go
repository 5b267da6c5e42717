package models

// AmountKPI is the fiscal-year-to-date total of one amount column.
type AmountKPI struct {
	Key    string `json:"key"`
	Column string `json:"column"`
	KPI
}

// Overview is the headline panel of the money moved page: one KPI per
// configured amount column plus the progress chart and heatmap for the
// selected amount.
type Overview struct {
	FiscalYear int            `json:"fiscal_year"`
	Label      string         `json:"label"`
	KPIs       []AmountKPI    `json:"kpis"`
	Cumulative *Cumulative    `json:"cumulative"`
	Calendar   *CalendarPivot `json:"calendar"`
}
