package models

// EmptyResultWarning marks a result built from zero matching rows. It is
// attached to the result, never returned as an error: no data for a fiscal
// year yet is an expected state.
type EmptyResultWarning struct {
	Reason string `json:"reason"`
}

// Point is one fiscal period of a series. A nil Value means the period has
// no data, which is different from a zero total.
type Point struct {
	Index int      `json:"index"`
	Label string   `json:"label"`
	Value *float64 `json:"value"`
}

// Series is an ordered, padded run of points.
type Series struct {
	Name   string  `json:"name"`
	Points []Point `json:"points"`
}

// Values returns the point values in order.
func (s Series) Values() []*float64 {
	out := make([]*float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Value
	}
	return out
}

// Milestone is a fixed fraction of the fundraising target.
type Milestone struct {
	Fraction  float64 `json:"fraction"`
	Threshold float64 `json:"threshold"`
	Label     string  `json:"label"`
	Status    string  `json:"status"`
	Achieved  bool    `json:"achieved"`
}

// Milestone statuses.
const (
	MilestoneAchieved = "Achieved"
	MilestoneNotYet   = "not yet"
)

// TargetLine is the straight segment from the current cumulative value to
// the target at the last fiscal period.
type TargetLine struct {
	FromIndex int     `json:"from_index"`
	FromValue float64 `json:"from_value"`
	ToIndex   int     `json:"to_index"`
	ToValue   float64 `json:"to_value"`
}

// KPI is the fiscal-year-to-date headline figure.
type KPI struct {
	Total         float64 `json:"total"`
	Goal          float64 `json:"goal"`
	PercentOfGoal float64 `json:"percent_of_goal"`
}

// Cumulative is the goal-progress chart.
type Cumulative struct {
	Series       Series              `json:"series"`
	CurrentIndex int                 `json:"current_index"`
	CurrentValue float64             `json:"current_value"`
	Target       float64             `json:"target"`
	TargetLine   *TargetLine         `json:"target_line,omitempty"`
	Milestones   []Milestone         `json:"milestones"`
	KPI          KPI                 `json:"kpi"`
	Warning      *EmptyResultWarning `json:"warning,omitempty"`
}

// Achieved returns the milestones that have been reached.
func (c *Cumulative) Achieved() []Milestone {
	var out []Milestone
	for _, m := range c.Milestones {
		if m.Achieved {
			out = append(out, m)
		}
	}
	return out
}

// SeriesSet is one or more named series, as used by the trend and grouped
// charts.
type SeriesSet struct {
	Series  []Series            `json:"series"`
	Warning *EmptyResultWarning `json:"warning,omitempty"`
}

// Get returns the series with the given name.
func (s *SeriesSet) Get(name string) (Series, bool) {
	for _, sr := range s.Series {
		if sr.Name == name {
			return sr, true
		}
	}
	return Series{}, false
}
