package aggregate

import (
	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"moneymoved/internal/dataset"
	"moneymoved/internal/models"
)

// MilestoneFractions are the target fractions marked on the progress chart.
var MilestoneFractions = []float64{0.25, 0.50, 0.75, 1.00}

// CumulativeParams configures the goal-progress pipeline.
type CumulativeParams struct {
	PeriodColumn string
	AmountColumn string
	Target       float64
	// FiscalYear only affects point labels. Zero labels points by month.
	FiscalYear int
}

// Cumulative builds the running-total series. Interior periods without rows
// carry the previous total forward; periods after the last one with rows
// are nil. The current period is the last one whose own sum is non-zero.
func (s *Service) Cumulative(t Table, p CumulativeParams) (*models.Cumulative, error) {
	if err := requireColumn(t, p.PeriodColumn, dataset.KindNumber); err != nil {
		return nil, err
	}
	if err := requireColumn(t, p.AmountColumn, dataset.KindNumber); err != nil {
		return nil, err
	}

	ps := s.sumByPeriod(t, allRows(t), p.PeriodColumn, p.AmountColumn)
	if ps.skipped > 0 {
		s.logger.Debug("cumulative: rows outside fiscal periods",
			zap.Int("skipped", ps.skipped), zap.String("column", p.PeriodColumn))
	}

	last, current := 0, 0
	for idx := 1; idx <= s.calendar.Periods; idx++ {
		if ps.present[idx] {
			last = idx
		}
		if !ps.sums[idx].IsZero() {
			current = idx
		}
	}

	out := &models.Cumulative{
		Series: models.Series{Name: p.AmountColumn, Points: make([]models.Point, s.calendar.Periods)},
		Target: p.Target,
	}
	running := decimal.Zero
	var currentValue decimal.Decimal
	for i := range out.Series.Points {
		idx := i + 1
		pt := models.Point{Index: idx, Label: s.calendar.PeriodLabel(p.FiscalYear, idx)}
		if idx <= last {
			running = running.Add(ps.sums[idx])
			pt.Value = ptr(running.InexactFloat64())
		}
		if idx == current {
			currentValue = running
		}
		out.Series.Points[i] = pt
	}

	out.CurrentIndex = current
	out.CurrentValue = currentValue.InexactFloat64()
	if current > 0 && p.Target > 0 {
		out.TargetLine = &models.TargetLine{
			FromIndex: current,
			FromValue: out.CurrentValue,
			ToIndex:   s.calendar.Periods,
			ToValue:   p.Target,
		}
	}
	out.Milestones = milestones(currentValue, p.Target)
	out.KPI = models.KPI{Total: running.InexactFloat64(), Goal: p.Target}
	if p.Target > 0 {
		out.KPI.PercentOfGoal = running.Div(decimal.NewFromFloat(p.Target)).
			Mul(decimal.NewFromInt(100)).Round(1).InexactFloat64()
	}
	if t.Len() == 0 {
		out.Warning = empty("no rows for cumulative series")
	}
	return out, nil
}

// milestones compares the current cumulative value against each fixed
// fraction of target. A non-positive target yields none.
func milestones(current decimal.Decimal, target float64) []models.Milestone {
	if target <= 0 {
		return []models.Milestone{}
	}
	goal := decimal.NewFromFloat(target)
	out := make([]models.Milestone, 0, len(MilestoneFractions))
	for _, f := range MilestoneFractions {
		threshold := goal.Mul(decimal.NewFromFloat(f))
		m := models.Milestone{
			Fraction:  f,
			Threshold: threshold.InexactFloat64(),
			Label:     "$" + humanize.Comma(threshold.Round(0).IntPart()),
			Status:    models.MilestoneNotYet,
		}
		if f == 1 {
			m.Label += " Goal"
		}
		if current.GreaterThanOrEqual(threshold) {
			m.Achieved = true
			m.Status = models.MilestoneAchieved
		}
		out = append(out, m)
	}
	return out
}
