package aggregate

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"moneymoved/internal/dataset"
	"moneymoved/internal/models"
	"moneymoved/internal/services/matcher"
)

// RankingParams configures the two-period top-N ranking.
type RankingParams struct {
	EntityColumn string
	PeriodColumn string
	AmountColumn string
	// Current and Prior are compared with the text form of PeriodColumn.
	Current string
	Prior   string
	// TopN <= 0 keeps every entity.
	TopN int
	// Assets, when set, attaches a logo key to every non-synthetic row.
	Assets  *matcher.AssetRegistry
	Matcher matcher.Matcher
}

type entityTotals struct {
	name    string
	current decimal.Decimal
	prior   decimal.Decimal
}

func (e *entityTotals) total() decimal.Decimal { return e.current.Add(e.prior) }

// Ranking ranks entities by current plus prior amount, descending, with ties
// kept in first-seen order. Rows past TopN are folded into a single Other
// row. Null or blank entity names are coalesced into Unknown before ranking.
// In the output Other and Unknown always come last, in that order.
func (s *Service) Ranking(t Table, p RankingParams) (*models.Ranking, error) {
	for _, col := range []string{p.EntityColumn, p.PeriodColumn} {
		if err := requireColumn(t, col); err != nil {
			return nil, err
		}
	}
	if err := requireColumn(t, p.AmountColumn, dataset.KindNumber); err != nil {
		return nil, err
	}

	var order []*entityTotals
	byName := make(map[string]*entityTotals)
	for row := 0; row < t.Len(); row++ {
		period, ok := t.Text(row, p.PeriodColumn)
		if !ok || (period != p.Current && period != p.Prior) {
			continue
		}
		name, ok := t.Text(row, p.EntityColumn)
		if !ok || strings.TrimSpace(name) == "" {
			name = models.UnknownEntity
		}
		e, seen := byName[name]
		if !seen {
			e = &entityTotals{name: name}
			byName[name] = e
			order = append(order, e)
		}
		v, ok := amount(t, row, p.AmountColumn)
		if !ok {
			continue
		}
		// A period equal to both labels counts once, as current.
		if period == p.Current {
			e.current = e.current.Add(v)
		} else {
			e.prior = e.prior.Add(v)
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return order[i].total().GreaterThan(order[j].total())
	})

	out := &models.Ranking{
		Current:       p.Current,
		Prior:         p.Prior,
		TopN:          p.TopN,
		TotalEntities: len(order),
	}
	keep := len(order)
	if p.TopN > 0 && p.TopN < keep {
		keep = p.TopN
	}

	var regular []models.RankingRow
	var unknown *models.RankingRow
	other := &entityTotals{name: models.OtherEntity}
	folded := 0
	for _, e := range order[keep:] {
		other.current = other.current.Add(e.current)
		other.prior = other.prior.Add(e.prior)
		folded++
	}
	for _, e := range order[:keep] {
		switch {
		case e.name == models.OtherEntity && folded > 0:
			other.current = other.current.Add(e.current)
			other.prior = other.prior.Add(e.prior)
			folded++
		case e.name == models.UnknownEntity:
			r := rankingRow(e, true)
			unknown = &r
		default:
			regular = append(regular, rankingRow(e, false))
		}
	}

	if p.Assets != nil {
		m := p.Matcher
		if m == nil {
			m = matcher.Heuristic{}
		}
		for i := range regular {
			if res, ok := m.Match(regular[i].Entity, p.Assets); ok {
				regular[i].Asset = res.Asset
				regular[i].AssetStrategy = string(res.Strategy)
			}
		}
	}

	out.Rows = make([]models.RankingRow, 0, len(regular)+2)
	out.Rows = append(out.Rows, regular...)
	if folded > 0 {
		r := rankingRow(other, true)
		r.Members = folded
		out.Rows = append(out.Rows, r)
	}
	if unknown != nil {
		out.Rows = append(out.Rows, *unknown)
	}
	out.FoldedEntities = folded
	if len(order) == 0 {
		out.Warning = empty("no rows for ranking periods")
	}
	return out, nil
}

func rankingRow(e *entityTotals, synthetic bool) models.RankingRow {
	return models.RankingRow{
		Entity:    e.name,
		Current:   e.current.InexactFloat64(),
		Prior:     e.prior.InexactFloat64(),
		Total:     e.total().InexactFloat64(),
		Synthetic: synthetic,
	}
}
