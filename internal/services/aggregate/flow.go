package aggregate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"moneymoved/internal/dataset"
	"moneymoved/internal/models"
	"moneymoved/internal/services/classifier"
)

// Flow view modes.
const (
	FlowActual = "actual"
	FlowTarget = "target"
)

// ParseFlowMode normalises a view mode. "gap" is accepted for FlowTarget.
func ParseFlowMode(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", FlowActual:
		return FlowActual, nil
	case FlowTarget, "gap", "gap-to-target":
		return FlowTarget, nil
	}
	return "", fmt.Errorf("unknown flow mode %q", s)
}

// FlowParams configures the entity to frequency to outcome flow.
type FlowParams struct {
	EntityColumn    string
	FrequencyColumn string
	AmountColumn    string
	Mode            string
	// Target is the fundraising goal used by FlowTarget mode.
	Target float64
	// ClassifyFrequency maps raw frequency values through the classifier
	// instead of using them verbatim.
	ClassifyFrequency bool
}

type flowKey struct{ entity, freq string }

// Flow builds the layered flow graph. In FlowTarget mode each frequency's
// share of Target is share = actual / total * Target and the positive part
// of share - actual is routed from a synthetic Remaining to Target entity
// through the frequency to Gap to Target, so the amount leaving the entity
// layer always equals the amount entering the outcome layer. The balance
// is checked exactly and an imbalance is returned as an error.
func (s *Service) Flow(t Table, p FlowParams) (*models.Flow, error) {
	mode, err := ParseFlowMode(p.Mode)
	if err != nil {
		return nil, err
	}
	for _, col := range []string{p.EntityColumn, p.FrequencyColumn} {
		if err := requireColumn(t, col); err != nil {
			return nil, err
		}
	}
	if err := requireColumn(t, p.AmountColumn, dataset.KindNumber); err != nil {
		return nil, err
	}

	pairs := make(map[flowKey]decimal.Decimal)
	actual := make(map[string]decimal.Decimal)
	for row := 0; row < t.Len(); row++ {
		v, ok := amount(t, row, p.AmountColumn)
		if !ok {
			continue
		}
		entity, ok := t.Text(row, p.EntityColumn)
		if !ok || strings.TrimSpace(entity) == "" {
			entity = models.UnknownEntity
		}
		raw, ok := t.Text(row, p.FrequencyColumn)
		var freq string
		switch {
		case p.ClassifyFrequency:
			freq = string(classifier.ClassifyValue(raw, ok))
		case !ok || strings.TrimSpace(raw) == "":
			freq = string(classifier.Unspecified)
		default:
			freq = raw
		}
		k := flowKey{entity, freq}
		pairs[k] = pairs[k].Add(v)
		actual[freq] = actual[freq].Add(v)
	}

	b := newFlowBuilder()
	keys := make([]flowKey, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].entity != keys[j].entity {
			return keys[i].entity < keys[j].entity
		}
		return keys[i].freq < keys[j].freq
	})
	for _, k := range keys {
		b.edge(models.LayerEntity, k.entity, false, models.LayerFrequency, k.freq, pairs[k])
	}

	freqs := make([]string, 0, len(actual))
	total := decimal.Zero
	for f, v := range actual {
		freqs = append(freqs, f)
		total = total.Add(v)
	}
	sort.Strings(freqs)

	totals := models.FlowTotals{Actual: total.InexactFloat64()}
	gapTotal := decimal.Zero
	for _, f := range freqs {
		b.edge(models.LayerFrequency, f, false, models.LayerOutcome, models.OutcomeActual, actual[f])
	}
	if mode == FlowTarget {
		totals.Target = p.Target
		if total.IsPositive() && p.Target > 0 {
			target := decimal.NewFromFloat(p.Target)
			for _, f := range freqs {
				share := actual[f].Div(total).Mul(target)
				gap := share.Sub(actual[f])
				if !gap.IsPositive() {
					continue
				}
				gapTotal = gapTotal.Add(gap)
				b.edge(models.LayerEntity, models.RemainingToTarget, true, models.LayerFrequency, f, gap)
				b.edge(models.LayerFrequency, f, false, models.LayerOutcome, models.OutcomeGap, gap)
			}
		}
	}
	totals.Gap = gapTotal.InexactFloat64()

	if !b.outflow.Equal(b.inflow) {
		return nil, fmt.Errorf("flow not conserved: outflow %s, inflow %s", b.outflow, b.inflow)
	}
	totals.Outflow = b.outflow.InexactFloat64()
	totals.Inflow = b.inflow.InexactFloat64()

	out := &models.Flow{Mode: mode, Nodes: b.nodes, Edges: b.edges, Totals: totals}
	if out.Nodes == nil {
		out.Nodes = []models.FlowNode{}
		out.Edges = []models.FlowEdge{}
	}
	if t.Len() == 0 {
		out.Warning = empty("no rows for flow")
	}
	return out, nil
}

type nodeKey struct {
	layer int
	name  string
}

type flowBuilder struct {
	index   map[nodeKey]int
	nodes   []models.FlowNode
	edges   []models.FlowEdge
	outflow decimal.Decimal
	inflow  decimal.Decimal
}

func newFlowBuilder() *flowBuilder {
	return &flowBuilder{index: make(map[nodeKey]int)}
}

func (b *flowBuilder) node(layer int, name string, synthetic bool) int {
	k := nodeKey{layer, name}
	if i, ok := b.index[k]; ok {
		return i
	}
	i := len(b.nodes)
	b.index[k] = i
	b.nodes = append(b.nodes, models.FlowNode{Index: i, Name: name, Layer: layer, Synthetic: synthetic})
	return i
}

// edge adds a non-zero edge and books it against the layer totals.
func (b *flowBuilder) edge(fromLayer int, from string, synthetic bool, toLayer int, to string, v decimal.Decimal) {
	if v.IsZero() {
		return
	}
	si := b.node(fromLayer, from, synthetic)
	ti := b.node(toLayer, to, toLayer == models.LayerOutcome && to == models.OutcomeGap)
	b.edges = append(b.edges, models.FlowEdge{
		Source:      from,
		Target:      to,
		SourceIndex: si,
		TargetIndex: ti,
		Amount:      v.InexactFloat64(),
	})
	if fromLayer == models.LayerEntity {
		b.outflow = b.outflow.Add(v)
	}
	if toLayer == models.LayerOutcome {
		b.inflow = b.inflow.Add(v)
	}
}
