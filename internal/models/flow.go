package models

// Flow node layers, left to right.
const (
	LayerEntity = iota
	LayerFrequency
	LayerOutcome
)

// Outcome and synthetic node names.
const (
	OutcomeActual     = "Actual"
	OutcomeGap        = "Gap to Target"
	RemainingToTarget = "Remaining to Target"
)

// FlowNode is a node of the layered flow graph.
type FlowNode struct {
	Index     int    `json:"index"`
	Name      string `json:"name"`
	Layer     int    `json:"layer"`
	Synthetic bool   `json:"synthetic,omitempty"`
}

// FlowEdge carries an amount between two nodes.
type FlowEdge struct {
	Source      string  `json:"source"`
	Target      string  `json:"target"`
	SourceIndex int     `json:"source_index"`
	TargetIndex int     `json:"target_index"`
	Amount      float64 `json:"amount"`
}

// FlowTotals are checked sums of the graph. Outflow is the total leaving the
// entity layer and Inflow the total entering the outcome layer; they are
// always equal.
type FlowTotals struct {
	Outflow float64 `json:"outflow"`
	Inflow  float64 `json:"inflow"`
	Actual  float64 `json:"actual"`
	Gap     float64 `json:"gap"`
	Target  float64 `json:"target,omitempty"`
}

// Flow is the entity to frequency to outcome graph.
type Flow struct {
	Mode    string              `json:"mode"`
	Nodes   []FlowNode          `json:"nodes"`
	Edges   []FlowEdge          `json:"edges"`
	Totals  FlowTotals          `json:"totals"`
	Warning *EmptyResultWarning `json:"warning,omitempty"`
}

// Node returns the node index for name in layer, or -1.
func (f *Flow) Node(layer int, name string) int {
	for _, n := range f.Nodes {
		if n.Layer == layer && n.Name == name {
			return n.Index
		}
	}
	return -1
}
