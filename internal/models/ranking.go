package models

// Synthetic ranking buckets.
const (
	OtherEntity   = "Other"
	UnknownEntity = "Unknown"
)

// RankingRow is one entity of the two-period comparison.
type RankingRow struct {
	Entity    string  `json:"entity"`
	Current   float64 `json:"current"`
	Prior     float64 `json:"prior"`
	Total     float64 `json:"total"`
	Synthetic bool    `json:"synthetic,omitempty"`
	// Members is the number of entities folded into the Other row.
	Members       int    `json:"members,omitempty"`
	Asset         string `json:"asset,omitempty"`
	AssetStrategy string `json:"asset_strategy,omitempty"`
}

// Ranking is the top-N comparison of two periods.
type Ranking struct {
	Current        string              `json:"current"`
	Prior          string              `json:"prior"`
	TopN           int                 `json:"top_n"`
	Rows           []RankingRow        `json:"rows"`
	TotalEntities  int                 `json:"total_entities"`
	FoldedEntities int                 `json:"folded_entities"`
	Warning        *EmptyResultWarning `json:"warning,omitempty"`
}

// Row returns the row for entity.
func (r *Ranking) Row(entity string) (RankingRow, bool) {
	for _, row := range r.Rows {
		if row.Entity == entity {
			return row, true
		}
	}
	return RankingRow{}, false
}
