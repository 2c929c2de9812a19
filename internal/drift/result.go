// Package drift compares two versions of a dataset and scores how far the
// schema and the per-column value distributions have moved.
package drift

// DefaultPThreshold is the significance level for distribution tests.
const DefaultPThreshold = 0.05

type TypeChange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type NullChange struct {
	From float64 `json:"from"`
	To   float64 `json:"to"`
}

type CardinalityChange struct {
	From int64 `json:"from"`
	To   int64 `json:"to"`
}

// SchemaDrift is the structural diff between two schema snapshots.
type SchemaDrift struct {
	AddedColumns          []string                     `json:"added_columns"`
	RemovedColumns        []string                     `json:"removed_columns"`
	TypeChanges           map[string]TypeChange        `json:"type_changes"`
	NullPercentageChanges map[string]NullChange        `json:"null_percentage_changes"`
	CardinalityChanges    map[string]CardinalityChange `json:"cardinality_changes"`
}

func (d SchemaDrift) HasDrift() bool {
	return len(d.AddedColumns) > 0 ||
		len(d.RemovedColumns) > 0 ||
		len(d.TypeChanges) > 0 ||
		len(d.NullPercentageChanges) > 0 ||
		len(d.CardinalityChanges) > 0
}

// DistributionDrift is the per-column distribution comparison. Test fields
// are nil when raw row-level data was unavailable; SimilarityScore always
// carries the compressed-histogram comparison (1.0 = identical shape).
type DistributionDrift struct {
	Column          string   `json:"column"`
	KSStatistic     *float64 `json:"ks_statistic,omitempty"`
	Chi2Statistic   *float64 `json:"chi2_statistic,omitempty"`
	PValue          *float64 `json:"p_value,omitempty"`
	MeanShift       *float64 `json:"mean_shift,omitempty"`
	StdShift        *float64 `json:"std_shift,omitempty"`
	SimilarityScore float64  `json:"similarity_score"`
}

// SignificantAt requires both statistical and shape evidence: a p-value
// below the threshold AND similarity below 0.8. The conjunction keeps a
// spuriously tiny p-value with negligible shape change from flagging drift.
func (d DistributionDrift) SignificantAt(pThreshold float64) bool {
	if d.PValue == nil {
		return false
	}
	return *d.PValue < pThreshold && d.SimilarityScore < 0.8
}

func (d DistributionDrift) HasSignificantDrift() bool {
	return d.SignificantAt(DefaultPThreshold)
}

// Report is the full comparison between two versions. Derived on demand,
// never persisted.
type Report struct {
	DatasetID         string                       `json:"dataset_id"`
	BaseVersion       string                       `json:"base_version"`
	CompareVersion    string                       `json:"compare_version"`
	Schema            SchemaDrift                  `json:"schema_drift"`
	Distributions     map[string]DistributionDrift `json:"distribution_drifts"`
	OverallDriftScore float64                      `json:"overall_drift_score"`
}

func (r Report) HasDrift() bool {
	if r.Schema.HasDrift() {
		return true
	}
	for _, d := range r.Distributions {
		if d.HasSignificantDrift() {
			return true
		}
	}
	return false
}
