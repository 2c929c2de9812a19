package types

// Signal structs below carry the deterministic EDA output for one version.
// They are stored as-is and handed back to the reasoning layer unmodified.

type NumericSignal struct {
	Column          string    `json:"column"`
	DType           string    `json:"dtype"`
	SampleN         int64     `json:"sample_n"`
	NullPercentage  float64   `json:"null_percentage"`
	Mean            float64   `json:"mean"`
	Median          float64   `json:"median"`
	Std             float64   `json:"std"`
	Min             float64   `json:"min"`
	P05             float64   `json:"p05"`
	P25             float64   `json:"p25"`
	P75             float64   `json:"p75"`
	P95             float64   `json:"p95"`
	Max             float64   `json:"max"`
	Skew            *float64  `json:"skew,omitempty"`
	Kurtosis        *float64  `json:"kurtosis,omitempty"`
	HistogramBins   []float64 `json:"histogram_bins,omitempty"`
	HistogramCounts []int64   `json:"histogram_counts,omitempty"`
}

type CategoricalSignal struct {
	Column         string       `json:"column"`
	DType          string       `json:"dtype"`
	SampleN        int64        `json:"sample_n"`
	NullPercentage float64      `json:"null_percentage"`
	Cardinality    int64        `json:"cardinality"`
	TopValues      []ValueCount `json:"top_values,omitempty"`
	OtherCount     int64        `json:"other_count"`
}

type DatetimeSignal struct {
	Column         string  `json:"column"`
	DType          string  `json:"dtype"`
	SampleN        int64   `json:"sample_n"`
	NullPercentage float64 `json:"null_percentage"`
	Min            string  `json:"min,omitempty"`
	Max            string  `json:"max,omitempty"`
	// Granularity is the inferred spacing between observations:
	// second|minute|hour|day|month|year|unknown.
	Granularity string `json:"granularity,omitempty"`
}

type CorrelationSignal struct {
	Method      string  `json:"method"`
	ColX        string  `json:"col_x"`
	ColY        string  `json:"col_y"`
	N           int64   `json:"n"`
	Correlation float64 `json:"correlation"`
}

type OutlierSignal struct {
	Column          string    `json:"column"`
	Method          string    `json:"method"`
	SampleN         int64     `json:"sample_n"`
	OutlierCount    int64     `json:"outlier_count"`
	OutlierFraction float64   `json:"outlier_fraction"`
	LowerBound      *float64  `json:"lower_bound,omitempty"`
	UpperBound      *float64  `json:"upper_bound,omitempty"`
	Median          *float64  `json:"median,omitempty"`
	MAD             *float64  `json:"mad,omitempty"`
	ExtremeValues   []float64 `json:"extreme_values,omitempty"`
}

// AnalysisSignals is the compressed distributional/correlation/outlier
// bundle for one dataset version. Independently cacheable from the schema.
type AnalysisSignals struct {
	DatasetID    string              `json:"dataset_id"`
	Version      string              `json:"version"`
	CreatedAt    string              `json:"created_at"`
	RowCount     int64               `json:"row_count"`
	ColumnCount  int                 `json:"column_count"`
	SampleN      int64               `json:"sample_n"`
	Numeric      []NumericSignal     `json:"numeric_distributions"`
	Categorical  []CategoricalSignal `json:"categorical_distributions"`
	Datetime     []DatetimeSignal    `json:"datetime_distributions"`
	Correlations []CorrelationSignal `json:"correlations"`
	Outliers     []OutlierSignal     `json:"outliers"`
	Notes        []string            `json:"notes,omitempty"`
}
