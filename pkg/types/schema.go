package types

// ColumnKind discriminates the per-kind profile attached to a column.
type ColumnKind string

const (
	KindNumeric     ColumnKind = "numeric"
	KindCategorical ColumnKind = "categorical"
	KindDatetime    ColumnKind = "datetime"
)

type ValueCount struct {
	Value string `json:"value"`
	Count int64  `json:"count"`
}

type NumericProfile struct {
	Mean            float64   `json:"mean"`
	Median          float64   `json:"median"`
	Std             float64   `json:"std"`
	Min             float64   `json:"min"`
	Max             float64   `json:"max"`
	HistogramBins   []float64 `json:"histogram_bins,omitempty"`
	HistogramCounts []int64   `json:"histogram_counts,omitempty"`
}

type CategoricalProfile struct {
	TopValues []ValueCount `json:"top_values,omitempty"`
	// MostCommon and LeastCommon bound the frequency range, mirroring the
	// min/max slots numeric columns get.
	MostCommon  string `json:"most_common,omitempty"`
	LeastCommon string `json:"least_common,omitempty"`
}

type DatetimeProfile struct {
	Min string `json:"min,omitempty"`
	Max string `json:"max,omitempty"`
}

// ColumnProfile is the compressed per-column summary stored in a
// SchemaSnapshot. Exactly one of Numeric, Categorical, Datetime is set,
// selected by Kind.
type ColumnProfile struct {
	Name           string              `json:"name"`
	Kind           ColumnKind          `json:"kind"`
	DType          string              `json:"dtype"`
	NullPercentage float64             `json:"null_percentage"`
	Cardinality    int64               `json:"cardinality"`
	UniqueRatio    float64             `json:"unique_ratio"`
	Numeric        *NumericProfile     `json:"numeric,omitempty"`
	Categorical    *CategoricalProfile `json:"categorical,omitempty"`
	Datetime       *DatetimeProfile    `json:"datetime,omitempty"`
}

// SchemaSnapshot is the compressed schema of one dataset version. It is
// produced once per version and immutable afterwards.
type SchemaSnapshot struct {
	DatasetID   string                   `json:"dataset_id"`
	Version     string                   `json:"version"`
	SourcePath  string                   `json:"source_path"`
	Fingerprint string                   `json:"fingerprint"`
	RowCount    int64                    `json:"row_count"`
	ColumnCount int                      `json:"column_count"`
	CreatedAt   string                   `json:"created_at"`
	Columns     map[string]ColumnProfile `json:"columns"`
}
