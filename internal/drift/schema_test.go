package drift

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"datamem/pkg/types"
)

func numericColumn(name string, nullPct float64, cardinality int64, mean, std float64, counts []int64) types.ColumnProfile {
	var bins []float64
	if len(counts) > 0 {
		bins = make([]float64, len(counts)+1)
		for i := range bins {
			bins[i] = float64(i)
		}
	}
	return types.ColumnProfile{
		Name:           name,
		Kind:           types.KindNumeric,
		DType:          "float64",
		NullPercentage: nullPct,
		Cardinality:    cardinality,
		UniqueRatio:    0.5,
		Numeric: &types.NumericProfile{
			Mean: mean, Median: mean, Std: std, Min: 0, Max: 100,
			HistogramBins:   bins,
			HistogramCounts: counts,
		},
	}
}

func snapshotWith(version string, cols ...types.ColumnProfile) types.SchemaSnapshot {
	columns := make(map[string]types.ColumnProfile, len(cols))
	for _, c := range cols {
		columns[c.Name] = c
	}
	return types.SchemaSnapshot{
		DatasetID:   "sales",
		Version:     version,
		Fingerprint: "fp-" + version,
		RowCount:    1000,
		ColumnCount: len(cols),
		Columns:     columns,
	}
}

func TestCompareSchemas_IdenticalNoDrift(t *testing.T) {
	snapshot := snapshotWith("v1",
		numericColumn("amount", 10.0, 100, 50, 5, []int64{1, 2, 3, 4, 5, 5, 4, 3, 2, 1}),
	)
	d := CompareSchemas(snapshot, snapshot)
	if d.HasDrift() {
		t.Errorf("identical snapshots flagged drift: %+v", d)
	}
}

func TestCompareSchemas_AddedRemoved(t *testing.T) {
	base := snapshotWith("v1",
		numericColumn("a", 0, 10, 1, 1, nil),
		numericColumn("b", 0, 10, 1, 1, nil),
	)
	compare := snapshotWith("v2",
		numericColumn("b", 0, 10, 1, 1, nil),
		numericColumn("c", 0, 10, 1, 1, nil),
	)
	d := CompareSchemas(base, compare)
	if diff := cmp.Diff([]string{"c"}, d.AddedColumns); diff != "" {
		t.Errorf("added (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"a"}, d.RemovedColumns); diff != "" {
		t.Errorf("removed (-want +got):\n%s", diff)
	}
	if !d.HasDrift() {
		t.Error("HasDrift should be true")
	}
}

func TestCompareSchemas_TypeChange(t *testing.T) {
	base := snapshotWith("v1", numericColumn("a", 0, 10, 1, 1, nil))
	changed := numericColumn("a", 0, 10, 1, 1, nil)
	changed.DType = "int64"
	compare := snapshotWith("v2", changed)

	d := CompareSchemas(base, compare)
	want := TypeChange{From: "float64", To: "int64"}
	if got, ok := d.TypeChanges["a"]; !ok || got != want {
		t.Errorf("TypeChanges[a] = %+v, want %+v", got, want)
	}
}

func TestCompareSchemas_NullThresholdBoundary(t *testing.T) {
	cases := []struct {
		name       string
		compareNil float64
		flagged    bool
	}{
		{"diff exactly 5.0 not flagged", 15.0, false},
		{"diff just above 5.0 flagged", 15.01, true},
		{"diff below threshold not flagged", 12.0, false},
		{"drop just above 5.0 flagged", 4.99, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			base := snapshotWith("v1", numericColumn("a", 10.0, 100, 1, 1, nil))
			compare := snapshotWith("v2", numericColumn("a", c.compareNil, 100, 1, 1, nil))
			d := CompareSchemas(base, compare)
			_, flagged := d.NullPercentageChanges["a"]
			if flagged != c.flagged {
				t.Errorf("null %.2f -> %.2f: flagged = %t, want %t", 10.0, c.compareNil, flagged, c.flagged)
			}
		})
	}
}

func TestCompareSchemas_CardinalityRatioBoundary(t *testing.T) {
	cases := []struct {
		name        string
		compareCard int64
		flagged     bool
	}{
		{"ratio 0.8 boundary not flagged", 80, false},
		{"ratio 0.79 flagged", 79, true},
		{"ratio 1.2 boundary not flagged", 120, false},
		{"ratio 1.21 flagged", 121, true},
		{"ratio 1.0 not flagged", 100, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			base := snapshotWith("v1", numericColumn("a", 0, 100, 1, 1, nil))
			compare := snapshotWith("v2", numericColumn("a", 0, c.compareCard, 1, 1, nil))
			d := CompareSchemas(base, compare)
			_, flagged := d.CardinalityChanges["a"]
			if flagged != c.flagged {
				t.Errorf("cardinality 100 -> %d: flagged = %t, want %t", c.compareCard, flagged, c.flagged)
			}
		})
	}
}

func TestCompareSchemas_ZeroBaseCardinalityNeverFlags(t *testing.T) {
	base := snapshotWith("v1", numericColumn("a", 0, 0, 1, 1, nil))
	compare := snapshotWith("v2", numericColumn("a", 0, 500, 1, 1, nil))
	d := CompareSchemas(base, compare)
	if _, flagged := d.CardinalityChanges["a"]; flagged {
		t.Error("zero base cardinality must not produce a cardinality flag")
	}
}
