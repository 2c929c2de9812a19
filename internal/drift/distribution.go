package drift

import (
	"fmt"
	"sort"

	"datamem/pkg/types"
)

// RawColumn carries optional row-level values for one column of one version.
// Numeric is set for numeric columns, Categories (value -> observed count)
// for categorical ones.
type RawColumn struct {
	Numeric    []float64
	Categories map[string]int64
}

// RawPair is the row-level data for both sides of a comparison. When it is
// unavailable the engine falls back to the compressed histograms retained in
// the schema snapshots.
type RawPair struct {
	Base    RawColumn
	Compare RawColumn
}

// CompareDistribution measures distribution drift for one column present in
// both snapshots.
func CompareDistribution(base, compare types.SchemaSnapshot, column string, raw *RawPair) (DistributionDrift, error) {
	baseCol, okBase := base.Columns[column]
	compareCol, okCompare := compare.Columns[column]
	if !okBase || !okCompare {
		return DistributionDrift{}, fmt.Errorf("column %s not present in both versions", column)
	}

	d := DistributionDrift{Column: column, SimilarityScore: 1.0}

	if raw != nil {
		if len(raw.Base.Numeric) > 0 && len(raw.Compare.Numeric) > 0 {
			stat, p := ksTwoSample(raw.Base.Numeric, raw.Compare.Numeric)
			d.KSStatistic = &stat
			d.PValue = &p
		} else if len(raw.Base.Categories) > 0 && len(raw.Compare.Categories) > 0 {
			expected, observed := alignCategoryCounts(raw.Base.Categories, raw.Compare.Categories)
			if stat, p, ok := chiSquareGoodnessOfFit(expected, observed); ok {
				d.Chi2Statistic = &stat
				d.PValue = &p
			}
		}
	}

	if baseCol.Numeric != nil && compareCol.Numeric != nil {
		if len(baseCol.Numeric.HistogramCounts) > 0 && len(compareCol.Numeric.HistogramCounts) > 0 {
			d.SimilarityScore = cosineSimilarity(
				toFloats(baseCol.Numeric.HistogramCounts),
				toFloats(compareCol.Numeric.HistogramCounts),
			)
		}
		meanShift := compareCol.Numeric.Mean - baseCol.Numeric.Mean
		stdShift := compareCol.Numeric.Std - baseCol.Numeric.Std
		d.MeanShift = &meanShift
		d.StdShift = &stdShift
	}

	return d, nil
}

// alignCategoryCounts unions both category sets in sorted order so the two
// count vectors line up position by position.
func alignCategoryCounts(base, compare map[string]int64) (expected, observed []float64) {
	seen := make(map[string]struct{}, len(base)+len(compare))
	for cat := range base {
		seen[cat] = struct{}{}
	}
	for cat := range compare {
		seen[cat] = struct{}{}
	}
	cats := make([]string, 0, len(seen))
	for cat := range seen {
		cats = append(cats, cat)
	}
	sort.Strings(cats)

	expected = make([]float64, len(cats))
	observed = make([]float64, len(cats))
	for i, cat := range cats {
		expected[i] = float64(base[cat])
		observed[i] = float64(compare[cat])
	}
	return expected, observed
}

func toFloats(counts []int64) []float64 {
	out := make([]float64, len(counts))
	for i, c := range counts {
		out[i] = float64(c)
	}
	return out
}
