package drift

import (
	"sort"

	"datamem/pkg/types"
)

const (
	// nullDiffThreshold flags a null-percentage move strictly greater than
	// five percentage points.
	nullDiffThreshold = 5.0
	// Cardinality ratios inside [cardRatioLow, cardRatioHigh] are considered
	// stable; the bounds themselves do not flag.
	cardRatioLow  = 0.8
	cardRatioHigh = 1.2
)

// CompareSchemas diffs two schema snapshots for the same dataset.
func CompareSchemas(base, compare types.SchemaSnapshot) SchemaDrift {
	d := SchemaDrift{
		AddedColumns:          []string{},
		RemovedColumns:        []string{},
		TypeChanges:           make(map[string]TypeChange),
		NullPercentageChanges: make(map[string]NullChange),
		CardinalityChanges:    make(map[string]CardinalityChange),
	}

	for name := range compare.Columns {
		if _, ok := base.Columns[name]; !ok {
			d.AddedColumns = append(d.AddedColumns, name)
		}
	}
	for name := range base.Columns {
		if _, ok := compare.Columns[name]; !ok {
			d.RemovedColumns = append(d.RemovedColumns, name)
		}
	}
	sort.Strings(d.AddedColumns)
	sort.Strings(d.RemovedColumns)

	for name, baseCol := range base.Columns {
		compareCol, ok := compare.Columns[name]
		if !ok {
			continue
		}

		if baseCol.DType != compareCol.DType {
			d.TypeChanges[name] = TypeChange{From: baseCol.DType, To: compareCol.DType}
		}

		nullDiff := baseCol.NullPercentage - compareCol.NullPercentage
		if nullDiff < 0 {
			nullDiff = -nullDiff
		}
		if nullDiff > nullDiffThreshold {
			d.NullPercentageChanges[name] = NullChange{
				From: baseCol.NullPercentage,
				To:   compareCol.NullPercentage,
			}
		}

		// A base cardinality of zero never flags: the ratio is undefined.
		if baseCol.Cardinality > 0 {
			ratio := float64(compareCol.Cardinality) / float64(baseCol.Cardinality)
			if ratio < cardRatioLow || ratio > cardRatioHigh {
				d.CardinalityChanges[name] = CardinalityChange{
					From: baseCol.Cardinality,
					To:   compareCol.Cardinality,
				}
			}
		}
	}
	return d
}
