package report

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"datamem/internal/drift"
)

func BuildMarkdown(r drift.Report) string {
	status := "STABLE"
	if r.HasDrift() {
		status = "DRIFT"
	}
	var b strings.Builder
	b.WriteString("# Dataset Drift Report\n\n")
	b.WriteString(fmt.Sprintf("- Dataset: `%s`\n", r.DatasetID))
	b.WriteString(fmt.Sprintf("- Versions: `%s` → `%s`\n", r.BaseVersion, r.CompareVersion))
	b.WriteString(fmt.Sprintf("- Status: **%s**\n", status))
	b.WriteString(fmt.Sprintf("- Overall Drift Score: `%.4f`\n\n", r.OverallDriftScore))

	b.WriteString("## Schema Changes\n\n")
	if !r.Schema.HasDrift() {
		b.WriteString("No schema changes detected.\n")
	} else {
		if len(r.Schema.AddedColumns) > 0 {
			b.WriteString(fmt.Sprintf("- Added: %s\n", strings.Join(r.Schema.AddedColumns, ", ")))
		}
		if len(r.Schema.RemovedColumns) > 0 {
			b.WriteString(fmt.Sprintf("- Removed: %s\n", strings.Join(r.Schema.RemovedColumns, ", ")))
		}
		for _, col := range sortedKeys(r.Schema.TypeChanges) {
			c := r.Schema.TypeChanges[col]
			b.WriteString(fmt.Sprintf("- Type change `%s`: %s → %s\n", col, c.From, c.To))
		}
		for _, col := range sortedKeys(r.Schema.NullPercentageChanges) {
			c := r.Schema.NullPercentageChanges[col]
			b.WriteString(fmt.Sprintf("- Null %% change `%s`: %.2f → %.2f\n", col, c.From, c.To))
		}
		for _, col := range sortedKeys(r.Schema.CardinalityChanges) {
			c := r.Schema.CardinalityChanges[col]
			b.WriteString(fmt.Sprintf("- Cardinality change `%s`: %d → %d\n", col, c.From, c.To))
		}
	}

	if len(r.Distributions) > 0 {
		b.WriteString("\n## Distribution Drift\n\n")
		b.WriteString("| Column | Similarity | P-Value | Mean Shift | Significant |\n")
		b.WriteString("|---|---:|---:|---:|---:|\n")
		for _, col := range sortedKeys(r.Distributions) {
			d := r.Distributions[col]
			b.WriteString(fmt.Sprintf("| %s | %.4f | %s | %s | %t |\n",
				col, d.SimilarityScore, formatOptional(d.PValue), formatOptional(d.MeanShift), d.HasSignificantDrift()))
		}
	}

	return b.String()
}

func WriteMarkdown(path string, r drift.Report) error {
	return os.WriteFile(path, []byte(BuildMarkdown(r)), 0o644)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func formatOptional(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.4f", *v)
}
