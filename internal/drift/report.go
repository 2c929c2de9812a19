package drift

import (
	"datamem/pkg/types"
)

// FullReport runs the schema diff plus a distribution comparison for every
// column present in both versions, and aggregates an overall score in [0,1].
// raw may be nil or partial; columns without row-level data fall back to
// histogram comparison.
func FullReport(base, compare types.SchemaSnapshot, raw map[string]*RawPair) Report {
	report := Report{
		DatasetID:      base.DatasetID,
		BaseVersion:    base.Version,
		CompareVersion: compare.Version,
		Schema:         CompareSchemas(base, compare),
		Distributions:  make(map[string]DistributionDrift),
	}

	for name := range base.Columns {
		if _, ok := compare.Columns[name]; !ok {
			continue
		}
		d, err := CompareDistribution(base, compare, name, raw[name])
		if err != nil {
			continue
		}
		report.Distributions[name] = d
	}

	report.OverallDriftScore = overallScore(report, len(base.Columns))
	return report
}

// overallScore averages the available drift components. A component whose
// denominator would be zero is omitted from the average rather than failing.
func overallScore(report Report, baseColumnCount int) float64 {
	components := []float64{}

	if baseColumnCount > 0 {
		n := float64(baseColumnCount)
		components = append(components,
			float64(len(report.Schema.AddedColumns))/n,
			float64(len(report.Schema.RemovedColumns))/n,
			float64(len(report.Schema.TypeChanges))/n,
		)
	}

	if len(report.Distributions) > 0 {
		var similaritySum float64
		for _, d := range report.Distributions {
			similaritySum += d.SimilarityScore
		}
		components = append(components, 1.0-similaritySum/float64(len(report.Distributions)))
	}

	if len(components) == 0 {
		return 0.0
	}
	var sum float64
	for _, c := range components {
		sum += c
	}
	return sum / float64(len(components))
}
