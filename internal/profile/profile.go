// Package profile turns raw CSV datasets into the two compressed artifacts
// the store keeps per version: a schema snapshot and a bundle of
// deterministic analysis signals. Everything here is pure computation; the
// same file always profiles to the same artifacts apart from timestamps.
package profile

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"datamem/pkg/types"
)

// Options tune compression and sampling. Zero values select defaults.
type Options struct {
	SampleSize       int   // signal computation samples above this many rows
	HistogramBins    int   // numeric histogram resolution
	CategoricalTopK  int   // top values kept in analysis signals
	SchemaTopK       int   // top values kept in the schema snapshot
	CorrelationTopK  int   // strongest pairs kept per correlation method
	OutlierExtremesK int   // most extreme values kept per outlier signal
	Seed             int64 // sampling seed, fixed for reproducibility
}

// DefaultOptions matches the compression levels the artifacts were designed
// around.
func DefaultOptions() Options {
	return Options{
		SampleSize:       200_000,
		HistogramBins:    10,
		CategoricalTopK:  10,
		SchemaTopK:       5,
		CorrelationTopK:  50,
		OutlierExtremesK: 10,
		Seed:             42,
	}
}

type Profiler struct {
	opts Options
}

func New(opts Options) *Profiler {
	def := DefaultOptions()
	if opts.SampleSize <= 0 {
		opts.SampleSize = def.SampleSize
	}
	if opts.HistogramBins <= 0 {
		opts.HistogramBins = def.HistogramBins
	}
	if opts.CategoricalTopK <= 0 {
		opts.CategoricalTopK = def.CategoricalTopK
	}
	if opts.SchemaTopK <= 0 {
		opts.SchemaTopK = def.SchemaTopK
	}
	if opts.CorrelationTopK <= 0 {
		opts.CorrelationTopK = def.CorrelationTopK
	}
	if opts.OutlierExtremesK <= 0 {
		opts.OutlierExtremesK = def.OutlierExtremesK
	}
	if opts.Seed == 0 {
		opts.Seed = def.Seed
	}
	return &Profiler{opts: opts}
}

// ProfileFile loads path and produces both artifacts for one dataset
// version. The snapshot covers the full table; signals may be computed on a
// deterministic sample, recorded in Notes.
func (p *Profiler) ProfileFile(path, datasetID, version, fingerprint string) (types.SchemaSnapshot, types.AnalysisSignals, error) {
	t, err := ReadCSV(path)
	if err != nil {
		return types.SchemaSnapshot{}, types.AnalysisSignals{}, fmt.Errorf("profile %s: %w", datasetID, err)
	}
	snapshot := p.Snapshot(t, datasetID, version, path, fingerprint)
	signals := p.Signals(t, datasetID, version)
	return snapshot, signals, nil
}

// Snapshot builds the compressed schema for a loaded table.
func (p *Profiler) Snapshot(t *Table, datasetID, version, sourcePath, fingerprint string) types.SchemaSnapshot {
	columns := make(map[string]types.ColumnProfile, len(t.Columns))
	for i := range t.Columns {
		col := &t.Columns[i]
		columns[col.Name] = p.columnProfile(col, t.Rows)
	}
	return types.SchemaSnapshot{
		DatasetID:   datasetID,
		Version:     version,
		SourcePath:  sourcePath,
		Fingerprint: fingerprint,
		RowCount:    int64(t.Rows),
		ColumnCount: len(t.Columns),
		CreatedAt:   time.Now().UTC().Format(time.RFC3339),
		Columns:     columns,
	}
}

func (p *Profiler) columnProfile(col *Column, total int) types.ColumnProfile {
	nulls := 0
	for _, m := range col.Missing {
		if m {
			nulls++
		}
	}

	profile := types.ColumnProfile{
		Name:  col.Name,
		Kind:  col.Kind,
		DType: col.DType,
	}
	if total > 0 {
		profile.NullPercentage = float64(nulls) / float64(total) * 100
	}

	switch col.Kind {
	case types.KindNumeric:
		profile.Cardinality = distinctFloats(col.Numeric)
		if len(col.Numeric) > 0 {
			np := &types.NumericProfile{
				Mean:   mean(col.Numeric),
				Median: quantile(col.Numeric, 0.5),
				Std:    stdSample(col.Numeric),
				Min:    quantile(col.Numeric, 0),
				Max:    quantile(col.Numeric, 1),
			}
			if len(col.Numeric) > p.opts.HistogramBins {
				np.HistogramBins, np.HistogramCounts = histogram(col.Numeric, p.opts.HistogramBins)
			}
			profile.Numeric = np
		}
	case types.KindDatetime:
		profile.Cardinality = distinctTimes(col.Times)
		if len(col.Times) > 0 {
			lo, hi := timeRange(col.Times)
			profile.Datetime = &types.DatetimeProfile{
				Min: lo.Format(time.RFC3339),
				Max: hi.Format(time.RFC3339),
			}
		}
	default:
		counts := valueCounts(col.NonMissing())
		profile.Cardinality = int64(len(counts))
		if len(counts) > 0 {
			profile.Categorical = &types.CategoricalProfile{
				TopValues:   counts[:minInt(p.opts.SchemaTopK, len(counts))],
				MostCommon:  counts[0].Value,
				LeastCommon: counts[len(counts)-1].Value,
			}
		}
	}

	if total > 0 {
		profile.UniqueRatio = float64(profile.Cardinality) / float64(total)
	}
	return profile
}

// Signals computes the analysis bundle, sampling large tables
// deterministically first.
func (p *Profiler) Signals(t *Table, datasetID, version string) types.AnalysisSignals {
	sampled := t.Sample(p.opts.SampleSize, p.opts.Seed)

	signals := types.AnalysisSignals{
		DatasetID:    datasetID,
		Version:      version,
		CreatedAt:    time.Now().UTC().Format(time.RFC3339),
		RowCount:     int64(t.Rows),
		ColumnCount:  len(t.Columns),
		SampleN:      int64(sampled.Rows),
		Numeric:      []types.NumericSignal{},
		Categorical:  []types.CategoricalSignal{},
		Datetime:     []types.DatetimeSignal{},
		Correlations: []types.CorrelationSignal{},
		Outliers:     []types.OutlierSignal{},
	}
	if sampled.Rows < t.Rows {
		signals.Notes = append(signals.Notes,
			fmt.Sprintf("analysis_used_sampling=true sample_n=%d full_n=%d", sampled.Rows, t.Rows))
	}

	var numericCols []*Column
	for i := range sampled.Columns {
		col := &sampled.Columns[i]
		switch col.Kind {
		case types.KindNumeric:
			numericCols = append(numericCols, col)
			signals.Numeric = append(signals.Numeric, p.numericSignal(col, sampled.Rows))
		case types.KindDatetime:
			signals.Datetime = append(signals.Datetime, p.datetimeSignal(col, sampled.Rows))
		default:
			signals.Categorical = append(signals.Categorical, p.categoricalSignal(col, sampled.Rows))
		}
	}

	signals.Correlations = p.correlationSignals(numericCols)
	signals.Outliers = p.outlierSignals(numericCols, sampled.Rows)
	return signals
}

func (p *Profiler) numericSignal(col *Column, total int) types.NumericSignal {
	sig := types.NumericSignal{
		Column:         col.Name,
		DType:          col.DType,
		SampleN:        int64(len(col.Values)),
		NullPercentage: nullPercentage(col, total),
	}
	xs := col.Numeric
	if len(xs) == 0 {
		return sig
	}

	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)

	sig.Mean = mean(xs)
	sig.Median = quantileSorted(sorted, 0.5)
	sig.Std = stdSample(xs)
	sig.Min = sorted[0]
	sig.Max = sorted[len(sorted)-1]
	sig.P05 = quantileSorted(sorted, 0.05)
	sig.P25 = quantileSorted(sorted, 0.25)
	sig.P75 = quantileSorted(sorted, 0.75)
	sig.P95 = quantileSorted(sorted, 0.95)

	if s, ok := skewness(xs); ok {
		sig.Skew = &s
	}
	if k, ok := kurtosis(xs); ok {
		sig.Kurtosis = &k
	}
	if len(xs) >= maxInt(20, p.opts.HistogramBins*2) {
		sig.HistogramBins, sig.HistogramCounts = histogram(xs, p.opts.HistogramBins)
	}
	return sig
}

func (p *Profiler) categoricalSignal(col *Column, total int) types.CategoricalSignal {
	counts := valueCounts(col.NonMissing())

	var shown, all int64
	top := counts[:minInt(p.opts.CategoricalTopK, len(counts))]
	for _, vc := range counts {
		all += vc.Count
	}
	for _, vc := range top {
		shown += vc.Count
	}

	return types.CategoricalSignal{
		Column:         col.Name,
		DType:          col.DType,
		SampleN:        int64(len(col.Values)),
		NullPercentage: nullPercentage(col, total),
		Cardinality:    int64(len(counts)),
		TopValues:      top,
		OtherCount:     all - shown,
	}
}

func (p *Profiler) datetimeSignal(col *Column, total int) types.DatetimeSignal {
	sig := types.DatetimeSignal{
		Column:         col.Name,
		DType:          col.DType,
		SampleN:        int64(len(col.Values)),
		NullPercentage: nullPercentage(col, total),
	}
	if len(col.Times) == 0 {
		return sig
	}
	lo, hi := timeRange(col.Times)
	sig.Min = lo.Format(time.RFC3339)
	sig.Max = hi.Format(time.RFC3339)
	sig.Granularity = inferGranularity(col.Times)
	return sig
}

// inferGranularity buckets the median spacing between sorted distinct
// timestamps into a human label. Too few distinct points yield "".
func inferGranularity(times []time.Time) string {
	uniq := make([]time.Time, len(times))
	copy(uniq, times)
	sort.Slice(uniq, func(a, b int) bool { return uniq[a].Before(uniq[b]) })

	distinct := uniq[:0]
	for i, ts := range uniq {
		if i == 0 || !ts.Equal(distinct[len(distinct)-1]) {
			distinct = append(distinct, ts)
		}
	}
	if len(distinct) < 3 {
		return ""
	}

	deltas := make([]float64, 0, len(distinct)-1)
	for i := 1; i < len(distinct); i++ {
		deltas = append(deltas, distinct[i].Sub(distinct[i-1]).Seconds())
	}
	median := quantile(deltas, 0.5)

	switch {
	case median <= 0:
		return "unknown"
	case median < 60:
		return "second"
	case median < 3600:
		return "minute"
	case median < 86400:
		return "hour"
	case median < 86400*32:
		return "day"
	case median < 86400*366:
		return "month"
	default:
		return "year"
	}
}

// correlationSignals keeps the strongest pairs per method, ordered by
// absolute correlation. Pairs use pairwise-complete rows.
func (p *Profiler) correlationSignals(cols []*Column) []types.CorrelationSignal {
	out := []types.CorrelationSignal{}
	if len(cols) < 2 {
		return out
	}

	for _, method := range []string{"pearson", "spearman"} {
		var pairs []types.CorrelationSignal
		for i := 0; i < len(cols); i++ {
			for j := i + 1; j < len(cols); j++ {
				xs, ys := alignedPair(cols[i], cols[j])
				var r float64
				var ok bool
				if method == "pearson" {
					r, ok = pearson(xs, ys)
				} else {
					r, ok = spearman(xs, ys)
				}
				if !ok {
					continue
				}
				pairs = append(pairs, types.CorrelationSignal{
					Method:      method,
					ColX:        cols[i].Name,
					ColY:        cols[j].Name,
					N:           int64(len(xs)),
					Correlation: r,
				})
			}
		}
		sort.Slice(pairs, func(a, b int) bool {
			return math.Abs(pairs[a].Correlation) > math.Abs(pairs[b].Correlation)
		})
		out = append(out, pairs[:minInt(p.opts.CorrelationTopK, len(pairs))]...)
	}
	return out
}

func (p *Profiler) outlierSignals(cols []*Column, total int) []types.OutlierSignal {
	out := []types.OutlierSignal{}
	for _, col := range cols {
		xs := col.Numeric
		if len(xs) < 8 {
			continue
		}
		sampleN := int64(len(col.Values))

		sorted := make([]float64, len(xs))
		copy(sorted, xs)
		sort.Float64s(sorted)
		q25 := quantileSorted(sorted, 0.25)
		q50 := quantileSorted(sorted, 0.5)
		q75 := quantileSorted(sorted, 0.75)

		// IQR fences; a zero IQR collapses the fences to the quartiles so
		// constant-heavy columns still flag their stragglers.
		lower, upper := q25, q75
		if iqr := q75 - q25; iqr > 0 {
			lower, upper = q25-1.5*iqr, q75+1.5*iqr
		}
		var iqrVals []float64
		for _, x := range xs {
			if x < lower || x > upper {
				iqrVals = append(iqrVals, x)
			}
		}
		lo, hi := lower, upper
		out = append(out, types.OutlierSignal{
			Column:          col.Name,
			Method:          "iqr",
			SampleN:         sampleN,
			OutlierCount:    int64(len(iqrVals)),
			OutlierFraction: float64(len(iqrVals)) / float64(len(xs)),
			LowerBound:      &lo,
			UpperBound:      &hi,
			ExtremeValues:   extremes(iqrVals, q50, p.opts.OutlierExtremesK),
		})

		// Robust z-score via MAD; skipped when MAD is zero.
		absDev := make([]float64, len(xs))
		for i, x := range xs {
			absDev[i] = math.Abs(x - q50)
		}
		mad := quantile(absDev, 0.5)
		if mad <= 0 {
			continue
		}
		var madVals []float64
		for _, x := range xs {
			if math.Abs(0.6745*(x-q50)/mad) > 3.5 {
				madVals = append(madVals, x)
			}
		}
		med, madOut := q50, mad
		out = append(out, types.OutlierSignal{
			Column:          col.Name,
			Method:          "robust_z",
			SampleN:         sampleN,
			OutlierCount:    int64(len(madVals)),
			OutlierFraction: float64(len(madVals)) / float64(len(xs)),
			Median:          &med,
			MAD:             &madOut,
			ExtremeValues:   extremes(madVals, q50, p.opts.OutlierExtremesK),
		})
	}
	return out
}

// extremes keeps the k values farthest from center, most extreme first.
func extremes(vals []float64, center float64, k int) []float64 {
	if len(vals) == 0 {
		return nil
	}
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Slice(sorted, func(a, b int) bool {
		return math.Abs(sorted[a]-center) > math.Abs(sorted[b]-center)
	})
	return sorted[:minInt(k, len(sorted))]
}

// alignedPair collects rows where both columns have a value.
func alignedPair(a, b *Column) (xs, ys []float64) {
	n := minInt(len(a.Values), len(b.Values))
	for i := 0; i < n; i++ {
		if a.Missing[i] || b.Missing[i] {
			continue
		}
		x, errX := strconv.ParseFloat(a.Values[i], 64)
		y, errY := strconv.ParseFloat(b.Values[i], 64)
		if errX != nil || errY != nil {
			continue
		}
		xs = append(xs, x)
		ys = append(ys, y)
	}
	return xs, ys
}

// valueCounts tallies values sorted by count descending, value ascending on
// ties, so output order is stable.
func valueCounts(values []string) []types.ValueCount {
	tally := make(map[string]int64, len(values))
	for _, v := range values {
		tally[v]++
	}
	out := make([]types.ValueCount, 0, len(tally))
	for v, c := range tally {
		out = append(out, types.ValueCount{Value: v, Count: c})
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Count != out[b].Count {
			return out[a].Count > out[b].Count
		}
		return out[a].Value < out[b].Value
	})
	return out
}

func nullPercentage(col *Column, total int) float64 {
	if total <= 0 {
		return 0
	}
	nulls := 0
	for _, m := range col.Missing {
		if m {
			nulls++
		}
	}
	return float64(nulls) / float64(total) * 100
}

func distinctFloats(xs []float64) int64 {
	seen := make(map[float64]struct{}, len(xs))
	for _, x := range xs {
		seen[x] = struct{}{}
	}
	return int64(len(seen))
}

func distinctTimes(ts []time.Time) int64 {
	seen := make(map[int64]struct{}, len(ts))
	for _, t := range ts {
		seen[t.UnixNano()] = struct{}{}
	}
	return int64(len(seen))
}

func timeRange(ts []time.Time) (lo, hi time.Time) {
	lo, hi = ts[0], ts[0]
	for _, t := range ts[1:] {
		if t.Before(lo) {
			lo = t
		}
		if t.After(hi) {
			hi = t
		}
	}
	return lo, hi
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
