package profile

import (
	"math"
	"sort"
)

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stdSample is the sample standard deviation (ddof=1). Fewer than two values
// yields 0.
func stdSample(xs []float64) float64 {
	n := len(xs)
	if n < 2 {
		return 0
	}
	m := mean(xs)
	var ss float64
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(n-1))
}

// quantile uses linear interpolation between closest ranks on a sorted copy.
func quantile(xs []float64, q float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)
	return quantileSorted(sorted, q)
}

func quantileSorted(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	pos := q * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// skewness is the bias-corrected Fisher-Pearson coefficient. Needs at least
// three values and nonzero spread.
func skewness(xs []float64) (float64, bool) {
	n := float64(len(xs))
	if n < 3 {
		return 0, false
	}
	m := mean(xs)
	var m2, m3 float64
	for _, x := range xs {
		d := x - m
		m2 += d * d
		m3 += d * d * d
	}
	m2 /= n
	m3 /= n
	if m2 == 0 {
		return 0, false
	}
	g1 := m3 / math.Pow(m2, 1.5)
	adj := math.Sqrt(n*(n-1)) / (n - 2)
	return adj * g1, true
}

// kurtosis is the unbiased excess kurtosis. Needs at least four values and
// nonzero spread.
func kurtosis(xs []float64) (float64, bool) {
	n := float64(len(xs))
	if n < 4 {
		return 0, false
	}
	m := mean(xs)
	var m2, m4 float64
	for _, x := range xs {
		d := x - m
		d2 := d * d
		m2 += d2
		m4 += d2 * d2
	}
	m2 /= n
	m4 /= n
	if m2 == 0 {
		return 0, false
	}
	g2 := m4/(m2*m2) - 3
	adj := (n - 1) / ((n - 2) * (n - 3)) * ((n+1)*g2 + 6)
	return adj, true
}

// histogram bins xs into `bins` equal-width intervals over [min, max]. The
// top edge is inclusive. A degenerate range puts everything in the first bin.
func histogram(xs []float64, bins int) (edges []float64, counts []int64) {
	if len(xs) == 0 || bins <= 0 {
		return nil, nil
	}
	lo, hi := xs[0], xs[0]
	for _, x := range xs[1:] {
		if x < lo {
			lo = x
		}
		if x > hi {
			hi = x
		}
	}

	edges = make([]float64, bins+1)
	counts = make([]int64, bins)
	width := (hi - lo) / float64(bins)
	for i := range edges {
		edges[i] = lo + float64(i)*width
	}
	edges[bins] = hi

	for _, x := range xs {
		var b int
		if width > 0 {
			b = int((x - lo) / width)
		}
		if b >= bins {
			b = bins - 1
		}
		counts[b]++
	}
	return edges, counts
}

// pearson is the sample correlation over aligned pairs.
func pearson(xs, ys []float64) (float64, bool) {
	n := len(xs)
	if n < 2 || n != len(ys) {
		return 0, false
	}
	mx, my := mean(xs), mean(ys)
	var sxy, sxx, syy float64
	for i := range xs {
		dx, dy := xs[i]-mx, ys[i]-my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return 0, false
	}
	return sxy / math.Sqrt(sxx*syy), true
}

// spearman is Pearson on average-tie ranks.
func spearman(xs, ys []float64) (float64, bool) {
	if len(xs) < 2 || len(xs) != len(ys) {
		return 0, false
	}
	return pearson(ranks(xs), ranks(ys))
}

// ranks assigns 1-based ranks with ties sharing their average rank.
func ranks(xs []float64) []float64 {
	n := len(xs)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return xs[order[a]] < xs[order[b]] })

	out := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j+1 < n && xs[order[j+1]] == xs[order[i]] {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			out[order[k]] = avg
		}
		i = j + 1
	}
	return out
}
