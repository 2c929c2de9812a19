package drift

import (
	"math"
	"sort"
)

// ksTwoSample computes the two-sample Kolmogorov-Smirnov statistic and its
// asymptotic p-value for numeric samples.
func ksTwoSample(base, compare []float64) (statistic, pValue float64) {
	a := append([]float64(nil), base...)
	b := append([]float64(nil), compare...)
	sort.Float64s(a)
	sort.Float64s(b)

	n1, n2 := len(a), len(b)
	var i, j int
	var d float64
	for i < n1 && j < n2 {
		x1, x2 := a[i], b[j]
		m := math.Min(x1, x2)
		for i < n1 && a[i] <= m {
			i++
		}
		for j < n2 && b[j] <= m {
			j++
		}
		diff := math.Abs(float64(i)/float64(n1) - float64(j)/float64(n2))
		if diff > d {
			d = diff
		}
	}

	en := math.Sqrt(float64(n1) * float64(n2) / float64(n1+n2))
	return d, kolmogorovQ((en + 0.12 + 0.11/en) * d)
}

// kolmogorovQ is the survival function of the Kolmogorov distribution,
// Q(λ) = 2 Σ (-1)^(j-1) exp(-2 j² λ²).
func kolmogorovQ(lambda float64) float64 {
	if lambda <= 0 {
		return 1
	}
	var sum float64
	sign := 1.0
	for j := 1; j <= 100; j++ {
		term := sign * math.Exp(-2*float64(j)*float64(j)*lambda*lambda)
		sum += term
		if math.Abs(term) < 1e-12 {
			break
		}
		sign = -sign
	}
	p := 2 * sum
	return math.Max(0, math.Min(1, p))
}

// chiSquareGoodnessOfFit tests observed category counts against the shape of
// the expected counts. Expected counts are rescaled to the observed total so
// sample-size differences do not inflate the statistic.
func chiSquareGoodnessOfFit(expected, observed []float64) (statistic, pValue float64, ok bool) {
	if len(expected) != len(observed) || len(expected) < 2 {
		return 0, 0, false
	}
	var expTotal, obsTotal float64
	for i := range expected {
		expTotal += expected[i]
		obsTotal += observed[i]
	}
	if expTotal <= 0 || obsTotal <= 0 {
		return 0, 0, false
	}

	scale := obsTotal / expTotal
	var chi2 float64
	df := -1
	for i := range expected {
		e := expected[i] * scale
		if e <= 0 {
			continue
		}
		diff := observed[i] - e
		chi2 += diff * diff / e
		df++
	}
	if df < 1 {
		return 0, 0, false
	}
	return chi2, gammaIncQ(float64(df)/2, chi2/2), true
}

// gammaIncQ is the upper regularized incomplete gamma function Q(a, x),
// evaluated by series expansion for x < a+1 and continued fraction otherwise.
func gammaIncQ(a, x float64) float64 {
	if x < 0 || a <= 0 {
		return 1
	}
	if x == 0 {
		return 1
	}
	if x < a+1 {
		return 1 - gammaSeriesP(a, x)
	}
	return gammaContinuedFractionQ(a, x)
}

func gammaSeriesP(a, x float64) float64 {
	lg, _ := math.Lgamma(a)
	ap := a
	sum := 1.0 / a
	del := sum
	for n := 0; n < 500; n++ {
		ap++
		del *= x / ap
		sum += del
		if math.Abs(del) < math.Abs(sum)*1e-14 {
			break
		}
	}
	return sum * math.Exp(-x+a*math.Log(x)-lg)
}

func gammaContinuedFractionQ(a, x float64) float64 {
	const tiny = 1e-300
	lg, _ := math.Lgamma(a)
	b := x + 1 - a
	c := 1 / tiny
	d := 1 / b
	h := d
	for i := 1; i < 500; i++ {
		an := -float64(i) * (float64(i) - a)
		b += 2
		d = an*d + b
		if math.Abs(d) < tiny {
			d = tiny
		}
		c = b + an/c
		if math.Abs(c) < tiny {
			c = tiny
		}
		d = 1 / d
		del := d * c
		h *= del
		if math.Abs(del-1) < 1e-14 {
			break
		}
	}
	return math.Exp(-x+a*math.Log(x)-lg) * h
}

// cosineSimilarity compares two normalized histograms; 1.0 means identical
// shape. Mirrors the compressed-histogram overlap metric used at profiling
// time.
func cosineSimilarity(base, compare []float64) float64 {
	if len(base) == 0 || len(compare) == 0 || len(base) != len(compare) {
		return 1.0
	}
	const eps = 1e-10
	var baseSum, compareSum float64
	for i := range base {
		baseSum += base[i]
		compareSum += compare[i]
	}

	var dot, normBase, normCompare float64
	for i := range base {
		bn := base[i] / (baseSum + eps)
		cn := compare[i] / (compareSum + eps)
		dot += bn * cn
		normBase += bn * bn
		normCompare += cn * cn
	}
	return dot / (math.Sqrt(normBase)*math.Sqrt(normCompare) + eps)
}
