package engine

import (
	"math"
	"sort"
	"time"
)

// linearFit is the result of a least-squares fit of value over elapsed time.
type linearFit struct {
	Slope     float64 // value units per second
	Intercept float64 // fitted value at the first sample
	RSquared  float64
}

// fitLinear performs an ordinary least-squares regression of ys over xs.
// xs and ys must have equal length >= 2. RSquared is 1 for a constant
// series fitted exactly by a flat line.
func fitLinear(xs, ys []float64) linearFit {
	n := float64(len(xs))

	var sumX, sumY float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
	}
	meanX := sumX / n
	meanY := sumY / n

	var ssXY, ssXX, ssYY float64
	for i := range xs {
		dx := xs[i] - meanX
		dy := ys[i] - meanY
		ssXY += dx * dy
		ssXX += dx * dx
		ssYY += dy * dy
	}

	if ssXX == 0 {
		return linearFit{Intercept: meanY, RSquared: 0}
	}

	slope := ssXY / ssXX
	intercept := meanY - slope*meanX

	if ssYY == 0 {
		// Zero variance: the flat fit is exact.
		return linearFit{Slope: slope, Intercept: intercept, RSquared: 1}
	}

	var ssRes float64
	for i := range xs {
		resid := ys[i] - (intercept + slope*xs[i])
		ssRes += resid * resid
	}

	r2 := 1 - ssRes/ssYY
	if r2 < 0 {
		r2 = 0
	}
	if r2 > 1 {
		r2 = 1
	}

	return linearFit{Slope: slope, Intercept: intercept, RSquared: r2}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// sampleStdDev returns the n-1 standard deviation, 0 for fewer than 2 values.
func sampleStdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	var ss float64
	for _, v := range values {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(values)-1))
}

// pearson computes the Pearson correlation coefficient of two equal-length
// slices. Returns 0 when either side has zero variance.
func pearson(xs, ys []float64) float64 {
	if len(xs) != len(ys) || len(xs) == 0 {
		return 0
	}
	meanX := mean(xs)
	meanY := mean(ys)

	var cov, varX, varY float64
	for i := range xs {
		dx := xs[i] - meanX
		dy := ys[i] - meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0
	}
	return cov / math.Sqrt(varX*varY)
}

// normalCDF is the standard normal cumulative distribution function.
func normalCDF(z float64) float64 {
	return 0.5 * (1 + math.Erf(z/math.Sqrt2))
}

// zScoreConfidence maps an absolute z-score to a two-sided normal
// probability in [0,1]. z=2.5 gives ~0.9876.
func zScoreConfidence(z float64) float64 {
	conf := math.Erf(math.Abs(z) / math.Sqrt2)
	if conf > 1 {
		conf = 1
	}
	return conf
}

// correlationPValue approximates the two-sided p-value of a Pearson
// coefficient r over n aligned samples, using the t-statistic
// r*sqrt(n-2)/sqrt(1-r^2) mapped through the normal tail.
func correlationPValue(r float64, n int) float64 {
	if n <= 2 {
		return 1
	}
	abs := math.Abs(r)
	if abs >= 1 {
		return 0
	}
	t := abs * math.Sqrt(float64(n-2)) / math.Sqrt(1-abs*abs)
	p := 2 * (1 - normalCDF(t))
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	return p
}

// benjaminiHochberg applies the Benjamini-Hochberg false-discovery-rate
// procedure at level alpha. The returned slice marks, per input index,
// whether that p-value survives the correction.
func benjaminiHochberg(pvalues []float64, alpha float64) []bool {
	m := len(pvalues)
	keep := make([]bool, m)
	if m == 0 {
		return keep
	}

	order := make([]int, m)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return pvalues[order[a]] < pvalues[order[b]]
	})

	// Largest k with p_(k) <= k/m * alpha; all smaller ranks pass too.
	cutoff := -1
	for rank, idx := range order {
		if pvalues[idx] <= float64(rank+1)/float64(m)*alpha {
			cutoff = rank
		}
	}
	for rank := 0; rank <= cutoff; rank++ {
		keep[order[rank]] = true
	}
	return keep
}

// overlapConfidence maps an aligned sample count to [0,1). More overlap
// means higher confidence, saturating around a few dozen points.
func overlapConfidence(n, floor int) float64 {
	if n < floor {
		return 0
	}
	conf := 1 - float64(floor)/float64(n+1)
	if conf > 1 {
		conf = 1
	}
	return conf
}

// medianInterval estimates the sampling interval of ordered timestamps.
func medianInterval(timestamps []time.Time) time.Duration {
	if len(timestamps) < 2 {
		return time.Minute
	}
	intervals := make([]time.Duration, len(timestamps)-1)
	for i := 1; i < len(timestamps); i++ {
		intervals[i-1] = timestamps[i].Sub(timestamps[i-1])
	}
	sort.Slice(intervals, func(i, j int) bool { return intervals[i] < intervals[j] })
	return intervals[len(intervals)/2]
}
