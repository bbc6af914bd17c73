// Package stats computes latency statistics over a fixed set of samples.
//
// Every function is pure: inputs are never modified, and calling a function
// twice on the same values yields identical results. Statistics over an empty
// set are undefined and reported as Undefined (NaN), which callers must treat
// differently from a real zero latency.
package stats

import (
	"math"
	"sort"
)

// Undefined is the sentinel returned when a statistic has no input.
var Undefined = math.NaN()

// IsUndefined reports whether v is the Undefined sentinel.
func IsUndefined(v float64) bool {
	return math.IsNaN(v)
}

// Percentile returns the p-th percentile (0-100) of values using linear
// interpolation between the two nearest ranks.
//
// p is clamped to [0, 100]. An empty input or a NaN p yields Undefined.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return Undefined
	}
	return percentileSorted(sortedCopy(values), p)
}

// percentileSorted is Percentile over an already sorted slice.
func percentileSorted(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 || math.IsNaN(p) {
		return Undefined
	}
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}

	k := float64(n-1) * p / 100
	f := math.Floor(k)
	lo := int(f)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}

	v := sorted[lo] + (sorted[hi]-sorted[lo])*(k-f)
	// Rounding must never push an interpolated value past the upper rank.
	if v > sorted[hi] {
		v = sorted[hi]
	}
	return v
}

// Mean returns the arithmetic mean of values, or Undefined if empty.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return Undefined
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Min returns the smallest value, or Undefined if empty.
func Min(values []float64) float64 {
	if len(values) == 0 {
		return Undefined
	}
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

// Max returns the largest value, or Undefined if empty.
func Max(values []float64) float64 {
	if len(values) == 0 {
		return Undefined
	}
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// StdDev returns the sample standard deviation of values.
// A single value has a deviation of 0; an empty set is Undefined.
func StdDev(values []float64) float64 {
	switch len(values) {
	case 0:
		return Undefined
	case 1:
		return 0
	}

	mean := Mean(values)
	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(values)-1))
}

// Description summarises a latency set in one pass over a sorted copy.
type Description struct {
	Count  int
	Mean   float64
	Min    float64
	Max    float64
	StdDev float64
	P50    float64
	P90    float64
	P95    float64
	P99    float64
}

// Describe computes every statistic in Description. All fields except Count
// are Undefined for an empty input.
func Describe(values []float64) Description {
	if len(values) == 0 {
		return Description{
			Mean:   Undefined,
			Min:    Undefined,
			Max:    Undefined,
			StdDev: Undefined,
			P50:    Undefined,
			P90:    Undefined,
			P95:    Undefined,
			P99:    Undefined,
		}
	}

	sorted := sortedCopy(values)
	return Description{
		Count:  len(sorted),
		Mean:   Mean(values),
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		StdDev: StdDev(values),
		P50:    percentileSorted(sorted, 50),
		P90:    percentileSorted(sorted, 90),
		P95:    percentileSorted(sorted, 95),
		P99:    percentileSorted(sorted, 99),
	}
}

func sortedCopy(values []float64) []float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return sorted
}
