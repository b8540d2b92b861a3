package stats

import (
	"errors"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ErrEmptySample is returned by operations that need at least one observation.
var ErrEmptySample = errors.New("empty sample")

// Summary describes one sample.
type Summary struct {
	N      int
	Mean   float64
	Median float64
	Min    float64
	Max    float64
	StdDev float64
}

// Describe summarizes xs. The median of an even-sized sample is the mean of the
// two middle values; StdDev is the sample (n-1) standard deviation, 0 for n=1.
func Describe(xs []float64) (Summary, error) {
	if len(xs) == 0 {
		return Summary{}, ErrEmptySample
	}
	s := Summary{
		N:    len(xs),
		Mean: stat.Mean(xs, nil),
		Min:  floats.Min(xs),
		Max:  floats.Max(xs),
	}
	if len(xs) > 1 {
		s.StdDev = stat.StdDev(xs, nil)
	}
	s.Median = median(xs)
	return s, nil
}

func median(xs []float64) float64 {
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
