package stats

import "sort"

// Magnitude is the conventional reading of a Cliff's delta value.
type Magnitude string

const (
	Negligible Magnitude = "negligible"
	Small      Magnitude = "small"
	Medium     Magnitude = "medium"
	Large      Magnitude = "large"
)

// Thresholds from Romano et al. (2006).
const (
	negligibleBelow = 0.147
	smallBelow      = 0.33
	mediumBelow     = 0.474
)

// CliffsDelta returns (#(x > y) - #(x < y)) / (|x|·|y|) over all cross pairs and
// its magnitude.
func CliffsDelta(x, y []float64) (float64, Magnitude, error) {
	if len(x) == 0 || len(y) == 0 {
		return 0, "", ErrEmptySample
	}
	sorted := append([]float64(nil), y...)
	sort.Float64s(sorted)

	dominance := 0
	for _, v := range x {
		less := sort.SearchFloat64s(sorted, v)
		notGreater := sort.Search(len(sorted), func(i int) bool { return sorted[i] > v })
		greater := len(sorted) - notGreater
		dominance += less - greater
	}
	d := float64(dominance) / float64(len(x)*len(y))
	return d, magnitudeOf(d), nil
}

func magnitudeOf(d float64) Magnitude {
	if d < 0 {
		d = -d
	}
	switch {
	case d < negligibleBelow:
		return Negligible
	case d < smallBelow:
		return Small
	case d < mediumBelow:
		return Medium
	default:
		return Large
	}
}
