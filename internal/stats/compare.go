package stats

import (
	"fmt"

	"github.com/roivaz/prcohort/internal/records"
)

// Comparison holds both tests run on one pair of samples.
type Comparison struct {
	Label     string
	X, Y      Summary
	RankSum   RankSum
	Delta     float64
	Magnitude Magnitude
}

// Compare describes x and y and runs the Mann-Whitney U test and Cliff's delta.
func Compare(label string, x, y []float64) (Comparison, error) {
	c := Comparison{Label: label}
	var err error
	if c.X, err = Describe(x); err != nil {
		return c, fmt.Errorf("%s: first sample: %w", label, err)
	}
	if c.Y, err = Describe(y); err != nil {
		return c, fmt.Errorf("%s: second sample: %w", label, err)
	}
	if c.RankSum, err = MannWhitneyU(x, y); err != nil {
		return c, fmt.Errorf("%s: %w", label, err)
	}
	if c.Delta, c.Magnitude, err = CliffsDelta(x, y); err != nil {
		return c, fmt.Errorf("%s: %w", label, err)
	}
	return c, nil
}

// FieldValues returns the values of f on the records where it is present.
func FieldValues(recs []records.PullRequestRecord, f records.Field) []float64 {
	var out []float64
	for _, r := range recs {
		if v, ok := r.Lookup(f); ok {
			out = append(out, float64(v))
		}
	}
	return out
}

// CategoryFrequencies counts category labels in a and b over the union of
// labels, in first-seen order (a before b). A label missing from one side counts
// as zero there.
func CategoryFrequencies(a, b []string) (labels []string, freqA, freqB []float64) {
	index := map[string]int{}
	add := func(label string) int {
		i, ok := index[label]
		if !ok {
			i = len(labels)
			index[label] = i
			labels = append(labels, label)
			freqA = append(freqA, 0)
			freqB = append(freqB, 0)
		}
		return i
	}
	for _, l := range a {
		freqA[add(l)]++
	}
	for _, l := range b {
		freqB[add(l)]++
	}
	return labels, freqA, freqB
}

// MissingScoringFields counts, per scoring field, the records where it is
// absent and therefore scored as zero.
func MissingScoringFields(recs []records.PullRequestRecord) map[records.Field]int {
	out := map[records.Field]int{}
	for _, r := range recs {
		for _, f := range r.MissingFields() {
			out[f]++
		}
	}
	return out
}
