package matching

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/roivaz/prcohort/internal/records"
)

// Dimensions is the length of a feature vector.
const Dimensions = 6

// Vector holds [authorMatch, commits, comments, changedFiles, additions, deletions].
type Vector [Dimensions]float64

// Weights scale each vector dimension. Scores are normalized by the weight total.
type Weights [Dimensions]float64

// DefaultWeights gives every dimension the same influence.
var DefaultWeights = Weights{1.0 / 6, 1.0 / 6, 1.0 / 6, 1.0 / 6, 1.0 / 6, 1.0 / 6}

// Validate reports negative weights or an all-zero weight set.
func (w Weights) Validate() error {
	total := 0.0
	for i, v := range w {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("weight %d must be a non-negative number, got %v", i, v)
		}
		total += v
	}
	if total <= 0 {
		return fmt.Errorf("weights must have a positive sum")
	}
	return nil
}

// ParseWeights reads six comma separated numbers. An empty string yields the
// default weights.
func ParseWeights(s string) (Weights, error) {
	if strings.TrimSpace(s) == "" {
		return DefaultWeights, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != Dimensions {
		return Weights{}, fmt.Errorf("expected %d weights, got %d", Dimensions, len(parts))
	}
	var w Weights
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Weights{}, fmt.Errorf("weight %d: %w", i, err)
		}
		w[i] = v
	}
	return w, w.Validate()
}

// WeightsFromSlice converts a list of six numbers into Weights.
func WeightsFromSlice(values []float64) (Weights, error) {
	if len(values) != Dimensions {
		return Weights{}, fmt.Errorf("expected %d weights, got %d", Dimensions, len(values))
	}
	var w Weights
	copy(w[:], values)
	return w, w.Validate()
}

// FeatureVector builds the vector of rec with no reference author, so the author
// indicator is 1. Missing numeric fields read as 0.
func FeatureVector(rec records.PullRequestRecord) Vector {
	return buildVector(rec, 1)
}

// FeatureVectorAgainst builds the vector of rec relative to a reference author: the
// author indicator is 1 only when rec was written by author.
func FeatureVectorAgainst(rec records.PullRequestRecord, author string) Vector {
	indicator := 0.0
	if rec.Author == author {
		indicator = 1
	}
	return buildVector(rec, indicator)
}

func buildVector(rec records.PullRequestRecord, authorIndicator float64) Vector {
	return Vector{
		authorIndicator,
		float64(rec.Count(records.FieldCommits)),
		float64(rec.Count(records.FieldComments)),
		float64(rec.Count(records.FieldChangedFiles)),
		float64(rec.Count(records.FieldAdditions)),
		float64(rec.Count(records.FieldDeletions)),
	}
}

// Score compares a treatment record with a control candidate, using the treatment
// author as the reference for the candidate's author indicator.
func Score(treatment, control records.PullRequestRecord, w Weights) float64 {
	return Similarity(FeatureVector(treatment), FeatureVectorAgainst(control, treatment.Author), w)
}

// Similarity is the weighted mean over dimensions of 1 - |p-q| / max(p, q). A
// dimension where max(p, q) is 0 agrees perfectly. The result is in [0, 1].
func Similarity(p, q Vector, w Weights) float64 {
	var score, total float64
	for i := 0; i < Dimensions; i++ {
		score += w[i] * agreement(p[i], q[i])
		total += w[i]
	}
	if total <= 0 {
		return 0
	}
	return clamp01(score / total)
}

func agreement(a, b float64) float64 {
	denom := math.Max(a, b)
	if denom == 0 {
		return 1
	}
	return clamp01(1 - math.Abs(a-b)/denom)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0 || math.IsNaN(v):
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
