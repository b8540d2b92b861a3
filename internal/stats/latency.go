package stats

import (
	"github.com/roivaz/prcohort/internal/records"
)

// Latency is a duration in hours measured on one pull request.
type Latency struct {
	URL      string
	Category string
	Hours    float64
}

// ReviewLatencies measures hours from creation to the first human review. A pull
// request closed without review contributes its time to close; records with
// neither timestamp are skipped.
func ReviewLatencies(recs []records.PullRequestRecord) ([]Latency, error) {
	var out []Latency
	for _, r := range recs {
		end, ok, err := r.OptionalTime("FirstReviewTime", r.FirstReviewTime)
		if err != nil {
			return nil, err
		}
		if !ok {
			end, ok, err = r.OptionalTime("ClosedAt", r.ClosedAt)
			if err != nil {
				return nil, err
			}
		}
		if !ok {
			continue
		}
		start, err := r.Created()
		if err != nil {
			return nil, err
		}
		out = append(out, Latency{URL: r.URL, Category: r.Category, Hours: end.Sub(start).Hours()})
	}
	return out, nil
}

// MergeLatencies measures hours from creation to merge for merged pull requests.
func MergeLatencies(recs []records.PullRequestRecord) ([]Latency, error) {
	var out []Latency
	for _, r := range recs {
		if r.State != records.StateMerged {
			continue
		}
		end, ok, err := r.OptionalTime("MergedAt", r.MergedAt)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		start, err := r.Created()
		if err != nil {
			return nil, err
		}
		out = append(out, Latency{URL: r.URL, Category: r.Category, Hours: end.Sub(start).Hours()})
	}
	return out, nil
}

// Hours extracts the measured values.
func Hours(ls []Latency) []float64 {
	out := make([]float64, len(ls))
	for i, l := range ls {
		out[i] = l.Hours
	}
	return out
}

// Categories extracts the category of every measurement, unlabelled ones included.
func Categories(ls []Latency) []string {
	out := make([]string, len(ls))
	for i, l := range ls {
		out[i] = l.Category
	}
	return out
}
