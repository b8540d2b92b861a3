package stats

import "github.com/roivaz/prcohort/internal/records"

// AbandonmentSummary counts outcomes of finished pull requests. Open pull
// requests are excluded.
type AbandonmentSummary struct {
	Total     int
	Merged    int
	Abandoned int
	// Rate is Abandoned/Total as a percentage.
	Rate float64

	MergedCategories    []string
	AbandonedCategories []string
}

// Abandonment classifies each finished pull request as merged or abandoned
// (closed without a merge time).
func Abandonment(recs []records.PullRequestRecord) AbandonmentSummary {
	var s AbandonmentSummary
	for _, r := range recs {
		switch r.State {
		case records.StateOpen:
			continue
		case records.StateMerged:
			s.Merged++
			s.MergedCategories = append(s.MergedCategories, r.Category)
		case records.StateClosed:
			if r.MergedAt == nil || *r.MergedAt == "" {
				s.Abandoned++
				s.AbandonedCategories = append(s.AbandonedCategories, r.Category)
			}
		}
		s.Total++
	}
	if s.Total > 0 {
		s.Rate = float64(s.Abandoned) / float64(s.Total) * 100
	}
	return s
}
