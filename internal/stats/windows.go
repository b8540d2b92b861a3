package stats

import (
	"time"

	"github.com/roivaz/prcohort/internal/records"
)

const dateLayout = "2006-01-02"

// RepoWindow is the padded creation-date range of one repository's pull requests.
type RepoWindow struct {
	Repo  string
	Start string
	End   string
	// Days is the inclusive length of the padded range.
	Days  int
	Count int
}

// RepoWindows computes, per repository in first-seen order, the earliest and
// latest creation date widened by pad days on each side.
func RepoWindows(recs []records.PullRequestRecord, pad int) ([]RepoWindow, error) {
	type span struct {
		first, last time.Time
		count       int
	}
	var order []string
	spans := map[string]*span{}
	for _, r := range recs {
		created, err := r.Created()
		if err != nil {
			return nil, err
		}
		day := created.Truncate(24 * time.Hour)
		s, ok := spans[r.RepoName]
		if !ok {
			order = append(order, r.RepoName)
			spans[r.RepoName] = &span{first: day, last: day, count: 1}
			continue
		}
		if day.Before(s.first) {
			s.first = day
		}
		if day.After(s.last) {
			s.last = day
		}
		s.count++
	}

	out := make([]RepoWindow, 0, len(order))
	for _, repo := range order {
		s := spans[repo]
		start := s.first.AddDate(0, 0, -pad)
		end := s.last.AddDate(0, 0, pad)
		out = append(out, RepoWindow{
			Repo:  repo,
			Start: start.Format(dateLayout),
			End:   end.Format(dateLayout),
			Days:  int(end.Sub(start).Hours()/24) + 1,
			Count: s.count,
		})
	}
	return out, nil
}

// DurationRow lists how long one pull request stayed open.
type DurationRow struct {
	RepoName string
	Number   int
	URL      string
	State    string
	Comments int
	Commits  int
	// ToClose and ToMerge are zero with the matching flag false when the pull
	// request was never closed or merged.
	ToClose time.Duration
	Closed  bool
	ToMerge time.Duration
	Merged  bool
}

// DurationRows builds one row per record.
func DurationRows(recs []records.PullRequestRecord) ([]DurationRow, error) {
	out := make([]DurationRow, 0, len(recs))
	for _, r := range recs {
		created, err := r.Created()
		if err != nil {
			return nil, err
		}
		row := DurationRow{
			RepoName: r.RepoName,
			Number:   r.Number,
			URL:      r.URL,
			State:    r.State,
			Comments: r.Count(records.FieldComments),
			Commits:  r.Count(records.FieldCommits),
		}
		closed, ok, err := r.OptionalTime("ClosedAt", r.ClosedAt)
		if err != nil {
			return nil, err
		}
		if ok {
			row.ToClose, row.Closed = closed.Sub(created), true
		}
		merged, ok, err := r.OptionalTime("MergedAt", r.MergedAt)
		if err != nil {
			return nil, err
		}
		if ok {
			row.ToMerge, row.Merged = merged.Sub(created), true
		}
		out = append(out, row)
	}
	return out, nil
}
