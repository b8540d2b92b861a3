package records

import (
	"sort"
)

// Key identifies a pull request by repository and number.
type Key struct {
	RepoName string
	Number   int
}

// FindDuplicates returns every key seen more than once, one entry per extra
// occurrence, in input order.
func FindDuplicates(recs []PullRequestRecord) []Key {
	seen := make(map[Key]bool, len(recs))
	var dups []Key
	for _, rec := range recs {
		k := Key{RepoName: rec.RepoName, Number: rec.Number}
		if seen[k] {
			dups = append(dups, k)
			continue
		}
		seen[k] = true
	}
	return dups
}

// Span returns the earliest and latest record by creation time.
func Span(recs []PullRequestRecord) (first, last PullRequestRecord, err error) {
	if len(recs) == 0 {
		return first, last, ErrNoSources
	}
	type dated struct {
		rec PullRequestRecord
		at  int64
	}
	all := make([]dated, 0, len(recs))
	for _, rec := range recs {
		t, err := rec.Created()
		if err != nil {
			return first, last, err
		}
		all = append(all, dated{rec: rec, at: t.UnixNano()})
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].at < all[j].at })
	return all[0].rec, all[len(all)-1].rec, nil
}

// SelectByURL returns the first record for each URL, in urls order, and the
// URLs no record carries.
func SelectByURL(recs []PullRequestRecord, urls []string) (selected []PullRequestRecord, missing []string) {
	byURL := make(map[string]PullRequestRecord, len(recs))
	for _, r := range recs {
		if _, ok := byURL[r.URL]; !ok {
			byURL[r.URL] = r
		}
	}
	for _, u := range urls {
		if r, ok := byURL[u]; ok {
			selected = append(selected, r)
			continue
		}
		missing = append(missing, u)
	}
	return selected, missing
}
