package collect

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/roivaz/prcohort/internal/records"
)

// DefaultControlRatio is the number of control candidates drawn per treatment
// pull request.
const DefaultControlRatio = 2

// ReadPullRows reads a repository listing written by WritePullRows.
func ReadPullRows(r io.Reader) ([]PullRow, error) {
	table, err := records.ReadTable(r)
	if err != nil {
		return nil, err
	}
	rows := make([]PullRow, 0, len(table))
	for i, t := range table {
		row := PullRow{Repository: t["Repository"], Title: t["PR Title"], URL: t["URL"]}
		if row.Repository == "" || row.URL == "" {
			return nil, fmt.Errorf("row %d: Repository and URL are required", i+1)
		}
		if row.Number, err = strconv.Atoi(t["PR Number"]); err != nil {
			return nil, fmt.Errorf("row %d: PR Number: %w", i+1, err)
		}
		if row.CreatedAt, err = records.ParseTimestamp(t["Created At"]); err != nil {
			return nil, fmt.Errorf("row %d: Created At: %w", i+1, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Shortfall reports a repository whose listing holds fewer pull requests than
// the sample needs. Such repositories are left out of the sample.
type Shortfall struct {
	Repo      string
	Needed    int
	Available int
}

// Sample is the outcome of SampleControls.
type Sample struct {
	// Controls are the sampled pull requests outside the treatment set.
	Controls []PullRow
	// Treatment are sampled pull requests that already belong to the treatment.
	Treatment  []PullRow
	Shortfalls []Shortfall
}

// SampleControls draws control candidates for every target repository, in
// target order. A repository gets ratio times as many pull requests as it has
// treatment records. Selection starts at the newest pull request created on or
// before the target window's end, moves to newer ones, then to older ones.
func SampleControls(rows []PullRow, targets []RepoTarget, treatment []records.PullRequestRecord, ratio int) Sample {
	if ratio <= 0 {
		ratio = DefaultControlRatio
	}
	perRepo := map[string]int{}
	inTreatment := make(map[string]bool, len(treatment))
	for _, t := range treatment {
		perRepo[t.RepoName]++
		inTreatment[t.URL] = true
	}
	byRepo := map[string][]PullRow{}
	for _, r := range rows {
		byRepo[r.Repository] = append(byRepo[r.Repository], r)
	}

	var out Sample
	for _, target := range targets {
		need := perRepo[target.Repo] * ratio
		if need == 0 {
			continue
		}
		listed := byRepo[target.Repo]
		if need > len(listed) {
			out.Shortfalls = append(out.Shortfalls, Shortfall{Repo: target.Repo, Needed: need, Available: len(listed)})
			continue
		}
		for _, r := range pickAround(listed, target.Window, need) {
			if inTreatment[r.URL] {
				out.Treatment = append(out.Treatment, r)
			} else {
				out.Controls = append(out.Controls, r)
			}
		}
	}
	return out
}

// pickAround returns n rows taken around the end of w.
func pickAround(listed []PullRow, w Window, n int) []PullRow {
	newestFirst := append([]PullRow(nil), listed...)
	sort.SliceStable(newestFirst, func(i, j int) bool { return newestFirst[i].CreatedAt.After(newestFirst[j].CreatedAt) })

	start := 0
	for i, r := range newestFirst {
		if !w.after(r.CreatedAt) {
			start = i
			break
		}
	}

	picked := make([]PullRow, 0, n)
	for i := start; i >= 0 && len(picked) < n; i-- {
		picked = append(picked, newestFirst[i])
	}
	for i := start + 1; i < len(newestFirst) && len(picked) < n; i++ {
		picked = append(picked, newestFirst[i])
	}
	return picked
}

// SampleURLs returns the URLs of rows in order.
func SampleURLs(rows []PullRow) []string {
	urls := make([]string, len(rows))
	for i, r := range rows {
		urls[i] = r.URL
	}
	return urls
}
