package collect

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/go-github/v66/github"

	"github.com/roivaz/prcohort/internal/records"
)

const dateLayout = "2006-01-02"

// PullRowsHeader is the header of the repository listing CSV.
var PullRowsHeader = []string{"Repository", "PR Number", "PR Title", "Created At", "URL"}

// Window is an inclusive range of creation dates. Zero bounds are open.
type Window struct {
	From time.Time
	To   time.Time
}

// ParseWindow reads YYYY-MM-DD bounds; empty strings leave the bound open.
func ParseWindow(from, to string) (Window, error) {
	var w Window
	var err error
	if from != "" {
		if w.From, err = time.Parse(dateLayout, from); err != nil {
			return Window{}, fmt.Errorf("window start: %w", err)
		}
	}
	if to != "" {
		if w.To, err = time.Parse(dateLayout, to); err != nil {
			return Window{}, fmt.Errorf("window end: %w", err)
		}
	}
	if !w.From.IsZero() && !w.To.IsZero() && w.To.Before(w.From) {
		return Window{}, fmt.Errorf("window end %s is before start %s", to, from)
	}
	return w, nil
}

func day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (w Window) before(t time.Time) bool { return !w.From.IsZero() && day(t).Before(day(w.From)) }
func (w Window) after(t time.Time) bool  { return !w.To.IsZero() && day(t).After(day(w.To)) }

// Contains reports whether t falls on a day inside the window.
func (w Window) Contains(t time.Time) bool { return !w.before(t) && !w.after(t) }

// PullRow is one line of a repository listing.
type PullRow struct {
	Repository string
	Number     int
	Title      string
	CreatedAt  time.Time
	URL        string
}

// ListPulls lists the repository's pull requests of any state, oldest first,
// keeping those created inside w.
func (f *Fetcher) ListPulls(ctx context.Context, repo string, w Window) ([]PullRow, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}
	opts := &github.PullRequestListOptions{
		State:       "all",
		Sort:        "created",
		Direction:   "asc",
		ListOptions: github.ListOptions{PerPage: perPage},
	}

	var rows []PullRow
	for {
		var (
			prs  []*github.PullRequest
			resp *github.Response
		)
		err := f.call(ctx, "list pull requests", func(c *github.Client) error {
			var err error
			prs, resp, err = c.PullRequests.List(ctx, owner, name, opts)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("list pull requests %s: %w", repo, err)
		}
		for _, pr := range prs {
			created := pr.GetCreatedAt().Time
			if w.after(created) {
				return rows, nil
			}
			if w.before(created) {
				continue
			}
			rows = append(rows, PullRow{
				Repository: repo,
				Number:     pr.GetNumber(),
				Title:      pr.GetTitle(),
				CreatedAt:  created.UTC(),
				URL:        pr.GetHTMLURL(),
			})
		}
		if resp.NextPage == 0 {
			return rows, nil
		}
		opts.Page = resp.NextPage
	}
}

// WritePullRows writes rows as CSV with PullRowsHeader.
func WritePullRows(w io.Writer, rows []PullRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(PullRowsHeader); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{r.Repository, strconv.Itoa(r.Number), r.Title, records.FormatTimestamp(r.CreatedAt), r.URL}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// RepoTarget is a repository to list together with its creation window.
type RepoTarget struct {
	Repo   string
	Window Window
	// Expected is the number of pull requests the study already holds for the
	// repository, -1 when unknown.
	Expected int
}

// ReadRepoTargets reads a CSV with Repository, Min Date and Max Date columns and
// an optional "Number of PRs" column.
func ReadRepoTargets(r io.Reader) ([]RepoTarget, error) {
	table, err := records.ReadTable(r)
	if err != nil {
		return nil, err
	}
	out := make([]RepoTarget, 0, len(table))
	for i, row := range table {
		repo := row["Repository"]
		if repo == "" {
			return nil, fmt.Errorf("row %d: missing Repository", i+1)
		}
		w, err := ParseWindow(row["Min Date"], row["Max Date"])
		if err != nil {
			return nil, fmt.Errorf("row %d (%s): %w", i+1, repo, err)
		}
		t := RepoTarget{Repo: repo, Window: w, Expected: -1}
		if n, ok := row["Number of PRs"]; ok && n != "" {
			if t.Expected, err = strconv.Atoi(n); err != nil {
				return nil, fmt.Errorf("row %d (%s): Number of PRs: %w", i+1, repo, err)
			}
		}
		out = append(out, t)
	}
	return out, nil
}
