package collect

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/go-github/v66/github"
	"github.com/tidwall/gjson"
)

// CommitRef is a shared commit found in a snapshot.
type CommitRef struct {
	Repo string
	SHA  string
}

// CommitPull links a commit to the pull request that introduced it. PRNumber is
// nil when no pull request contains the commit.
type CommitPull struct {
	Repository string `json:"Repository"`
	CommitHash string `json:"CommitHash"`
	PRNumber   *int   `json:"PRNumber"`
}

// ReadCommitRefs reads the commit entries (Type "commit") of a Sources
// document, once per repository and SHA, in first-seen order.
func ReadCommitRefs(r io.Reader) ([]CommitRef, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("commit snapshot is not valid JSON")
	}
	sources := gjson.GetBytes(data, "Sources")
	if !sources.IsArray() {
		return nil, fmt.Errorf("commit snapshot has no Sources array")
	}

	seen := map[CommitRef]bool{}
	var refs []CommitRef
	sources.ForEach(func(_, s gjson.Result) bool {
		if s.Get("Type").String() != "commit" {
			return true
		}
		ref := CommitRef{Repo: s.Get("RepoName").String(), SHA: s.Get("Sha").String()}
		if ref.Repo == "" || ref.SHA == "" || seen[ref] {
			return true
		}
		seen[ref] = true
		refs = append(refs, ref)
		return true
	})
	return refs, nil
}

// PullForCommit returns the lowest numbered pull request of repo containing
// sha, or nil when there is none.
func (f *Fetcher) PullForCommit(ctx context.Context, repo, sha string) (*int, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}
	opts := &github.ListOptions{PerPage: perPage}
	var number *int
	for {
		var (
			prs  []*github.PullRequest
			resp *github.Response
		)
		err := f.call(ctx, "list pull requests with commit", func(c *github.Client) error {
			var err error
			prs, resp, err = c.PullRequests.ListPullRequestsWithCommit(ctx, owner, name, sha, opts)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("pull requests with commit %s in %s: %w", sha, repo, err)
		}
		for _, pr := range prs {
			if n := pr.GetNumber(); number == nil || n < *number {
				number = &n
			}
		}
		if resp.NextPage == 0 {
			return number, nil
		}
		opts.Page = resp.NextPage
	}
}

// MapCommits resolves every ref. Lookups that fail are logged and kept with a
// nil PRNumber.
func (f *Fetcher) MapCommits(ctx context.Context, refs []CommitRef) ([]CommitPull, error) {
	out := make([]CommitPull, 0, len(refs))
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		number, err := f.PullForCommit(ctx, ref.Repo, ref.SHA)
		if err != nil {
			f.log.Error(err, "commit lookup failed", "repo", ref.Repo, "sha", ref.SHA)
		}
		out = append(out, CommitPull{Repository: ref.Repo, CommitHash: ref.SHA, PRNumber: number})
	}
	return out, nil
}

// WriteCommitPulls writes {"Commits": [...]}; withPullOnly drops commits that
// map to no pull request.
func WriteCommitPulls(w io.Writer, pulls []CommitPull, withPullOnly bool) error {
	kept := make([]CommitPull, 0, len(pulls))
	for _, p := range pulls {
		if withPullOnly && p.PRNumber == nil {
			continue
		}
		kept = append(kept, p)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	return enc.Encode(struct {
		Commits []CommitPull `json:"Commits"`
	}{Commits: kept})
}
