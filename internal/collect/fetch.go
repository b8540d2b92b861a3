package collect

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/go-github/v66/github"

	"github.com/roivaz/prcohort/internal/logging"
	"github.com/roivaz/prcohort/internal/records"
)

const perPage = 100

// Fetcher reads pull requests from GitHub into records.
type Fetcher struct {
	pool     *TokenPool
	log      logging.Logger
	attempts uint
	delay    time.Duration
}

type FetcherOption func(*Fetcher)

// WithAttempts bounds the number of tries per API call.
func WithAttempts(n int) FetcherOption {
	return func(f *Fetcher) {
		if n > 0 {
			f.attempts = uint(n)
		}
	}
}

// WithRetryDelay sets the first backoff delay after a rate limit.
func WithRetryDelay(d time.Duration) FetcherOption {
	return func(f *Fetcher) { f.delay = d }
}

func NewFetcher(pool *TokenPool, log logging.Logger, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{pool: pool, log: log.WithName("collect"), attempts: 5, delay: initialRetryDelay}
	for _, o := range opts {
		o(f)
	}
	return f
}

func (f *Fetcher) call(ctx context.Context, operation string, fn func(*github.Client) error) error {
	return call(ctx, f.pool, f.attempts, f.delay, f.log, operation, fn)
}

func splitRepo(repo string) (owner, name string, err error) {
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" {
		return "", "", fmt.Errorf("repository %q is not owner/name", repo)
	}
	return owner, name, nil
}

// FetchRecord collects one pull request: its details, the repository language,
// commit SHAs and the reviews left by non-bot users.
func (f *Fetcher) FetchRecord(ctx context.Context, repo string, number int) (records.PullRequestRecord, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return records.PullRequestRecord{}, err
	}

	var repository *github.Repository
	err = f.call(ctx, "get repository", func(c *github.Client) error {
		var err error
		repository, _, err = c.Repositories.Get(ctx, owner, name)
		return err
	})
	if err != nil {
		return records.PullRequestRecord{}, fmt.Errorf("get repository %s: %w", repo, err)
	}

	var pr *github.PullRequest
	err = f.call(ctx, "get pull request", func(c *github.Client) error {
		var err error
		pr, _, err = c.PullRequests.Get(ctx, owner, name, number)
		return err
	})
	if err != nil {
		return records.PullRequestRecord{}, fmt.Errorf("get pull request %s#%d: %w", repo, number, err)
	}

	shas, err := f.commitSHAs(ctx, owner, name, number)
	if err != nil {
		return records.PullRequestRecord{}, fmt.Errorf("list commits %s#%d: %w", repo, number, err)
	}
	reviews, err := f.humanReviews(ctx, owner, name, number)
	if err != nil {
		return records.PullRequestRecord{}, fmt.Errorf("list reviews %s#%d: %w", repo, number, err)
	}

	rec := buildRecord(repo, repository, pr)
	rec.CommitShas = shas
	applyReviews(&rec, reviews)
	f.log.Debug("fetched pull request", "url", rec.URL, "reviews", len(reviews), "commits", len(shas))
	return rec, nil
}

func (f *Fetcher) commitSHAs(ctx context.Context, owner, name string, number int) ([]string, error) {
	shas := []string{}
	opts := &github.ListOptions{PerPage: perPage}
	for {
		var (
			commits []*github.RepositoryCommit
			resp    *github.Response
		)
		err := f.call(ctx, "list commits", func(c *github.Client) error {
			var err error
			commits, resp, err = c.PullRequests.ListCommits(ctx, owner, name, number, opts)
			return err
		})
		if err != nil {
			return nil, err
		}
		for _, c := range commits {
			shas = append(shas, c.GetSHA())
		}
		if resp.NextPage == 0 {
			return shas, nil
		}
		opts.Page = resp.NextPage
	}
}

func (f *Fetcher) humanReviews(ctx context.Context, owner, name string, number int) ([]*github.PullRequestReview, error) {
	var out []*github.PullRequestReview
	opts := &github.ListOptions{PerPage: perPage}
	for {
		var (
			reviews []*github.PullRequestReview
			resp    *github.Response
		)
		err := f.call(ctx, "list reviews", func(c *github.Client) error {
			var err error
			reviews, resp, err = c.PullRequests.ListReviews(ctx, owner, name, number, opts)
			return err
		})
		if err != nil {
			return nil, err
		}
		for _, r := range reviews {
			if r.User == nil || r.User.GetType() == "Bot" {
				continue
			}
			out = append(out, r)
		}
		if resp.NextPage == 0 {
			return out, nil
		}
		opts.Page = resp.NextPage
	}
}

func buildRecord(repo string, repository *github.Repository, pr *github.PullRequest) records.PullRequestRecord {
	rec := records.PullRequestRecord{
		Type:              records.TypePullRequest,
		URL:               pr.GetHTMLURL(),
		Author:            pr.GetUser().GetLogin(),
		RepoName:          repo,
		RepoLanguage:      repository.Language,
		Number:            pr.GetNumber(),
		Title:             pr.GetTitle(),
		Body:              pr.GetBody(),
		CreatedAt:         formatTime(pr.CreatedAt),
		ClosedAt:          optionalTime(pr.ClosedAt),
		MergedAt:          optionalTime(pr.MergedAt),
		UpdatedAt:         formatTime(pr.UpdatedAt),
		State:             strings.ToUpper(pr.GetState()),
		Additions:         records.Int(pr.GetAdditions()),
		Deletions:         records.Int(pr.GetDeletions()),
		ChangedFiles:      records.Int(pr.GetChangedFiles()),
		CommentsCount:     records.Int(pr.GetComments()),
		CommitsTotalCount: records.Int(pr.GetCommits()),
	}
	if pr.GetMerged() || pr.MergedAt != nil {
		rec.State = records.StateMerged
	}
	return rec
}

func applyReviews(rec *records.PullRequestRecord, reviews []*github.PullRequestReview) {
	seen := map[string]struct{}{}
	reviewers := []string{}
	var first, final time.Time
	for _, r := range reviews {
		login := r.GetUser().GetLogin()
		if _, ok := seen[login]; !ok {
			seen[login] = struct{}{}
			reviewers = append(reviewers, login)
		}
		if r.SubmittedAt == nil {
			continue
		}
		at := r.SubmittedAt.Time
		if first.IsZero() || at.Before(first) {
			first = at
		}
		if final.IsZero() || at.After(final) {
			final = at
		}
	}
	sort.Strings(reviewers)
	rec.Reviewers = reviewers
	rec.ReviewerCount = records.Int(len(reviewers))
	if !first.IsZero() {
		rec.FirstReviewTime = records.String(records.FormatTimestamp(first))
		rec.FinalReviewTime = records.String(records.FormatTimestamp(final))
	}
}

func formatTime(ts *github.Timestamp) string {
	if ts == nil {
		return ""
	}
	return records.FormatTimestamp(ts.Time)
}

func optionalTime(ts *github.Timestamp) *string {
	if ts == nil {
		return nil
	}
	return records.String(records.FormatTimestamp(ts.Time))
}
