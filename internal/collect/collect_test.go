package collect

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-github/v66/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roivaz/prcohort/internal/logging"
	"github.com/roivaz/prcohort/internal/records"
)

func testClient(t *testing.T, srv *httptest.Server) *github.Client {
	t.Helper()
	c := github.NewClient(nil)
	base, err := url.Parse(srv.URL + "/")
	require.NoError(t, err)
	c.BaseURL = base
	return c
}

func testFetcher(clients ...*github.Client) *Fetcher {
	return NewFetcher(newTokenPool(clients...), logging.Discard(), WithAttempts(3), WithRetryDelay(time.Millisecond))
}

func pullRequestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/repos/o/r", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"full_name":"o/r","language":"Go"}`)
	})
	mux.HandleFunc("/repos/o/r/pulls/7", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"number": 7,
			"html_url": "https://github.com/o/r/pull/7",
			"user": {"login": "alice"},
			"title": "Add cache",
			"body": "Adds a cache.",
			"created_at": "2023-01-01T00:00:00Z",
			"closed_at": "2023-01-04T00:00:00Z",
			"merged_at": "2023-01-04T00:00:00Z",
			"updated_at": "2023-01-05T00:00:00Z",
			"state": "closed",
			"merged": true,
			"additions": 10,
			"deletions": 2,
			"changed_files": 3,
			"comments": 4,
			"commits": 2
		}`)
	})
	mux.HandleFunc("/repos/o/r/pulls/7/commits", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, `[{"sha":"bbb"}]`)
			return
		}
		w.Header().Set("Link", fmt.Sprintf(`<%s/repos/o/r/pulls/7/commits?page=2>; rel="next"`, srv.URL))
		fmt.Fprint(w, `[{"sha":"aaa"}]`)
	})
	mux.HandleFunc("/repos/o/r/pulls/7/reviews", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"user": {"login": "bob", "type": "User"}, "submitted_at": "2023-01-02T00:00:00Z"},
			{"user": {"login": "ci-bot", "type": "Bot"}, "submitted_at": "2022-12-31T00:00:00Z"},
			{"user": {"login": "carol", "type": "User"}, "submitted_at": "2023-01-01T12:00:00Z"},
			{"user": {"login": "bob", "type": "User"}, "submitted_at": "2023-01-03T08:00:00Z"}
		]`)
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchRecord(t *testing.T) {
	srv := pullRequestServer(t)
	f := testFetcher(testClient(t, srv))

	rec, err := f.FetchRecord(context.Background(), "o/r", 7)
	require.NoError(t, err)

	assert.Equal(t, records.TypePullRequest, rec.Type)
	assert.Equal(t, "https://github.com/o/r/pull/7", rec.URL)
	assert.Equal(t, "alice", rec.Author)
	assert.Equal(t, "o/r", rec.RepoName)
	require.NotNil(t, rec.RepoLanguage)
	assert.Equal(t, "Go", *rec.RepoLanguage)
	assert.Equal(t, records.StateMerged, rec.State)
	assert.Equal(t, "2023-01-01T00:00:00Z", rec.CreatedAt)
	require.NotNil(t, rec.MergedAt)
	assert.Equal(t, "2023-01-04T00:00:00Z", *rec.MergedAt)
	assert.Equal(t, 2, rec.Count(records.FieldCommits))
	assert.Equal(t, 4, rec.Count(records.FieldComments))
	assert.Equal(t, 3, rec.Count(records.FieldChangedFiles))
	assert.Equal(t, []string{"aaa", "bbb"}, rec.CommitShas)

	assert.Equal(t, []string{"bob", "carol"}, rec.Reviewers)
	assert.Equal(t, 2, rec.Count(records.FieldReviewerCount))
	require.NotNil(t, rec.FirstReviewTime)
	assert.Equal(t, "2023-01-01T12:00:00Z", *rec.FirstReviewTime)
	assert.Equal(t, "2023-01-03T08:00:00Z", *rec.FinalReviewTime)
}

func TestFetchRecordRejectsBadRepo(t *testing.T) {
	f := testFetcher(github.NewClient(nil))
	_, err := f.FetchRecord(context.Background(), "no-slash", 1)
	assert.Error(t, err)
}

func TestApplyReviewsWithoutReviews(t *testing.T) {
	var rec records.PullRequestRecord
	applyReviews(&rec, nil)
	assert.Nil(t, rec.FirstReviewTime)
	assert.Equal(t, 0, rec.Count(records.FieldReviewerCount))
	assert.Empty(t, rec.Reviewers)
}

func TestRateLimitRotatesToken(t *testing.T) {
	var limitedHits atomic.Int32
	limited := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limitedHits.Add(1)
		w.Header().Set("X-RateLimit-Limit", "60")
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Reset", fmt.Sprint(time.Now().Add(time.Hour).Unix()))
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"message":"API rate limit exceeded"}`)
	}))
	t.Cleanup(limited.Close)

	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"number": 1, "title": "one", "created_at": "2023-01-01T00:00:00Z", "html_url": "https://github.com/o/r/pull/1"}]`)
	}))
	t.Cleanup(healthy.Close)

	f := testFetcher(testClient(t, limited), testClient(t, healthy))
	rows, err := f.ListPulls(context.Background(), "o/r", Window{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int32(1), limitedHits.Load())
	assert.Equal(t, 1, f.pool.current)
}

func TestOtherErrorsAreNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message":"Not Found"}`)
	}))
	t.Cleanup(srv.Close)

	f := testFetcher(testClient(t, srv))
	_, err := f.ListPulls(context.Background(), "o/r", Window{})
	require.Error(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestListPullsWindow(t *testing.T) {
	var query url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		fmt.Fprint(w, `[
			{"number": 1, "title": "early", "created_at": "2023-01-01T10:00:00Z", "html_url": "https://github.com/o/r/pull/1"},
			{"number": 2, "title": "in, quoted", "created_at": "2023-01-05T23:00:00Z", "html_url": "https://github.com/o/r/pull/2"},
			{"number": 3, "title": "late", "created_at": "2023-01-06T00:00:00Z", "html_url": "https://github.com/o/r/pull/3"}
		]`)
	}))
	t.Cleanup(srv.Close)

	w, err := ParseWindow("2023-01-02", "2023-01-05")
	require.NoError(t, err)
	f := testFetcher(testClient(t, srv))
	rows, err := f.ListPulls(context.Background(), "o/r", w)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 2, rows[0].Number)
	assert.Equal(t, "all", query.Get("state"))
	assert.Equal(t, "created", query.Get("sort"))
	assert.Equal(t, "asc", query.Get("direction"))

	var sb strings.Builder
	require.NoError(t, WritePullRows(&sb, rows))
	assert.Equal(t, "Repository,PR Number,PR Title,Created At,URL\no/r,2,\"in, quoted\",2023-01-05T23:00:00Z,https://github.com/o/r/pull/2\n", sb.String())
}

func TestParseWindow(t *testing.T) {
	_, err := ParseWindow("2023-02-01", "2023-01-01")
	assert.Error(t, err)
	_, err = ParseWindow("01/02/2023", "")
	assert.Error(t, err)

	open, err := ParseWindow("", "")
	require.NoError(t, err)
	assert.True(t, open.Contains(time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestReadRepoTargets(t *testing.T) {
	in := "Repository,Min Date,Max Date,Range,Number of PRs\no/r,2023-01-01,2023-01-31,31,4\nx/y,2023-02-01,2023-02-02,2,\n"
	targets, err := ReadRepoTargets(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, targets, 2)
	assert.Equal(t, "o/r", targets[0].Repo)
	assert.Equal(t, 4, targets[0].Expected)
	assert.Equal(t, -1, targets[1].Expected)
	assert.True(t, targets[0].Window.Contains(time.Date(2023, 1, 31, 23, 0, 0, 0, time.UTC)))
	assert.False(t, targets[0].Window.Contains(time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC)))
}

func TestParsePullURL(t *testing.T) {
	repo, n, err := ParsePullURL("https://github.com/octo-org/hello-world/pull/42")
	require.NoError(t, err)
	assert.Equal(t, "octo-org/hello-world", repo)
	assert.Equal(t, 42, n)

	repo, n, err = ParsePullURL("https://github.com/a/b/pull/7/files")
	require.NoError(t, err)
	assert.Equal(t, "a/b", repo)
	assert.Equal(t, 7, n)

	_, _, err = ParsePullURL("https://github.com/a/b/issues/7")
	assert.Error(t, err)
}

func TestTokenPoolRotation(t *testing.T) {
	p := NewTokenPool([]string{"t1", "t2", "t3"}, time.Second)
	assert.Equal(t, 3, p.Size())
	assert.Equal(t, 1, p.Rotate())
	assert.Equal(t, 2, p.Rotate())
	assert.Equal(t, 0, p.Rotate())

	anon := NewTokenPool(nil, 0)
	assert.Equal(t, 1, anon.Size())
	assert.Equal(t, 0, anon.Rotate())
}
