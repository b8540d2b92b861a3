package collect

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roivaz/prcohort/internal/records"
)

func listing(repo string, days ...int) []PullRow {
	rows := make([]PullRow, len(days))
	for i, d := range days {
		rows[i] = PullRow{
			Repository: repo,
			Number:     i + 1,
			Title:      fmt.Sprintf("change %d", i+1),
			CreatedAt:  time.Date(2023, 1, d, 9, 0, 0, 0, time.UTC),
			URL:        fmt.Sprintf("https://github.com/%s/pull/%d", repo, i+1),
		}
	}
	return rows
}

func numbers(rows []PullRow) []int {
	out := make([]int, len(rows))
	for i, r := range rows {
		out[i] = r.Number
	}
	return out
}

func TestPickAroundWindowEnd(t *testing.T) {
	rows := listing("o/r", 1, 5, 10, 15, 20, 25)

	w, err := ParseWindow("", "2023-01-12")
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4, 5, 6}, numbers(pickAround(rows, w, 4)))

	w, err = ParseWindow("", "2023-01-20")
	require.NoError(t, err)
	assert.Equal(t, []int{5, 6, 4, 3}, numbers(pickAround(rows, w, 4)))

	assert.Equal(t, []int{6, 5}, numbers(pickAround(rows, Window{}, 2)))
}

func TestSampleControls(t *testing.T) {
	rows := append(listing("o/r", 1, 5, 10, 15, 20, 25), listing("o/s", 2, 3)...)
	rows = append(rows, listing("o/t", 4)...)
	end, err := ParseWindow("", "2023-01-12")
	require.NoError(t, err)
	targets := []RepoTarget{
		{Repo: "o/s", Window: end, Expected: -1},
		{Repo: "o/r", Window: end, Expected: -1},
		{Repo: "o/t", Window: end, Expected: -1},
	}
	treatment := []records.PullRequestRecord{
		{URL: "https://github.com/o/r/pull/3", RepoName: "o/r"},
		{URL: "https://github.com/o/r/pull/99", RepoName: "o/r"},
		{URL: "https://github.com/o/s/pull/9", RepoName: "o/s"},
		{URL: "https://github.com/o/s/pull/8", RepoName: "o/s"},
	}

	sample := SampleControls(rows, targets, treatment, 0)
	assert.Equal(t, []Shortfall{{Repo: "o/s", Needed: 4, Available: 2}}, sample.Shortfalls)
	assert.Equal(t, []int{4, 5, 6}, numbers(sample.Controls))
	require.Len(t, sample.Treatment, 1)
	assert.Equal(t, "https://github.com/o/r/pull/3", sample.Treatment[0].URL)
	assert.Equal(t, []string{
		"https://github.com/o/r/pull/4",
		"https://github.com/o/r/pull/5",
		"https://github.com/o/r/pull/6",
	}, SampleURLs(sample.Controls))

	one := SampleControls(rows, targets[1:2], treatment, 1)
	assert.Equal(t, []int{4}, numbers(one.Controls))
}

func TestPullRowsRoundTrip(t *testing.T) {
	in := listing("o/r", 3, 7)
	var buf bytes.Buffer
	require.NoError(t, WritePullRows(&buf, in))

	out, err := ReadPullRows(strings.NewReader(buf.String()))
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = ReadPullRows(strings.NewReader("Repository,PR Number,PR Title,Created At,URL\no/r,x,t,2023-01-01T00:00:00Z,u\n"))
	assert.Error(t, err)
}

func TestReadCommitRefs(t *testing.T) {
	doc := `{"Sources": [
		{"Type": "commit", "RepoName": "o/r", "Sha": "abc"},
		{"Type": "pull request", "RepoName": "o/r", "URL": "u"},
		{"Type": "commit", "RepoName": "o/r", "Sha": "abc"},
		{"Type": "commit", "RepoName": "o/x", "Sha": "def"}
	]}`
	refs, err := ReadCommitRefs(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, []CommitRef{{Repo: "o/r", SHA: "abc"}, {Repo: "o/x", SHA: "def"}}, refs)

	_, err = ReadCommitRefs(strings.NewReader(`{"Commits": []}`))
	assert.Error(t, err)
}

func TestMapCommits(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/o/r/commits/abc/pulls", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"number": 9}, {"number": 4}]`)
	})
	mux.HandleFunc("/repos/o/r/commits/zzz/pulls", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := testFetcher(testClient(t, srv))
	pulls, err := f.MapCommits(context.Background(), []CommitRef{
		{Repo: "o/r", SHA: "abc"},
		{Repo: "o/r", SHA: "zzz"},
		{Repo: "o/gone", SHA: "def"},
	})
	require.NoError(t, err)
	require.Len(t, pulls, 3)
	require.NotNil(t, pulls[0].PRNumber)
	assert.Equal(t, 4, *pulls[0].PRNumber)
	assert.Nil(t, pulls[1].PRNumber)
	assert.Nil(t, pulls[2].PRNumber)

	var buf bytes.Buffer
	require.NoError(t, WriteCommitPulls(&buf, pulls, true))
	assert.Equal(t, "{\n    \"Commits\": [\n        {\n            \"Repository\": \"o/r\",\n            \"CommitHash\": \"abc\",\n            \"PRNumber\": 4\n        }\n    ]\n}\n", buf.String())
}
