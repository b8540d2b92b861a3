package matching

import (
	"bytes"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/roivaz/prcohort/internal/records"
)

func pr(url, repo, author string, commits, comments, files, adds, dels int) records.PullRequestRecord {
	return records.PullRequestRecord{
		URL:               url,
		RepoName:          repo,
		Author:            author,
		CommitsTotalCount: records.Int(commits),
		CommentsCount:     records.Int(comments),
		ChangedFiles:      records.Int(files),
		Additions:         records.Int(adds),
		Deletions:         records.Int(dels),
	}
}

func TestMatchPicksIdenticalControl(t *testing.T) {
	treatment := []records.PullRequestRecord{pr("t1", "r", "a", 5, 2, 3, 10, 1)}
	control := []records.PullRequestRecord{
		pr("c1", "r", "a", 5, 2, 3, 10, 1),
		pr("c2", "r", "b", 0, 0, 0, 0, 0),
	}
	res := New().Match(treatment, control)
	want := []Pair{{TreatmentURL: "t1", ControlURL: "c1", Score: 1}}
	if !reflect.DeepEqual(res.Pairs, want) {
		t.Fatalf("pairs = %+v, want %+v", res.Pairs, want)
	}
	if len(res.Unmatched) != 0 {
		t.Fatalf("expected no unmatched, got %v", res.Unmatched)
	}
	if len(res.Controls) != 1 || res.Controls[0].URL != "c1" {
		t.Fatalf("expected c1 as the only selected control, got %+v", res.Controls)
	}
}

func TestMatchRepositoryWithoutControls(t *testing.T) {
	treatment := []records.PullRequestRecord{pr("t1", "x", "a", 1, 1, 1, 1, 1)}
	control := []records.PullRequestRecord{pr("c1", "y", "a", 1, 1, 1, 1, 1)}
	res := New().Match(treatment, control)
	if len(res.Pairs) != 0 {
		t.Fatalf("expected no pairs, got %+v", res.Pairs)
	}
	if !reflect.DeepEqual(res.Unmatched, []string{"t1"}) {
		t.Fatalf("unmatched = %v", res.Unmatched)
	}
}

func TestMatchFirstComeFirstServed(t *testing.T) {
	treatment := []records.PullRequestRecord{
		pr("t1", "r", "a", 1, 0, 1, 5, 0),
		pr("t2", "r", "a", 1, 0, 1, 5, 0),
	}
	control := []records.PullRequestRecord{pr("c1", "r", "z", 9, 9, 9, 9, 9)}

	res := New().Match(treatment, control)
	if len(res.Pairs) != 1 || res.Pairs[0].TreatmentURL != "t1" || res.Pairs[0].ControlURL != "c1" {
		t.Fatalf("expected t1 to claim c1, got %+v", res.Pairs)
	}
	if !reflect.DeepEqual(res.Unmatched, []string{"t2"}) {
		t.Fatalf("unmatched = %v", res.Unmatched)
	}

	reversed := New().Match([]records.PullRequestRecord{treatment[1], treatment[0]}, control)
	if reversed.Pairs[0].TreatmentURL != "t2" {
		t.Fatalf("reordering the input should change who claims first, got %+v", reversed.Pairs)
	}
}

func TestMatchTieGoesToFirstCandidate(t *testing.T) {
	treatment := []records.PullRequestRecord{pr("t1", "r", "a", 2, 2, 2, 2, 2)}
	control := []records.PullRequestRecord{
		pr("c1", "r", "b", 1, 2, 2, 2, 2),
		pr("c2", "r", "b", 1, 2, 2, 2, 2),
	}
	res := New().Match(treatment, control)
	if res.Pairs[0].ControlURL != "c1" {
		t.Fatalf("tie should go to the first candidate, got %s", res.Pairs[0].ControlURL)
	}
}

func TestMatchPrefersSameAuthor(t *testing.T) {
	treatment := []records.PullRequestRecord{pr("t1", "r", "a", 2, 2, 2, 2, 2)}
	control := []records.PullRequestRecord{
		pr("c1", "r", "b", 2, 2, 2, 2, 2),
		pr("c2", "r", "a", 2, 2, 2, 2, 2),
	}
	res := New().Match(treatment, control)
	if res.Pairs[0].ControlURL != "c2" || res.Pairs[0].Score != 1 {
		t.Fatalf("expected same-author control with score 1, got %+v", res.Pairs[0])
	}
}

func TestMatchMissingFieldsReadAsZero(t *testing.T) {
	treatment := []records.PullRequestRecord{{URL: "t1", RepoName: "r", Author: "a"}}
	control := []records.PullRequestRecord{
		{URL: "c1", RepoName: "r", Author: "a", Additions: records.Int(10)},
		{URL: "c2", RepoName: "r", Author: "a"},
	}
	res := New().Match(treatment, control)
	if res.Pairs[0].ControlURL != "c2" || res.Pairs[0].Score != 1 {
		t.Fatalf("expected the all-zero control, got %+v", res.Pairs[0])
	}
}

func TestMatchEmptyInputs(t *testing.T) {
	res := New().Match(nil, nil)
	if len(res.Pairs) != 0 || len(res.Unmatched) != 0 {
		t.Fatalf("expected empty result, got %+v", res)
	}
	res = New().Match([]records.PullRequestRecord{pr("t1", "r", "a", 0, 0, 0, 0, 0)}, nil)
	if len(res.Unmatched) != 1 {
		t.Fatalf("expected t1 unmatched, got %+v", res)
	}
}

// population builds n records spread over three repositories with varied sizes.
func population(prefix string, n int, seed int) []records.PullRequestRecord {
	out := make([]records.PullRequestRecord, 0, n)
	for i := 0; i < n; i++ {
		k := i*seed + 7
		out = append(out, pr(
			fmt.Sprintf("%s%d", prefix, i),
			fmt.Sprintf("repo%d", k%3),
			fmt.Sprintf("user%d", k%4),
			k%5, k%7, k%4, (k*13)%50, (k*7)%20,
		))
	}
	return out
}

func TestMatchInvariants(t *testing.T) {
	treatment := population("t", 40, 3)
	control := population("c", 30, 5)
	repoOf := map[string]string{}
	for _, rec := range append(append([]records.PullRequestRecord{}, treatment...), control...) {
		repoOf[rec.URL] = rec.RepoName
	}

	res := New().Match(treatment, control)

	if got := len(res.Pairs) + len(res.Unmatched); got != len(treatment) {
		t.Fatalf("completeness: %d pairs + %d unmatched != %d", len(res.Pairs), len(res.Unmatched), len(treatment))
	}
	usedControl := map[string]string{}
	for _, p := range res.Pairs {
		if prev, ok := usedControl[p.ControlURL]; ok {
			t.Fatalf("control %s matched to both %s and %s", p.ControlURL, prev, p.TreatmentURL)
		}
		usedControl[p.ControlURL] = p.TreatmentURL
		if p.Score < 0 || p.Score > 1 {
			t.Fatalf("score out of range: %+v", p)
		}
		if repoOf[p.TreatmentURL] != repoOf[p.ControlURL] {
			t.Fatalf("pair crosses repositories: %+v", p)
		}
	}

	again := New().Match(treatment, control)
	if !reflect.DeepEqual(res, again) {
		t.Fatalf("matching should be deterministic")
	}
}

func TestRescore(t *testing.T) {
	treatment := []records.PullRequestRecord{pr("t1", "r", "a", 5, 2, 3, 10, 1)}
	control := []records.PullRequestRecord{pr("c1", "r", "a", 5, 2, 3, 10, 1)}
	refs := []PairRef{{"t1", "c1"}, {"t1", "missing"}}
	pairs := New().Rescore(refs, treatment, control)
	if len(pairs) != 1 || pairs[0].Score != 1 {
		t.Fatalf("unexpected rescore %+v", pairs)
	}
}

func TestPairsCSV(t *testing.T) {
	var buf bytes.Buffer
	pairs := []Pair{{"t1", "c1", 1}, {"t2", "c2", 0.666666}}
	if err := WritePairs(&buf, pairs); err != nil {
		t.Fatalf("write: %v", err)
	}
	want := "ChatGPT PR,Non-ChatGPT PR,Similarity Score\nt1,c1,1.00\nt2,c2,0.67\n"
	if buf.String() != want {
		t.Fatalf("csv = %q, want %q", buf.String(), want)
	}
	refs, err := ReadPairRefs(strings.NewReader(buf.String()))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(refs) != 2 || refs[1] != (PairRef{"t2", "c2"}) {
		t.Fatalf("unexpected refs %+v", refs)
	}
}

func TestRescoreStoredPairs(t *testing.T) {
	treatment := []records.PullRequestRecord{pr("t1", "r", "a", 5, 2, 3, 10, 1)}
	control := []records.PullRequestRecord{pr("c1", "r", "b", 5, 2, 3, 10, 1)}
	stored := []Pair{{"t1", "c1", 0.2}}

	refs := Refs(stored)
	if len(refs) != 1 || refs[0] != (PairRef{"t1", "c1"}) {
		t.Fatalf("unexpected refs %+v", refs)
	}
	pairs := New().Rescore(refs, treatment, control)
	if len(pairs) != 1 || pairs[0].Score == 0.2 {
		t.Fatalf("expected a recomputed score, got %+v", pairs)
	}
}
