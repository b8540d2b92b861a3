package records

import (
	"bytes"
	"strings"
	"testing"
)

func TestFindDuplicates(t *testing.T) {
	recs := []PullRequestRecord{
		{RepoName: "o/r", Number: 1},
		{RepoName: "o/r", Number: 2},
		{RepoName: "o/x", Number: 1},
		{RepoName: "o/r", Number: 1},
		{RepoName: "o/r", Number: 1},
	}
	dups := FindDuplicates(recs)
	if len(dups) != 2 || dups[0] != (Key{RepoName: "o/r", Number: 1}) {
		t.Fatalf("unexpected duplicates %v", dups)
	}
}

func TestSpan(t *testing.T) {
	recs := []PullRequestRecord{
		{URL: "mid", CreatedAt: "2023-05-01T00:00:00Z"},
		{URL: "first", CreatedAt: "2023-01-01T00:00:00"},
		{URL: "last", CreatedAt: "2023-09-01T00:00:00Z"},
	}
	first, last, err := Span(recs)
	if err != nil {
		t.Fatalf("span: %v", err)
	}
	if first.URL != "first" || last.URL != "last" {
		t.Fatalf("got first=%s last=%s", first.URL, last.URL)
	}
	if _, _, err := Span(nil); err == nil {
		t.Fatalf("expected error for empty input")
	}
}

func TestURLListRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteURLList(&buf, UnmatchedURLsHeader, []string{"u1", "u2"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := ReadColumn(strings.NewReader(buf.String()), UnmatchedURLsHeader)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 2 || got[0] != "u1" || got[1] != "u2" {
		t.Fatalf("unexpected values %v", got)
	}
	if _, err := ReadColumn(strings.NewReader(buf.String()), "URL"); err == nil {
		t.Fatalf("expected missing column error")
	}
}

func TestSelectByURL(t *testing.T) {
	recs := []PullRequestRecord{
		{URL: "u1", Title: "first"},
		{URL: "u2"},
		{URL: "u1", Title: "duplicate"},
	}
	selected, missing := SelectByURL(recs, []string{"u2", "u3", "u1"})
	if len(selected) != 2 || selected[0].URL != "u2" || selected[1].Title != "first" {
		t.Fatalf("unexpected selection %+v", selected)
	}
	if len(missing) != 1 || missing[0] != "u3" {
		t.Fatalf("unexpected missing %v", missing)
	}
}
