package classify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/roivaz/prcohort/internal/logging"
	"github.com/roivaz/prcohort/internal/records"
)

type fakeCompleter struct {
	answers map[string]string
	fail    map[string]bool
	prompts []string
}

func (f *fakeCompleter) Complete(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	for title, answer := range f.answers {
		if strings.Contains(prompt, "Title: "+title+"\n") {
			if f.fail[title] {
				return "", errors.New("model unavailable")
			}
			return answer, nil
		}
	}
	return "", errors.New("unexpected prompt")
}

func TestParseCategory(t *testing.T) {
	tests := map[string]string{
		"feature":                       "feature",
		"  Bug Fix.\n":                  "bug fix",
		"Category: documentation":       "documentation",
		"This is a refactoring change.": "refactoring",
		"CI":                            "ci",
		"no idea":                       Other,
		"":                              Other,
		"specification":                 Other,
	}
	for answer, want := range tests {
		if got := ParseCategory(answer); got != want {
			t.Fatalf("ParseCategory(%q) = %q, want %q", answer, got, want)
		}
	}
}

func TestLabelSkipsLabelledAndKeepsFailuresUnlabelled(t *testing.T) {
	llm := &fakeCompleter{
		answers: map[string]string{"Fix crash": "bug fix", "Add docs": "documentation", "Broken": "feature"},
		fail:    map[string]bool{"Broken": true},
	}
	c := New(llm, 0, logging.Discard())

	in := []records.PullRequestRecord{
		{URL: "u1", Title: "Fix crash"},
		{URL: "u2", Title: "Already", Category: "test"},
		{URL: "u3", Title: "Broken"},
		{URL: "u4", Title: "Add docs"},
	}
	out, labelled, err := c.Label(context.Background(), in)
	if err != nil {
		t.Fatalf("Label returned error: %v", err)
	}
	if labelled != 2 {
		t.Fatalf("labelled = %d, want 2", labelled)
	}
	want := []string{"bug fix", "test", "", "documentation"}
	for i, rec := range out {
		if rec.Category != want[i] {
			t.Fatalf("record %d category = %q, want %q", i, rec.Category, want[i])
		}
	}
	if in[0].Category != "" {
		t.Fatalf("input slice was modified")
	}
	if len(llm.prompts) != 3 {
		t.Fatalf("model called %d times, want 3", len(llm.prompts))
	}
}

func TestLabelStopsOnCancelledContext(t *testing.T) {
	c := New(&fakeCompleter{}, 0, logging.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := c.Label(ctx, []records.PullRequestRecord{{URL: "u1"}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestPromptTruncatesBody(t *testing.T) {
	old := truncateTokensFunc
	truncateTokensFunc = func(text string, limit int) string { return text[:limit] }
	defer func() { truncateTokensFunc = old }()

	prompt := buildPrompt(records.PullRequestRecord{Title: "T", Body: "abcdefghij"}, 4)
	if !strings.Contains(prompt, "\nabcd\n") || strings.Contains(prompt, "abcde") {
		t.Fatalf("body not truncated:\n%s", prompt)
	}
	if !strings.Contains(prompt, "bug fix, feature") {
		t.Fatalf("categories missing from prompt:\n%s", prompt)
	}

	whole := buildPrompt(records.PullRequestRecord{Title: "T", Body: "abcdefghij"}, 0)
	if !strings.Contains(whole, "abcdefghij") {
		t.Fatalf("body should be kept whole without a limit")
	}
}
