package classify

import (
	"context"
	"fmt"
	"strings"

	"github.com/roivaz/prcohort/internal/logging"
	"github.com/roivaz/prcohort/internal/records"
)

const promptTemplate = `You label GitHub pull requests with the kind of change they make.
Answer with exactly one of these categories and nothing else:
{{.Categories}}

Title: {{.Title}}

Description:
{{.Body}}
`

// Classifier labels pull requests with a change category.
type Classifier struct {
	llm       Completer
	maxTokens int
	log       logging.Logger
}

// New returns a Classifier. maxTokens bounds the pull request body sent to the
// model; zero sends it whole.
func New(llm Completer, maxTokens int, log logging.Logger) *Classifier {
	return &Classifier{llm: llm, maxTokens: maxTokens, log: log.WithName("classify")}
}

func buildPrompt(rec records.PullRequestRecord, maxTokens int) string {
	prompt := strings.ReplaceAll(promptTemplate, "{{.Categories}}", strings.Join(Categories, ", "))
	prompt = strings.ReplaceAll(prompt, "{{.Title}}", rec.Title)
	return strings.ReplaceAll(prompt, "{{.Body}}", truncateTokens(rec.Body, maxTokens))
}

// Classify returns the category of one pull request.
func (c *Classifier) Classify(ctx context.Context, rec records.PullRequestRecord) (string, error) {
	answer, err := c.llm.Complete(ctx, buildPrompt(rec, c.maxTokens))
	if err != nil {
		return "", fmt.Errorf("classify %s: %w", rec.URL, err)
	}
	category := ParseCategory(answer)
	c.log.Debug("classified pull request", "url", rec.URL, "category", category, "answer", answer)
	return category, nil
}

// Label classifies every record that has no category yet. Failures are logged
// and leave the record unlabelled. The returned slice is a copy; labelled is the
// number of records that received a category.
func (c *Classifier) Label(ctx context.Context, recs []records.PullRequestRecord) (out []records.PullRequestRecord, labelled int, err error) {
	out = make([]records.PullRequestRecord, len(recs))
	copy(out, recs)
	for i, rec := range out {
		if err := ctx.Err(); err != nil {
			return out, labelled, err
		}
		if rec.Category != "" {
			continue
		}
		category, err := c.Classify(ctx, rec)
		if err != nil {
			c.log.Error(err, "leaving pull request unlabelled", "url", rec.URL)
			continue
		}
		out[i] = rec.WithCategory(category)
		labelled++
	}
	c.log.Info("labelled pull requests", "total", len(recs), "labelled", labelled)
	return out, labelled, nil
}
