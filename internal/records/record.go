package records

import (
	"encoding/json"
	"fmt"
	"time"
)

// Field names a numeric attribute of a pull request as it appears in the
// Sources JSON documents.
type Field string

const (
	FieldCommits       Field = "CommitsTotalCount"
	FieldComments      Field = "CommentsCount"
	FieldChangedFiles  Field = "ChangedFiles"
	FieldAdditions     Field = "Additions"
	FieldDeletions     Field = "Deletions"
	FieldReviewerCount Field = "ReviewerCount"
)

// ScoringFields are the numeric fields used for similarity matching, in vector order.
var ScoringFields = []Field{FieldCommits, FieldComments, FieldChangedFiles, FieldAdditions, FieldDeletions}

const (
	StateOpen   = "OPEN"
	StateClosed = "CLOSED"
	StateMerged = "MERGED"

	TypePullRequest = "pull request"
)

// PullRequestRecord is one entry of a {"Sources": [...]} snapshot. Numeric fields
// are optional: a nil pointer means the field was absent from the source document.
type PullRequestRecord struct {
	Type              string   `json:"Type,omitempty"`
	URL               string   `json:"URL"`
	Author            string   `json:"Author"`
	RepoName          string   `json:"RepoName"`
	RepoLanguage      *string  `json:"RepoLanguage,omitempty"`
	Number            int      `json:"Number"`
	Title             string   `json:"Title"`
	Body              string   `json:"Body"`
	CreatedAt         string   `json:"CreatedAt"`
	ClosedAt          *string  `json:"ClosedAt"`
	MergedAt          *string  `json:"MergedAt"`
	UpdatedAt         string   `json:"UpdatedAt,omitempty"`
	State             string   `json:"State"`
	Additions         *int     `json:"Additions,omitempty"`
	Deletions         *int     `json:"Deletions,omitempty"`
	ChangedFiles      *int     `json:"ChangedFiles,omitempty"`
	CommentsCount     *int     `json:"CommentsCount,omitempty"`
	CommitsTotalCount *int     `json:"CommitsTotalCount,omitempty"`
	CommitShas        []string `json:"CommitShas,omitempty"`
	FirstReviewTime   *string  `json:"FirstReviewTime"`
	FinalReviewTime   *string  `json:"FinalReviewTime"`
	ReviewerCount     *int     `json:"ReviewerCount,omitempty"`
	Reviewers         []string `json:"Reviewers,omitempty"`
	Category          string   `json:"Category,omitempty"`

	raw json.RawMessage
}

// Lookup returns the value of a numeric field and whether it was present.
func (r PullRequestRecord) Lookup(f Field) (int, bool) {
	var p *int
	switch f {
	case FieldCommits:
		p = r.CommitsTotalCount
	case FieldComments:
		p = r.CommentsCount
	case FieldChangedFiles:
		p = r.ChangedFiles
	case FieldAdditions:
		p = r.Additions
	case FieldDeletions:
		p = r.Deletions
	case FieldReviewerCount:
		p = r.ReviewerCount
	}
	if p == nil {
		return 0, false
	}
	return *p, true
}

// Count returns the value of a numeric field, 0 when absent.
func (r PullRequestRecord) Count(f Field) int {
	v, _ := r.Lookup(f)
	return v
}

// MissingFields lists the scoring fields absent from the record.
func (r PullRequestRecord) MissingFields() []Field {
	var missing []Field
	for _, f := range ScoringFields {
		if _, ok := r.Lookup(f); !ok {
			missing = append(missing, f)
		}
	}
	return missing
}

// Raw returns the JSON object the record was decoded from, or nil for records
// built in memory.
func (r PullRequestRecord) Raw() json.RawMessage {
	return r.raw
}

// WithCategory returns a copy labelled with category. The retained source object is
// dropped so the label is part of the encoded output.
func (r PullRequestRecord) WithCategory(category string) PullRequestRecord {
	r.Category = category
	r.raw = nil
	return r
}

func (r PullRequestRecord) Created() (time.Time, error) {
	t, err := ParseTimestamp(r.CreatedAt)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: CreatedAt: %w", r.URL, err)
	}
	return t, nil
}

// OptionalTime parses an optional timestamp field. ok is false when the field is
// null, absent or empty.
func (r PullRequestRecord) OptionalTime(name string, value *string) (t time.Time, ok bool, err error) {
	if value == nil || *value == "" {
		return time.Time{}, false, nil
	}
	t, err = ParseTimestamp(*value)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%s: %s: %w", r.URL, name, err)
	}
	return t, true, nil
}

// Int returns a pointer to v, for building records in memory.
func Int(v int) *int { return &v }

// String returns a pointer to s, for building records in memory.
func String(s string) *string { return &s }
