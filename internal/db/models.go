package db

import (
	"encoding/json"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/uptrace/bun"
)

// PRRecordRow caches one pull request record of a population (for example the
// treatment or control cohort of a study).
type PRRecordRow struct {
	bun.BaseModel `bun:"table:pr_records"`

	ID         int64            `bun:"id,pk,autoincrement"`
	Population string           `bun:"population"`
	URL        string           `bun:"url"`
	RepoName   string           `bun:"repo_name"`
	Author     string           `bun:"author"`
	Number     int              `bun:"number"`
	State      string           `bun:"state"`
	Category   *string          `bun:"category"`
	CreatedAt  *time.Time       `bun:"created_at"`
	Document   json.RawMessage  `bun:"document,type:jsonb"` // source object as read or collected
	Features   *pgvector.Vector `bun:"features"`            // vector(5), scoring fields in order
	StoredAt   time.Time        `bun:"stored_at,nullzero,default:now()"`
}

// MatchedPairRow is one pair of a matching run, kept in output order.
type MatchedPairRow struct {
	bun.BaseModel `bun:"table:matched_pairs"`

	ID           int64     `bun:"id,pk,autoincrement"`
	RunID        string    `bun:"run_id"`
	Position     int       `bun:"position"`
	TreatmentURL string    `bun:"treatment_url"`
	ControlURL   string    `bun:"control_url"`
	Score        float64   `bun:"score"`
	CreatedAt    time.Time `bun:"created_at,nullzero,default:now()"`
}
