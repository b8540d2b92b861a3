package db

import (
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/roivaz/prcohort/internal/matching"
	"github.com/roivaz/prcohort/internal/records"
)

// ToRow converts a record of population into its cached form.
func ToRow(population string, rec records.PullRequestRecord) (PRRecordRow, error) {
	doc, err := rec.Document()
	if err != nil {
		return PRRecordRow{}, err
	}
	row := PRRecordRow{
		Population: population,
		URL:        rec.URL,
		RepoName:   rec.RepoName,
		Author:     rec.Author,
		Number:     rec.Number,
		State:      rec.State,
		Document:   doc,
	}
	if rec.Category != "" {
		row.Category = records.String(rec.Category)
	}
	if rec.CreatedAt != "" {
		created, err := rec.Created()
		if err != nil {
			return PRRecordRow{}, err
		}
		row.CreatedAt = &created
	}
	features := featureVector(rec)
	row.Features = &features
	return row, nil
}

// FromRow restores the record stored in row.
func FromRow(row PRRecordRow) (records.PullRequestRecord, error) {
	rec, err := records.DecodeDocument(row.Document)
	if err != nil {
		return records.PullRequestRecord{}, fmt.Errorf("decode cached %s: %w", row.URL, err)
	}
	return rec, nil
}

func featureVector(rec records.PullRequestRecord) pgvector.Vector {
	values := make([]float32, len(records.ScoringFields))
	for i, f := range records.ScoringFields {
		values[i] = float32(rec.Count(f))
	}
	return pgvector.NewVector(values)
}

// PairRows converts the pairs of one matching run.
func PairRows(runID string, pairs []matching.Pair) []MatchedPairRow {
	rows := make([]MatchedPairRow, len(pairs))
	for i, p := range pairs {
		rows[i] = MatchedPairRow{
			RunID:        runID,
			Position:     i,
			TreatmentURL: p.TreatmentURL,
			ControlURL:   p.ControlURL,
			Score:        p.Score,
		}
	}
	return rows
}

// TreatmentPopulation names the treatment records stored for a matching run.
func TreatmentPopulation(runID string) string { return "treatment:" + runID }

// ControlPopulation names the selected controls stored for a matching run.
func ControlPopulation(runID string) string { return "control:" + runID }
