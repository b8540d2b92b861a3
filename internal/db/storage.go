package db

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/roivaz/prcohort/internal/matching"
	"github.com/roivaz/prcohort/internal/records"
)

const insertBatchSize = 500

// Repository stores populations of records and matching results.
type Repository struct {
	db *bun.DB
}

func NewRepository(database *Database) *Repository {
	return &Repository{db: database.Bun()}
}

// StoreRecords upserts recs into population. A record already cached under the
// same URL is replaced.
func (r *Repository) StoreRecords(ctx context.Context, population string, recs []records.PullRequestRecord) error {
	if population == "" {
		return fmt.Errorf("population name is required")
	}
	rows := make([]PRRecordRow, 0, len(recs))
	for _, rec := range recs {
		row, err := ToRow(population, rec)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}

	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for start := 0; start < len(rows); start += insertBatchSize {
			end := min(start+insertBatchSize, len(rows))
			batch := rows[start:end]
			_, err := tx.NewInsert().Model(&batch).
				On("CONFLICT (population, url) DO UPDATE").
				Set("repo_name = EXCLUDED.repo_name").
				Set("author = EXCLUDED.author").
				Set("number = EXCLUDED.number").
				Set("state = EXCLUDED.state").
				Set("category = EXCLUDED.category").
				Set("created_at = EXCLUDED.created_at").
				Set("document = EXCLUDED.document").
				Set("features = EXCLUDED.features").
				Set("stored_at = now()").
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("store %s records: %w", population, err)
			}
		}
		return nil
	})
}

// LoadPopulation returns the records of population in insertion order.
func (r *Repository) LoadPopulation(ctx context.Context, population string) ([]records.PullRequestRecord, error) {
	var rows []PRRecordRow
	err := r.db.NewSelect().Model(&rows).
		Where("population = ?", population).
		OrderExpr("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("load %s records: %w", population, err)
	}
	out := make([]records.PullRequestRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := FromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// CountPopulation returns the number of cached records in population.
func (r *Repository) CountPopulation(ctx context.Context, population string) (int, error) {
	return r.db.NewSelect().Model((*PRRecordRow)(nil)).
		Where("population = ?", population).
		Count(ctx)
}

// StorePairs replaces the pairs of runID in a single transaction.
func (r *Repository) StorePairs(ctx context.Context, runID string, pairs []matching.Pair) error {
	if runID == "" {
		return fmt.Errorf("run id is required")
	}
	rows := PairRows(runID, pairs)
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*MatchedPairRow)(nil)).Where("run_id = ?", runID).Exec(ctx); err != nil {
			return fmt.Errorf("clear run %s: %w", runID, err)
		}
		if len(rows) == 0 {
			return nil
		}
		if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
			return fmt.Errorf("store run %s: %w", runID, err)
		}
		return nil
	})
}

// LoadPairs returns the pairs of runID in their original order.
func (r *Repository) LoadPairs(ctx context.Context, runID string) ([]matching.Pair, error) {
	var rows []MatchedPairRow
	err := r.db.NewSelect().Model(&rows).
		Where("run_id = ?", runID).
		OrderExpr("position ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}
	out := make([]matching.Pair, len(rows))
	for i, row := range rows {
		out[i] = matching.Pair{TreatmentURL: row.TreatmentURL, ControlURL: row.ControlURL, Score: row.Score}
	}
	return out, nil
}
