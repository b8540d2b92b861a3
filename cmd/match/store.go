package main

import (
	"context"
	"fmt"

	"github.com/roivaz/prcohort/internal/db"
	"github.com/roivaz/prcohort/internal/logging"
	"github.com/roivaz/prcohort/internal/records"
)

// cache opens the Postgres connection on first use.
type cache struct {
	database *db.Database
	repo     *db.Repository
}

func (c *cache) repository(ctx context.Context) (*db.Repository, error) {
	if c.repo != nil {
		return c.repo, nil
	}
	database, err := db.Open(ctx, db.LoadConfig())
	if err != nil {
		return nil, err
	}
	c.database = database
	c.repo = db.NewRepository(database)
	return c.repo, nil
}

func (c *cache) Close() {
	if c.database != nil {
		_ = c.database.Close()
	}
}

// load reads a population from the cache when population is set, from the
// Sources file at path otherwise.
func (c *cache) load(ctx context.Context, path, population string, log logging.Logger) ([]records.PullRequestRecord, error) {
	if population == "" {
		return records.Load(path, log)
	}
	repo, err := c.repository(ctx)
	if err != nil {
		return nil, err
	}
	recs, err := repo.LoadPopulation(ctx, population)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("population %q has no stored records", population)
	}
	log.Info("loaded stored population", "population", population, "records", len(recs))
	return recs, nil
}
