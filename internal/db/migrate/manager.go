package dbmigrate

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

// Manager applies the cohort cache schema from a migrations filesystem.
type Manager struct {
	db       *bun.DB
	migrator *migrate.Migrator
}

func NewManager(db *bun.DB, fsys fs.FS) (*Manager, error) {
	if db == nil {
		return nil, errors.New("database is required")
	}
	if fsys == nil {
		return nil, errors.New("migrations filesystem is required")
	}

	migrations := migrate.NewMigrations()
	if err := migrations.Discover(fsys); err != nil {
		return nil, fmt.Errorf("discover migrations: %w", err)
	}

	return &Manager{db: db, migrator: migrate.NewMigrator(db, migrations)}, nil
}

// Init creates the vector extension and bun's bookkeeping tables.
func (m *Manager) Init(ctx context.Context) error {
	if _, err := m.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}
	return m.migrator.Init(ctx)
}

func (m *Manager) Up(ctx context.Context) error {
	_, err := m.migrator.Migrate(ctx)
	return err
}

// Rollback undoes the last steps migration groups, one group per applied
// "migrate up"; steps <= 0 undoes all.
func (m *Manager) Rollback(ctx context.Context, steps int) error {
	status, err := m.migrator.MigrationsWithStatus(ctx)
	if err != nil {
		return err
	}
	count := len(appliedGroups(status))
	if steps > 0 && steps < count {
		count = steps
	}
	for i := 0; i < count; i++ {
		if _, err := m.migrator.Rollback(ctx); err != nil {
			return err
		}
	}
	return nil
}

// RollbackTo undoes the groups holding migrations newer than target. It fails
// when target shares a group with newer migrations, since bun rolls back whole
// groups.
func (m *Manager) RollbackTo(ctx context.Context, target string) error {
	if target == "" {
		return errors.New("target version is required")
	}
	status, err := m.migrator.MigrationsWithStatus(ctx)
	if err != nil {
		return err
	}
	steps, err := groupsAfter(status, target)
	if err != nil {
		return err
	}
	if steps == 0 {
		return nil
	}
	return m.Rollback(ctx, steps)
}

func (m *Manager) Status(ctx context.Context) (migrate.MigrationSlice, error) {
	return m.migrator.MigrationsWithStatus(ctx)
}

// Pending lists migrations not yet applied, as name_comment.
func (m *Manager) Pending(ctx context.Context) ([]string, error) {
	status, err := m.Status(ctx)
	if err != nil {
		return nil, err
	}
	var pending []string
	for _, mig := range status {
		if !mig.IsApplied() {
			pending = append(pending, fmt.Sprintf("%s_%s", mig.Name, mig.Comment))
		}
	}
	return pending, nil
}

// Recreate drops tables and reapplies the migrations that create them.
// Migrations follow the create_<table> comment convention.
func (m *Manager) Recreate(ctx context.Context, tables ...string) error {
	if len(tables) == 0 {
		return errors.New("no tables to recreate")
	}
	if _, err := m.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+strings.Join(tables, ", ")+" CASCADE"); err != nil {
		return fmt.Errorf("drop tables: %w", err)
	}

	status, err := m.Status(ctx)
	if err != nil {
		return err
	}
	for i := range status {
		mig := &status[i]
		if !mig.IsApplied() || !createsAny(mig.Comment, tables) {
			continue
		}
		if err := m.migrator.MarkUnapplied(ctx, mig); err != nil {
			return fmt.Errorf("mark %s unapplied: %w", mig.Name, err)
		}
	}
	return m.Up(ctx)
}

// appliedGroups returns the applied group IDs, newest first.
func appliedGroups(status migrate.MigrationSlice) []int64 {
	seen := map[int64]bool{}
	var groups []int64
	for _, mig := range status.Applied() {
		if !seen[mig.GroupID] {
			seen[mig.GroupID] = true
			groups = append(groups, mig.GroupID)
		}
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i] > groups[j] })
	return groups
}

func groupsAfter(status migrate.MigrationSlice, target string) (int, error) {
	found := false
	for _, mig := range status {
		if mig.Name == target {
			found = true
			break
		}
	}
	if !found {
		return 0, fmt.Errorf("migration %s not found", target)
	}

	newer := map[int64]int{}
	older := map[int64]int{}
	for _, mig := range status.Applied() {
		if mig.Name > target {
			newer[mig.GroupID]++
		} else {
			older[mig.GroupID]++
		}
	}

	steps := 0
	for _, g := range appliedGroups(status) {
		if newer[g] == 0 {
			break
		}
		if older[g] > 0 {
			return 0, fmt.Errorf("migration %s is in group %d with newer migrations; roll back the whole group with --steps", target, g)
		}
		steps++
	}
	return steps, nil
}

func createsAny(comment string, tables []string) bool {
	for _, t := range tables {
		if comment == "create_"+t {
			return true
		}
	}
	return false
}
