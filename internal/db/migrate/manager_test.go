package dbmigrate

import (
	"testing"
	"testing/fstest"

	"github.com/uptrace/bun/migrate"

	"github.com/roivaz/prcohort/internal/db/migrations"
)

func TestGroupsAfter(t *testing.T) {
	status := migrate.MigrationSlice{
		{Name: "20250301000000", Comment: "create_pr_records", ID: 1, GroupID: 1},
		{Name: "20250301000100", Comment: "create_matched_pairs", ID: 2, GroupID: 2},
		{Name: "20250301000200", Comment: "add_index"},
	}

	steps, err := groupsAfter(status, "20250301000000")
	if err != nil {
		t.Fatalf("groupsAfter: %v", err)
	}
	if steps != 1 {
		t.Fatalf("expected 1 group, got %d", steps)
	}

	steps, err = groupsAfter(status, "20250301000100")
	if err != nil || steps != 0 {
		t.Fatalf("expected 0 groups, got %d, %v", steps, err)
	}

	if _, err := groupsAfter(status, "20990101000000"); err == nil {
		t.Fatalf("expected error for unknown migration")
	}
}

func TestGroupsAfterRefusesSharedGroup(t *testing.T) {
	status := migrate.MigrationSlice{
		{Name: "20250301000000", Comment: "create_pr_records", ID: 1, GroupID: 1},
		{Name: "20250301000100", Comment: "create_matched_pairs", ID: 2, GroupID: 1},
	}
	if _, err := groupsAfter(status, "20250301000000"); err == nil {
		t.Fatalf("expected error when target shares a group with newer migrations")
	}
}

func TestAppliedGroupsNewestFirst(t *testing.T) {
	status := migrate.MigrationSlice{
		{Name: "20250301000000", ID: 1, GroupID: 1},
		{Name: "20250301000100", ID: 2, GroupID: 1},
		{Name: "20250301000200", ID: 3, GroupID: 2},
		{Name: "20250301000300"},
	}
	groups := appliedGroups(status)
	if len(groups) != 2 || groups[0] != 2 || groups[1] != 1 {
		t.Fatalf("unexpected groups %v", groups)
	}
}

func TestCreatesAny(t *testing.T) {
	if !createsAny("create_pr_records", []string{"matched_pairs", "pr_records"}) {
		t.Fatalf("expected create_pr_records to match")
	}
	if createsAny("add_index", []string{"pr_records"}) {
		t.Fatalf("unexpected match for add_index")
	}
}

func TestEmbeddedMigrationsDiscover(t *testing.T) {
	set := migrate.NewMigrations()
	if err := set.Discover(migrations.FS); err != nil {
		t.Fatalf("discover: %v", err)
	}
	sorted := set.Sorted()
	if len(sorted) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(sorted))
	}
	if sorted[0].Comment != "create_pr_records" || sorted[1].Comment != "create_matched_pairs" {
		t.Fatalf("unexpected order %s, %s", sorted[0].Comment, sorted[1].Comment)
	}
}

func TestNewManagerRequiresDatabase(t *testing.T) {
	if _, err := NewManager(nil, fstest.MapFS{}); err == nil {
		t.Fatalf("expected error without database")
	}
}
