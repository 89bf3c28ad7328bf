package migrations

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	_ "github.com/mattn/go-sqlite3"
)

func TestLoadMigrationsSortsAndPairsUpDown(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/000002_history_source_index.up.sql":   {Data: []byte("CREATE INDEX idx_source ON interaction (source);")},
		"sql/000002_history_source_index.down.sql": {Data: []byte("DROP INDEX idx_source;")},
		"sql/000001_interaction.up.sql":            {Data: []byte("CREATE TABLE interaction (source TEXT);")},
		"sql/000001_interaction.down.sql":          {Data: []byte("DROP TABLE interaction;")},
		"sql/README.md":                            {Data: []byte("ignored")},
	}

	items, err := loadMigrations(fsys)
	if err != nil {
		t.Fatalf("loadMigrations() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len(items) = %d", len(items))
	}
	if items[0].Version != 1 || items[1].Version != 2 {
		t.Fatalf("unexpected migration order: %+v", items)
	}
	if !strings.Contains(items[1].DownSQL, "DROP INDEX") {
		t.Fatalf("down SQL = %q", items[1].DownSQL)
	}
}

func TestLoadMigrationsErrorsWhenHalfMissing(t *testing.T) {
	tests := map[string]fstest.MapFS{
		"missing down SQL": {"sql/000001_interaction.up.sql": {Data: []byte("SELECT 1;")}},
		"missing up SQL":   {"sql/000001_interaction.down.sql": {Data: []byte("SELECT 1;")}},
	}
	for want, fsys := range tests {
		_, err := loadMigrations(fsys)
		if err == nil || !strings.Contains(err.Error(), want) {
			t.Fatalf("loadMigrations() error = %v, want %q", err, want)
		}
	}
}

func TestUpStepsAndPendingOnSQLite(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()
	runner := &Runner{fsys: fstest.MapFS{
		"sql/000001_interaction.up.sql":   {Data: []byte("CREATE TABLE interaction (interaction_id TEXT PRIMARY KEY)")},
		"sql/000001_interaction.down.sql": {Data: []byte("DROP TABLE interaction")},
		"sql/000002_outcome.up.sql":       {Data: []byte("CREATE INDEX idx_interaction_id ON interaction (interaction_id)")},
		"sql/000002_outcome.down.sql":     {Data: []byte("DROP INDEX idx_interaction_id")},
	}}

	applied, err := runner.Up(ctx, db, 1)
	if err != nil {
		t.Fatalf("Up() error = %v", err)
	}
	if applied != 1 {
		t.Fatalf("Up(steps=1) applied %d", applied)
	}
	if pending, err := runner.Pending(ctx, db); err != nil || pending != 1 {
		t.Fatalf("Pending() = %d, %v; want 1", pending, err)
	}

	// A version recorded by a newer build must not hide pending work.
	if _, err := db.ExecContext(ctx, `INSERT INTO `+migrationTable+` (version) VALUES (99)`); err != nil {
		t.Fatalf("insert foreign version error = %v", err)
	}
	if pending, err := runner.Pending(ctx, db); err != nil || pending != 1 {
		t.Fatalf("Pending() with unknown applied version = %d, %v; want 1", pending, err)
	}
}

func TestDownRefusesVersionMissingFromSource(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()
	runner := &Runner{fsys: fstest.MapFS{
		"sql/000001_interaction.up.sql":   {Data: []byte("CREATE TABLE interaction (interaction_id TEXT)")},
		"sql/000001_interaction.down.sql": {Data: []byte("DROP TABLE interaction")},
	}}
	if _, err := runner.Up(ctx, db, 0); err != nil {
		t.Fatalf("Up() error = %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO `+migrationTable+` (version) VALUES (2)`); err != nil {
		t.Fatalf("insert foreign version error = %v", err)
	}

	rolledBack, err := runner.Down(ctx, db, 0)
	if err == nil || !strings.Contains(err.Error(), "missing from source") {
		t.Fatalf("Down() error = %v, want missing-from-source error", err)
	}
	if rolledBack != 0 {
		t.Fatalf("Down() rolled back %d", rolledBack)
	}
}

func TestFailedMigrationLeavesNoVersionRecorded(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()
	runner := &Runner{fsys: fstest.MapFS{
		"sql/000001_broken.up.sql":   {Data: []byte("CREATE TABLE interaction (")},
		"sql/000001_broken.down.sql": {Data: []byte("DROP TABLE interaction")},
	}}

	if _, err := runner.Up(ctx, db, 0); err == nil {
		t.Fatal("expected broken migration to fail")
	}
	if pending, err := runner.Pending(ctx, db); err != nil || pending != 1 {
		t.Fatalf("Pending() = %d, %v; want 1", pending, err)
	}
}

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "migrations.db"))
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}
