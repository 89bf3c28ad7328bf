package migrations

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func TestRunnerAppliesAndRollsBackOnSQLite(t *testing.T) {
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	ctx := context.Background()
	runner := NewRunner()

	pending, err := runner.Pending(ctx, db)
	if err != nil {
		t.Fatalf("Pending() error = %v", err)
	}
	if pending != 1 {
		t.Fatalf("Pending() = %d, want 1", pending)
	}

	applied, err := runner.Up(ctx, db, 0)
	if err != nil {
		t.Fatalf("Up() error = %v", err)
	}
	if applied != 1 {
		t.Fatalf("Up() applied %d, want 1", applied)
	}
	if !sqliteTableExists(t, db, "interaction") {
		t.Fatal("interaction table missing after Up")
	}

	again, err := runner.Up(ctx, db, 0)
	if err != nil {
		t.Fatalf("second Up() error = %v", err)
	}
	if again != 0 {
		t.Fatalf("second Up() applied %d, want 0", again)
	}

	rolledBack, err := runner.Down(ctx, db, 1)
	if err != nil {
		t.Fatalf("Down() error = %v", err)
	}
	if rolledBack != 1 {
		t.Fatalf("Down() rolled back %d, want 1", rolledBack)
	}
	if sqliteTableExists(t, db, "interaction") {
		t.Fatal("interaction table still present after Down")
	}
}

func sqliteTableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&count); err != nil {
		t.Fatalf("query sqlite_master error = %v", err)
	}
	return count > 0
}
