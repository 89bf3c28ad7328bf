package history

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/querypilot/querypilot/internal/pipeline"
	"github.com/querypilot/querypilot/internal/query"
)

func TestOpenRequiresDSN(t *testing.T) {
	if _, err := Open(context.Background(), DBConfig{}); err == nil {
		t.Fatal("expected error for empty DSN")
	}
}

func TestDriverFor(t *testing.T) {
	tests := []struct {
		dsn    string
		driver string
		source string
	}{
		{dsn: "postgres://u:p@localhost/history", driver: "pgx", source: "postgres://u:p@localhost/history"},
		{dsn: "PostgreSQL://host/db", driver: "pgx", source: "PostgreSQL://host/db"},
		{dsn: "file:history.db", driver: "sqlite3", source: "file:history.db"},
		{dsn: "sqlite:///tmp/history.db", driver: "sqlite3", source: "/tmp/history.db"},
	}
	for _, tt := range tests {
		driver, source := DriverFor(tt.dsn)
		if driver != tt.driver || source != tt.source {
			t.Fatalf("DriverFor(%q) = %q, %q", tt.dsn, driver, source)
		}
	}
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, DBConfig{DSN: filepath.Join(t.TempDir(), "history.db")})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	repo := NewRepository(db)
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	table := query.Result{Columns: []string{"name"}, Rows: [][]any{{"Ada"}, {"Grace"}}}
	outcomes := []pipeline.Outcome{
		{Question: "first", SQL: "SELECT name FROM sales.customers", Kind: pipeline.KindRows, Table: &table},
		{Question: "second", Kind: pipeline.KindLLMCallFailure, Message: "Error generating SQL query: boom"},
	}
	for i, outcome := range outcomes {
		entry := EntryFromOutcome(outcome, SourceCLI, 5)
		entry.OccurredAt = base.Add(time.Duration(i) * time.Minute)
		if _, err := repo.Record(ctx, entry); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	entries, err := repo.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d", len(entries))
	}
	if entries[0].Question != "second" || entries[0].Outcome != "llm_call_failure" {
		t.Fatalf("entries[0] = %+v", entries[0])
	}
	if entries[1].RowCount != 2 || entries[1].ID == "" {
		t.Fatalf("entries[1] = %+v", entries[1])
	}
	if !entries[1].OccurredAt.Equal(base) {
		t.Fatalf("OccurredAt = %v, want %v", entries[1].OccurredAt, base)
	}
}

func TestEntryFromOutcomeKeepsMessageForErrors(t *testing.T) {
	entry := EntryFromOutcome(pipeline.Outcome{
		Question: "bad request",
		SQL:      "SELECT * FROM ghost.nothing",
		Kind:     pipeline.KindIdentifierNotFound,
		Message:  "Error: Dataset or table 'ghost.nothing' does not exist.",
		Duration: 1500 * time.Millisecond,
	}, SourceWeb, 5)
	if entry.Outcome != "identifier_not_found" || entry.Preview != "" || entry.RowCount != 0 {
		t.Fatalf("entry = %+v", entry)
	}
	if entry.Message != "Error: Dataset or table 'ghost.nothing' does not exist." {
		t.Fatalf("Message = %q", entry.Message)
	}
	if entry.DurationMS != 1500 {
		t.Fatalf("DurationMS = %d", entry.DurationMS)
	}
}

func TestEntryFromOutcomeDefaultsPreviewRows(t *testing.T) {
	table := query.Result{Columns: []string{"id"}}
	for i := 1; i <= 8; i++ {
		table.Rows = append(table.Rows, []any{int64(i)})
	}
	outcome := pipeline.Outcome{Question: "q", Kind: pipeline.KindRows, Table: &table}

	for _, previewRows := range []int{0, -1} {
		entry := EntryFromOutcome(outcome, SourceCLI, previewRows)
		if entry.RowCount != 8 {
			t.Fatalf("RowCount = %d, want 8", entry.RowCount)
		}
		if !strings.Contains(entry.Preview, "| 5 ") {
			t.Fatalf("previewRows=%d preview missing row 5:\n%s", previewRows, entry.Preview)
		}
		if strings.Contains(entry.Preview, "| 6 ") {
			t.Fatalf("previewRows=%d preview has more than the default rows:\n%s", previewRows, entry.Preview)
		}
	}
}
