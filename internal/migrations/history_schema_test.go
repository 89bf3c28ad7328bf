package migrations

import (
	"strings"
	"testing"
)

func TestHistoryMigrationIsPortable(t *testing.T) {
	body, err := embeddedFS.ReadFile("sql/000001_interaction_history.up.sql")
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}

	script := string(body)
	for _, snippet := range []string{
		"CREATE TABLE interaction",
		"interaction_id TEXT PRIMARY KEY",
		"CREATE INDEX idx_interaction_occurred_at",
	} {
		if !strings.Contains(script, snippet) {
			t.Fatalf("migration missing required snippet: %s", snippet)
		}
	}
	for _, dialectOnly := range []string{"NOW()", "TIMESTAMPTZ", "JSONB", "SERIAL"} {
		if strings.Contains(strings.ToUpper(script), dialectOnly) {
			t.Fatalf("migration uses non-portable %s", dialectOnly)
		}
	}
}
