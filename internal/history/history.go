// Package history keeps a queryable record of answered questions in
// PostgreSQL or SQLite.
package history

import (
	"context"
	"time"

	"github.com/querypilot/querypilot/internal/interactionlog"
	"github.com/querypilot/querypilot/internal/pipeline"
)

const (
	SourceCLI = "cli"
	SourceWeb = "web"
)

type Entry struct {
	ID         string    `json:"interaction_id"`
	OccurredAt time.Time `json:"occurred_at"`
	Source     string    `json:"source"`
	Question   string    `json:"question"`
	SQL        string    `json:"generated_sql"`
	Outcome    string    `json:"outcome"`
	Message    string    `json:"message,omitempty"`
	RowCount   int64     `json:"row_count"`
	Preview    string    `json:"preview,omitempty"`
	DurationMS int64     `json:"duration_ms"`
}

type Store interface {
	Record(ctx context.Context, entry Entry) (Entry, error)
	Recent(ctx context.Context, limit int) ([]Entry, error)
}

// EntryFromOutcome flattens a pipeline outcome. Row results keep a text
// preview of at most previewRows rows, or interactionlog.DefaultPreviewRows
// when previewRows is not positive.
func EntryFromOutcome(outcome pipeline.Outcome, source string, previewRows int) Entry {
	if previewRows <= 0 {
		previewRows = interactionlog.DefaultPreviewRows
	}
	entry := Entry{
		Source:     source,
		Question:   outcome.Question,
		SQL:        outcome.SQL,
		Outcome:    string(outcome.Kind),
		DurationMS: outcome.Duration.Milliseconds(),
	}
	if outcome.Kind == pipeline.KindRows && outcome.Table != nil {
		entry.RowCount = int64(len(outcome.Table.Rows))
		entry.Preview = interactionlog.Preview(*outcome.Table, previewRows)
		return entry
	}
	entry.Message = outcome.Text()
	return entry
}
