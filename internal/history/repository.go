package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const defaultRecentLimit = 20

type Repository struct {
	db    *sql.DB
	now   func() time.Time
	newID func() string
}

var _ Store = (*Repository)(nil)

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		db:    db,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

// Record stores entry, filling in ID and OccurredAt when they are unset.
func (r *Repository) Record(ctx context.Context, entry Entry) (Entry, error) {
	if strings.TrimSpace(entry.ID) == "" {
		entry.ID = r.newID()
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = r.now()
	}

	statement := `
INSERT INTO interaction (
	interaction_id, occurred_at, source, question, generated_sql,
	outcome, message, row_count, preview, duration_ms
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.ExecContext(ctx, statement,
		entry.ID,
		entry.OccurredAt,
		entry.Source,
		entry.Question,
		entry.SQL,
		entry.Outcome,
		entry.Message,
		entry.RowCount,
		entry.Preview,
		entry.DurationMS,
	)
	if err != nil {
		return Entry{}, fmt.Errorf("insert interaction: %w", err)
	}
	return entry, nil
}

// Recent returns the newest entries first.
func (r *Repository) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	statement := `
SELECT interaction_id, occurred_at, source, question, generated_sql,
	outcome, message, row_count, preview, duration_ms
FROM interaction
ORDER BY occurred_at DESC
LIMIT $1`

	rows, err := r.db.QueryContext(ctx, statement, limit)
	if err != nil {
		return nil, fmt.Errorf("list interactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := make([]Entry, 0)
	for rows.Next() {
		var entry Entry
		if err := rows.Scan(
			&entry.ID,
			&entry.OccurredAt,
			&entry.Source,
			&entry.Question,
			&entry.SQL,
			&entry.Outcome,
			&entry.Message,
			&entry.RowCount,
			&entry.Preview,
			&entry.DurationMS,
		); err != nil {
			return nil, fmt.Errorf("scan interaction row: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate interaction rows: %w", err)
	}
	return entries, nil
}
