package query

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound marks a dataset or table that the warehouse does not have.
	ErrNotFound = errors.New("not found")
	// ErrBadRequest marks SQL the warehouse rejected as invalid.
	ErrBadRequest = errors.New("bad request")
)

// Result is a materialized tabular value: named columns and ordered rows.
type Result struct {
	Columns  []string
	Rows     [][]any
	Duration time.Duration
}

func (r Result) Empty() bool {
	return len(r.Rows) == 0
}

// Head returns a copy of r limited to the first n rows.
func (r Result) Head(n int) Result {
	if n < 0 {
		n = 0
	}
	if n > len(r.Rows) {
		n = len(r.Rows)
	}
	return Result{
		Columns:  append([]string(nil), r.Columns...),
		Rows:     append([][]any(nil), r.Rows[:n]...),
		Duration: r.Duration,
	}
}

// StringRows formats every cell for text renderers. NULL renders as "NULL".
func (r Result) StringRows() [][]string {
	out := make([][]string, 0, len(r.Rows))
	for _, row := range r.Rows {
		cells := make([]string, len(row))
		for i, value := range row {
			cells[i] = FormatValue(value)
		}
		out = append(out, cells)
	}
	return out
}

func FormatValue(value any) string {
	switch typed := value.(type) {
	case nil:
		return "NULL"
	case string:
		return typed
	case []byte:
		return string(typed)
	case time.Time:
		return typed.Format(time.RFC3339)
	case fmt.Stringer:
		return typed.String()
	default:
		return fmt.Sprint(typed)
	}
}

// Warehouse is the remote query service holding datasets and tables.
// Implementations are safe to reuse across sequential requests.
type Warehouse interface {
	// DatasetExists returns ErrNotFound when the dataset is absent.
	DatasetExists(ctx context.Context, dataset string) error
	// TableExists returns ErrNotFound when the table is absent from dataset.
	TableExists(ctx context.Context, dataset, table string) error
	// Execute runs sql and materializes the full result. Invalid SQL is
	// reported with an error wrapping ErrBadRequest.
	Execute(ctx context.Context, sql string) (Result, error)
	Close() error
}

// NormalizeValues turns driver byte slices into strings so results render and
// encode predictably.
func NormalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}
