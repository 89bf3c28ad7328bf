package query

import (
	"testing"
	"time"
)

func TestHeadLimitsRows(t *testing.T) {
	result := Result{Columns: []string{"id"}}
	for i := 0; i < 8; i++ {
		result.Rows = append(result.Rows, []any{int64(i)})
	}

	head := result.Head(5)
	if len(head.Rows) != 5 {
		t.Fatalf("len(Head(5).Rows) = %d", len(head.Rows))
	}
	if head.Rows[4][0] != int64(4) {
		t.Fatalf("last row = %#v", head.Rows[4])
	}
	if len(result.Rows) != 8 {
		t.Fatalf("Head mutated source rows: %d", len(result.Rows))
	}
}

func TestHeadReturnsAllRowsWhenFewer(t *testing.T) {
	result := Result{Columns: []string{"id"}, Rows: [][]any{{1}, {2}, {3}}}
	if got := len(result.Head(5).Rows); got != 3 {
		t.Fatalf("len(Head(5).Rows) = %d", got)
	}
	if got := len(result.Head(-1).Rows); got != 0 {
		t.Fatalf("len(Head(-1).Rows) = %d", got)
	}
}

func TestStringRowsFormatsValues(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	result := Result{
		Columns: []string{"a", "b", "c", "d"},
		Rows:    [][]any{{nil, []byte("raw"), at, 3.5}},
	}
	rows := result.StringRows()
	want := []string{"NULL", "raw", "2024-03-01T12:00:00Z", "3.5"}
	for i, cell := range rows[0] {
		if cell != want[i] {
			t.Fatalf("cell %d = %q, want %q", i, cell, want[i])
		}
	}
}

func TestEmpty(t *testing.T) {
	if !(Result{Columns: []string{"x"}}).Empty() {
		t.Fatal("expected zero-row result to be empty")
	}
	if (Result{Rows: [][]any{{1}}}).Empty() {
		t.Fatal("expected one-row result to be non-empty")
	}
}
