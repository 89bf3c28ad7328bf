// Package interactionlog appends one record per answered question to a
// durable text file.
package interactionlog

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/querypilot/querypilot/internal/pipeline"
	"github.com/querypilot/querypilot/internal/query"
)

const DefaultPreviewRows = 5

// previewIndent marks table lines that belong to the record above them.
const previewIndent = "    "

type Log struct {
	mu          sync.Mutex
	out         io.Writer
	closer      io.Closer
	previewRows int
	now         func() time.Time
}

// Open appends to the file at path, creating it when missing.
func Open(path string, previewRows int) (*Log, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("interaction log path is required")
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open interaction log: %w", err)
	}
	log := New(file, previewRows)
	log.closer = file
	return log, nil
}

func New(writer io.Writer, previewRows int) *Log {
	if previewRows <= 0 {
		previewRows = DefaultPreviewRows
	}
	return &Log{
		out:         writer,
		previewRows: previewRows,
		now:         time.Now,
	}
}

// Record writes the question, the generated SQL and the outcome text as one
// leveled line. Row results are followed by the first rows as an indented
// table. Failed runs are written at error level.
func (l *Log) Record(ctx context.Context, outcome pipeline.Outcome) error {
	level := slog.LevelInfo
	if outcome.IsError() {
		level = slog.LevelError
	}

	record := slog.NewRecord(l.now(), level, "interaction", 0)
	record.AddAttrs(
		slog.String("User Input", outcome.Question),
		slog.String("Generated SQL Query", outcome.SQL),
		slog.String("Query Results", outcome.Text()),
		slog.String("kind", string(outcome.Kind)),
	)

	var entry bytes.Buffer
	if err := slog.NewTextHandler(&entry, nil).Handle(ctx, record); err != nil {
		return fmt.Errorf("format interaction record: %w", err)
	}
	if outcome.Kind == pipeline.KindRows && outcome.Table != nil {
		for _, line := range strings.Split(Preview(*outcome.Table, l.previewRows), "\n") {
			entry.WriteString(previewIndent + line + "\n")
		}
	}

	// One write per interaction keeps the table attached to its header line.
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.out.Write(entry.Bytes()); err != nil {
		return fmt.Errorf("write interaction record: %w", err)
	}
	return nil
}

func (l *Log) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// Preview renders at most n rows of result as a plain text table.
func Preview(result query.Result, n int) string {
	head := result.Head(n)
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetHeader(head.Columns)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.AppendBulk(head.StringRows())
	table.Render()
	return strings.TrimRight(buf.String(), "\n")
}
