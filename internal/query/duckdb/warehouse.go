package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/querypilot/querypilot/internal/query"
	"github.com/querypilot/querypilot/internal/storage"
)

// Warehouse runs queries on an embedded DuckDB database. Datasets are DuckDB
// schemas.
type Warehouse struct {
	db      *sql.DB
	workDir string
}

var _ query.Warehouse = (*Warehouse)(nil)

// Open opens the database file at path, or an in-memory database when path
// is empty.
func Open(ctx context.Context, path string) (*Warehouse, error) {
	db, err := sql.Open("duckdb", strings.TrimSpace(path))
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}
	return &Warehouse{db: db}, nil
}

// DB exposes the underlying handle for seeding and tests.
func (w *Warehouse) DB() *sql.DB {
	return w.db
}

func (w *Warehouse) DatasetExists(ctx context.Context, dataset string) error {
	return w.exists(ctx,
		`SELECT COUNT(*) FROM information_schema.schemata WHERE schema_name = ?`,
		dataset,
	)
}

func (w *Warehouse) TableExists(ctx context.Context, dataset, table string) error {
	return w.exists(ctx,
		`SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = ? AND table_name = ?`,
		dataset, table,
	)
}

func (w *Warehouse) exists(ctx context.Context, statement string, args ...any) error {
	var count int64
	if err := w.db.QueryRowContext(ctx, statement, args...).Scan(&count); err != nil {
		return fmt.Errorf("lookup %s: %w", strings.Join(toStrings(args), "."), err)
	}
	if count == 0 {
		return fmt.Errorf("%s: %w", strings.Join(toStrings(args), "."), query.ErrNotFound)
	}
	return nil
}

func (w *Warehouse) Execute(ctx context.Context, sqlText string) (query.Result, error) {
	sqlText = stripTrailingSemicolons(sqlText)
	if sqlText == "" {
		return query.Result{}, fmt.Errorf("%w: sql is required", query.ErrBadRequest)
	}

	start := time.Now()
	rows, err := w.db.QueryContext(ctx, sqlText)
	if err != nil {
		return query.Result{}, classifyError(err)
	}
	defer func() { _ = rows.Close() }()

	result, err := query.ScanRows(rows)
	if err != nil {
		return query.Result{}, classifyError(err)
	}
	result.Duration = time.Since(start)
	return result, nil
}

// Mount downloads every <dataset>/<table>/*.parquet object from store and
// exposes each table as a view in a schema named after its dataset. The
// local copies live until Close.
func (w *Warehouse) Mount(ctx context.Context, store storage.ObjectStore) (int, error) {
	if store == nil {
		return 0, fmt.Errorf("object store is required")
	}
	objects, err := store.List(ctx, "")
	if err != nil {
		return 0, fmt.Errorf("list dataset objects: %w", err)
	}

	if w.workDir == "" {
		w.workDir, err = os.MkdirTemp("", "querypilot-duckdb-")
		if err != nil {
			return 0, fmt.Errorf("create mount dir: %w", err)
		}
	}

	grouped := map[string][]string{}
	for index, object := range objects {
		dataset, table, ok := storage.ParseDatasetFilePath(object.Key)
		if !ok {
			continue
		}
		reader, err := store.Get(ctx, object.Key)
		if err != nil {
			return 0, fmt.Errorf("get object %q: %w", object.Key, err)
		}
		localPath := filepath.Join(w.workDir, fmt.Sprintf("%s_%s_%d.parquet", dataset, table, index))
		if err := writeFile(localPath, reader); err != nil {
			_ = reader.Close()
			return 0, fmt.Errorf("write local parquet file %q: %w", localPath, err)
		}
		if err := reader.Close(); err != nil {
			return 0, fmt.Errorf("close object %q: %w", object.Key, err)
		}
		name := dataset + "." + table
		grouped[name] = append(grouped[name], localPath)
	}

	names := make([]string, 0, len(grouped))
	for name := range grouped {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		dataset, table, _ := strings.Cut(name, ".")
		if _, err := w.db.ExecContext(ctx, `CREATE SCHEMA IF NOT EXISTS `+quoteIdent(dataset)); err != nil {
			return 0, fmt.Errorf("create schema %q: %w", dataset, err)
		}
		viewSQL := fmt.Sprintf(`CREATE OR REPLACE VIEW %s.%s AS SELECT * FROM read_parquet(%s)`,
			quoteIdent(dataset), quoteIdent(table), quoteStringArray(grouped[name]))
		if _, err := w.db.ExecContext(ctx, viewSQL); err != nil {
			return 0, fmt.Errorf("create view for table %q: %w", name, err)
		}
	}
	return len(names), nil
}

func (w *Warehouse) Close() error {
	err := w.db.Close()
	if w.workDir != "" {
		err = errors.Join(err, os.RemoveAll(w.workDir))
	}
	return err
}

// classifyError maps DuckDB's parser, binder and catalog errors, which carry
// the type as a message prefix, to query.ErrBadRequest.
func classifyError(err error) error {
	message := err.Error()
	for _, prefix := range []string{
		"Parser Error",
		"Binder Error",
		"Catalog Error",
		"Conversion Error",
		"Syntax Error",
		"Invalid Input Error",
		"Not implemented Error",
	} {
		if strings.Contains(message, prefix) {
			return fmt.Errorf("%w: %w", query.ErrBadRequest, err)
		}
	}
	return fmt.Errorf("execute query: %w", err)
}

func toStrings(values []any) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		out = append(out, fmt.Sprint(value))
	}
	return out
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func quoteStringArray(values []string) string {
	quoted := make([]string, 0, len(values))
	for _, value := range values {
		quoted = append(quoted, `'`+strings.ReplaceAll(value, `'`, `''`)+`'`)
	}
	return "[" + strings.Join(quoted, ",") + "]"
}

func stripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}
