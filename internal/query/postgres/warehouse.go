package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/querypilot/querypilot/internal/query"
)

// Warehouse queries a PostgreSQL database. Datasets are schemas.
type Warehouse struct {
	db *sql.DB
}

var _ query.Warehouse = (*Warehouse)(nil)

func Open(ctx context.Context, dsn string, maxOpenConns int) (*Warehouse, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
		db.SetMaxIdleConns(maxOpenConns)
	}
	db.SetConnMaxLifetime(30 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return New(db), nil
}

func New(db *sql.DB) *Warehouse {
	return &Warehouse{db: db}
}

func (w *Warehouse) DatasetExists(ctx context.Context, dataset string) error {
	var exists bool
	err := w.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.schemata WHERE schema_name = $1)`,
		dataset,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("lookup dataset %q: %w", dataset, err)
	}
	if !exists {
		return fmt.Errorf("dataset %q: %w", dataset, query.ErrNotFound)
	}
	return nil
}

func (w *Warehouse) TableExists(ctx context.Context, dataset, table string) error {
	var exists bool
	err := w.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = $1 AND table_name = $2)`,
		dataset, table,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("lookup table %q: %w", dataset+"."+table, err)
	}
	if !exists {
		return fmt.Errorf("table %q: %w", dataset+"."+table, query.ErrNotFound)
	}
	return nil
}

func (w *Warehouse) Execute(ctx context.Context, sqlText string) (query.Result, error) {
	if strings.TrimSpace(sqlText) == "" {
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

func (w *Warehouse) Close() error {
	return w.db.Close()
}

// classifyError maps SQLSTATE classes 22 (data exception) and 42 (syntax
// error or access rule violation) to query.ErrBadRequest.
func classifyError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		class := pgErr.Code
		if len(class) >= 2 {
			class = class[:2]
		}
		if class == "42" || class == "22" {
			return fmt.Errorf("%w: %w", query.ErrBadRequest, err)
		}
	}
	return fmt.Errorf("execute query: %w", err)
}
