package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/querypilot/querypilot/internal/migrations"
)

type DBConfig struct {
	DSN             string
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	// AutoMigrate applies pending migrations after connecting. It is always
	// on for SQLite.
	AutoMigrate bool
}

// DriverFor picks pgx for postgres:// URLs and sqlite3 for everything else.
func DriverFor(dsn string) (driver, source string) {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return "pgx", strings.TrimSpace(dsn)
	}
	return "sqlite3", strings.TrimPrefix(strings.TrimSpace(dsn), "sqlite://")
}

func Open(ctx context.Context, cfg DBConfig) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("history dsn is required")
	}

	driver, source := DriverFor(cfg.DSN)
	db, err := sql.Open(driver, source)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if driver == "sqlite3" {
		db.SetMaxOpenConns(1)
	} else if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping history db: %w", err)
	}

	if cfg.AutoMigrate || driver == "sqlite3" {
		if _, err := migrations.NewRunner().Up(ctx, db, 0); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate history db: %w", err)
		}
	}
	return db, nil
}
