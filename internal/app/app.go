// Package app builds the runtime components shared by the querypilot
// binaries from a loaded configuration.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/querypilot/querypilot/internal/config"
	"github.com/querypilot/querypilot/internal/history"
	"github.com/querypilot/querypilot/internal/nl2sql"
	"github.com/querypilot/querypilot/internal/pipeline"
	"github.com/querypilot/querypilot/internal/query"
	bigquerywh "github.com/querypilot/querypilot/internal/query/bigquery"
	duckdbwh "github.com/querypilot/querypilot/internal/query/duckdb"
	postgreswh "github.com/querypilot/querypilot/internal/query/postgres"
	s3store "github.com/querypilot/querypilot/internal/storage/s3"
)

// Runtime owns everything a question needs. Close releases it in reverse
// order of construction.
type Runtime struct {
	Pipeline *pipeline.Pipeline
	History  history.Store

	closers []io.Closer
}

func (r *Runtime) Close() error {
	var first error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	r.closers = nil
	return first
}

// Build wires translator, warehouse and the optional history store. On error
// everything opened so far is closed.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	rt := &Runtime{}

	translator, closer, err := NewTranslator(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		rt.closers = append(rt.closers, closer)
	}

	warehouse, err := OpenWarehouse(ctx, cfg, logger)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.closers = append(rt.closers, warehouse)

	if strings.TrimSpace(cfg.History.DSN) != "" {
		db, err := OpenHistoryDB(ctx, cfg, false)
		if err != nil {
			_ = rt.Close()
			return nil, err
		}
		rt.closers = append(rt.closers, db)
		rt.History = history.NewRepository(db)
	}

	rt.Pipeline = &pipeline.Pipeline{
		Translator:       translator,
		Warehouse:        warehouse,
		Logger:           logger,
		WarehouseTimeout: cfg.Warehouse.Timeout,
	}
	return rt, nil
}

// NewTranslator returns the configured provider wrapped with the transient
// retry policy. The closer is nil when the provider holds no resources.
func NewTranslator(ctx context.Context, cfg config.Config, logger *slog.Logger) (nl2sql.Translator, io.Closer, error) {
	switch cfg.LLM.Provider {
	case config.ProviderGemini:
		translator, err := nl2sql.NewGeminiTranslator(ctx, nl2sql.GeminiConfig{
			APIKey:      cfg.LLM.APIKey(),
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLM.Timeout,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("initialize gemini translator: %w", err)
		}
		return nl2sql.WithRetry(translator, cfg.LLM.Retries, logger), translator, nil
	case config.ProviderOpenAI:
		translator, err := nl2sql.NewOpenAITranslator(nl2sql.OpenAIConfig{
			BaseURL:     cfg.LLM.BaseURL,
			APIKey:      cfg.LLM.APIKey(),
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLM.Timeout,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("initialize openai translator: %w", err)
		}
		return nl2sql.WithRetry(translator, cfg.LLM.Retries, logger), nil, nil
	default:
		return nil, nil, fmt.Errorf("unsupported llm provider %q", cfg.LLM.Provider)
	}
}

func OpenWarehouse(ctx context.Context, cfg config.Config, logger *slog.Logger) (query.Warehouse, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	switch cfg.Warehouse.Kind {
	case config.WarehouseBigQuery:
		warehouse, err := bigquerywh.New(ctx, bigquerywh.Config{
			ProjectID:       cfg.Warehouse.BigQueryProject,
			Location:        cfg.Warehouse.BigQueryLocation,
			CredentialsFile: cfg.Warehouse.BigQueryCredentials,
		})
		if err != nil {
			return nil, fmt.Errorf("open bigquery warehouse: %w", err)
		}
		return warehouse, nil
	case config.WarehousePostgres:
		warehouse, err := postgreswh.Open(ctx, cfg.Warehouse.PostgresDSN, cfg.Warehouse.MaxOpenConns)
		if err != nil {
			return nil, fmt.Errorf("open postgres warehouse: %w", err)
		}
		return warehouse, nil
	case config.WarehouseDuckDB:
		warehouse, err := duckdbwh.Open(ctx, cfg.Warehouse.DuckDBPath)
		if err != nil {
			return nil, fmt.Errorf("open duckdb warehouse: %w", err)
		}
		if !cfg.Warehouse.DuckDBLoadFromStore {
			return warehouse, nil
		}
		store, err := OpenObjectStore(ctx, cfg)
		if err != nil {
			_ = warehouse.Close()
			return nil, err
		}
		mounted, err := warehouse.Mount(ctx, store)
		if err != nil {
			_ = warehouse.Close()
			return nil, fmt.Errorf("mount object store datasets: %w", err)
		}
		logger.Info("mounted object store datasets", slog.Int("tables", mounted), slog.String("bucket", cfg.ObjectStore.Bucket))
		return warehouse, nil
	default:
		return nil, fmt.Errorf("unsupported warehouse %q", cfg.Warehouse.Kind)
	}
}

func OpenObjectStore(ctx context.Context, cfg config.Config) (*s3store.Store, error) {
	store, err := s3store.New(ctx, s3store.Config{
		Endpoint:         cfg.ObjectStore.Endpoint,
		Region:           cfg.ObjectStore.Region,
		Bucket:           cfg.ObjectStore.Bucket,
		AccessKeyID:      cfg.ObjectStore.AccessKeyID,
		SecretAccessKey:  cfg.ObjectStore.SecretAccessKey,
		UseSSL:           cfg.ObjectStore.UseSSL,
		Prefix:           cfg.ObjectStore.Prefix,
		AutoCreateBucket: cfg.ObjectStore.AutoCreateBucket,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize object store: %w", err)
	}
	return store, nil
}

func OpenHistoryDB(ctx context.Context, cfg config.Config, autoMigrate bool) (*sql.DB, error) {
	db, err := history.Open(ctx, history.DBConfig{
		DSN:          cfg.History.DSN,
		MaxOpenConns: cfg.History.MaxOpenConns,
		AutoMigrate:  autoMigrate,
	})
	if err != nil {
		return nil, fmt.Errorf("open history store: %w", err)
	}
	return db, nil
}
