// Package seed writes a small deterministic sales dataset as parquet files
// to the object store, laid out for the DuckDB warehouse to mount.
package seed

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"

	"github.com/parquet-go/parquet-go"

	"github.com/querypilot/querypilot/internal/storage"
)

const (
	Dataset        = "sales"
	CustomersTable = "customers"
	OrdersTable    = "orders"

	parquetContentType = "application/vnd.apache.parquet"
)

type Config struct {
	Customers int
	Orders    int
	Seed      int64
	// PartRows splits a table into several part files. Zero writes one file
	// per table.
	PartRows int
}

type Summary struct {
	Objects   []storage.ObjectInfo
	Customers int
	Orders    int
}

type Service struct {
	cfg   Config
	store storage.ObjectStore
	log   *slog.Logger
}

func NewService(cfg Config, store storage.ObjectStore, logger *slog.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	if cfg.Customers <= 0 {
		return nil, fmt.Errorf("customer count must be > 0")
	}
	if cfg.Orders < 0 {
		return nil, fmt.Errorf("order count must be >= 0")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{cfg: cfg, store: store, log: logger}, nil
}

func (s *Service) Run(ctx context.Context) (Summary, error) {
	generator := NewGenerator(s.cfg.Seed)
	customers := generator.Customers(s.cfg.Customers)
	orders := generator.Orders(s.cfg.Orders, s.cfg.Customers)

	summary := Summary{Customers: len(customers), Orders: len(orders)}
	written, err := writeTable(ctx, s.store, CustomersTable, customers, s.cfg.PartRows)
	if err != nil {
		return Summary{}, err
	}
	summary.Objects = append(summary.Objects, written...)

	written, err = writeTable(ctx, s.store, OrdersTable, orders, s.cfg.PartRows)
	if err != nil {
		return Summary{}, err
	}
	summary.Objects = append(summary.Objects, written...)

	s.log.Info("demo dataset written",
		slog.String("dataset", Dataset),
		slog.Int("customers", summary.Customers),
		slog.Int("orders", summary.Orders),
		slog.Int("objects", len(summary.Objects)),
	)
	return summary, nil
}

func writeTable[T any](ctx context.Context, store storage.ObjectStore, table string, rows []T, partRows int) ([]storage.ObjectInfo, error) {
	if partRows <= 0 || partRows > len(rows) {
		partRows = max(len(rows), 1)
	}

	var objects []storage.ObjectInfo
	for part, start := 0, 0; start < len(rows) || part == 0; part, start = part+1, start+partRows {
		end := min(start+partRows, len(rows))
		payload, err := encodeParquet(rows[start:end])
		if err != nil {
			return nil, fmt.Errorf("encode %s part %d: %w", table, part, err)
		}
		key, err := storage.BuildDatasetFilePath(Dataset, table, part)
		if err != nil {
			return nil, err
		}
		if _, err := store.Put(ctx, key, bytes.NewReader(payload), int64(len(payload)), storage.PutOptions{ContentType: parquetContentType}); err != nil {
			return nil, fmt.Errorf("put %s: %w", key, err)
		}
		stored, err := verifyPart(ctx, store, key, int64(len(payload)))
		if err != nil {
			return nil, err
		}
		objects = append(objects, stored)
	}
	if err := pruneStaleParts(ctx, store, table, objects); err != nil {
		return nil, err
	}
	return objects, nil
}

// verifyPart reads back the metadata of a written part. A size mismatch
// means the upload was truncated and DuckDB would fail to read the footer.
func verifyPart(ctx context.Context, store storage.ObjectStore, key string, size int64) (storage.ObjectInfo, error) {
	stored, err := store.Stat(ctx, key)
	if err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("verify %s: %w", key, err)
	}
	if stored.Size != size {
		return storage.ObjectInfo{}, fmt.Errorf("verify %s: stored %d bytes, wrote %d", key, stored.Size, size)
	}
	if stored.Key == "" {
		stored.Key = key
	}
	return stored, nil
}

// pruneStaleParts removes parts left by an earlier run with more parts, so a
// mounted view never mixes two seeds.
func pruneStaleParts(ctx context.Context, store storage.ObjectStore, table string, written []storage.ObjectInfo) error {
	keep := make(map[string]struct{}, len(written))
	for _, object := range written {
		keep[object.Key] = struct{}{}
	}
	existing, err := store.List(ctx, path.Join(Dataset, table)+"/")
	if err != nil {
		return fmt.Errorf("list %s parts: %w", table, err)
	}
	for _, object := range existing {
		if _, ok := keep[object.Key]; ok {
			continue
		}
		if _, _, ok := storage.ParseDatasetFilePath(object.Key); !ok {
			continue
		}
		if err := store.Delete(ctx, object.Key); err != nil {
			return fmt.Errorf("delete stale part %s: %w", object.Key, err)
		}
	}
	return nil
}

func encodeParquet[T any](rows []T) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[T](buf)
	if _, err := writer.Write(rows); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
