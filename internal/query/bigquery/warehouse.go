package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/querypilot/querypilot/internal/query"
)

type Config struct {
	ProjectID string
	Location  string
	// CredentialsFile overrides application default credentials.
	CredentialsFile string
}

// Warehouse queries Google BigQuery using the ambient project credentials.
type Warehouse struct {
	client client
}

var _ query.Warehouse = (*Warehouse)(nil)

type client interface {
	DatasetMetadata(ctx context.Context, dataset string) error
	TableMetadata(ctx context.Context, dataset, table string) error
	Query(ctx context.Context, sql string) (query.Result, error)
	Close() error
}

func New(ctx context.Context, cfg Config) (*Warehouse, error) {
	projectID := strings.TrimSpace(cfg.ProjectID)
	if projectID == "" {
		projectID = bigquery.DetectProjectID
	}
	opts := make([]option.ClientOption, 0, 1)
	if strings.TrimSpace(cfg.CredentialsFile) != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	bq, err := bigquery.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create bigquery client: %w", err)
	}
	if cfg.Location != "" {
		bq.Location = cfg.Location
	}
	return &Warehouse{client: &bigQueryClient{client: bq}}, nil
}

func newWithClient(c client) *Warehouse {
	return &Warehouse{client: c}
}

func (w *Warehouse) DatasetExists(ctx context.Context, dataset string) error {
	if err := w.client.DatasetMetadata(ctx, dataset); err != nil {
		return mapMetadataError(dataset, err)
	}
	return nil
}

func (w *Warehouse) TableExists(ctx context.Context, dataset, table string) error {
	if err := w.client.TableMetadata(ctx, dataset, table); err != nil {
		return mapMetadataError(dataset+"."+table, err)
	}
	return nil
}

func (w *Warehouse) Execute(ctx context.Context, sqlText string) (query.Result, error) {
	if strings.TrimSpace(sqlText) == "" {
		return query.Result{}, fmt.Errorf("%w: sql is required", query.ErrBadRequest)
	}
	start := time.Now()
	result, err := w.client.Query(ctx, sqlText)
	if err != nil {
		if isInvalidQuery(err) {
			return query.Result{}, fmt.Errorf("%w: %w", query.ErrBadRequest, err)
		}
		return query.Result{}, fmt.Errorf("run query: %w", err)
	}
	result.Duration = time.Since(start)
	return result, nil
}

func (w *Warehouse) Close() error {
	return w.client.Close()
}

func mapMetadataError(name string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
		return fmt.Errorf("%s: %w", name, query.ErrNotFound)
	}
	return fmt.Errorf("lookup %s: %w", name, err)
}

// isInvalidQuery reports whether BigQuery rejected the statement itself, as
// opposed to failing to run it.
func isInvalidQuery(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusBadRequest {
			return true
		}
		for _, item := range apiErr.Errors {
			if item.Reason == "invalidQuery" {
				return true
			}
		}
	}
	var jobErr *bigquery.Error
	if errors.As(err, &jobErr) && jobErr.Reason == "invalidQuery" {
		return true
	}
	return false
}

type bigQueryClient struct {
	client *bigquery.Client
}

func (c *bigQueryClient) DatasetMetadata(ctx context.Context, dataset string) error {
	_, err := c.client.Dataset(dataset).Metadata(ctx)
	return err
}

func (c *bigQueryClient) TableMetadata(ctx context.Context, dataset, table string) error {
	_, err := c.client.Dataset(dataset).Table(table).Metadata(ctx)
	return err
}

func (c *bigQueryClient) Query(ctx context.Context, sqlText string) (query.Result, error) {
	it, err := c.client.Query(sqlText).Read(ctx)
	if err != nil {
		return query.Result{}, err
	}

	rows := make([][]any, 0)
	for {
		var values []bigquery.Value
		err := it.Next(&values)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return query.Result{}, err
		}
		row := make([]any, len(values))
		for i, value := range values {
			row[i] = value
		}
		rows = append(rows, query.NormalizeValues(row))
	}

	columns := make([]string, 0, len(it.Schema))
	for _, field := range it.Schema {
		columns = append(columns, field.Name)
	}
	return query.Result{Columns: columns, Rows: rows}, nil
}

func (c *bigQueryClient) Close() error {
	return c.client.Close()
}
