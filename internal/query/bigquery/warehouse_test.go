package bigquery

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"

	"github.com/querypilot/querypilot/internal/query"
)

type fakeClient struct {
	datasetErr error
	tableErr   error
	result     query.Result
	queryErr   error
	lastSQL    string
	closed     bool
}

func (f *fakeClient) DatasetMetadata(context.Context, string) error {
	return f.datasetErr
}

func (f *fakeClient) TableMetadata(context.Context, string, string) error {
	return f.tableErr
}

func (f *fakeClient) Query(_ context.Context, sqlText string) (query.Result, error) {
	f.lastSQL = sqlText
	return f.result, f.queryErr
}

func (f *fakeClient) Close() error {
	f.closed = true
	return nil
}

func TestExistenceChecksMapNotFound(t *testing.T) {
	fake := &fakeClient{
		datasetErr: &googleapi.Error{Code: http.StatusNotFound, Message: "Not found: Dataset p:crm"},
		tableErr:   &googleapi.Error{Code: http.StatusNotFound},
	}
	warehouse := newWithClient(fake)

	if err := warehouse.DatasetExists(context.Background(), "crm"); !errors.Is(err, query.ErrNotFound) {
		t.Fatalf("DatasetExists() error = %v, want ErrNotFound", err)
	}
	if err := warehouse.TableExists(context.Background(), "sales", "refunds"); !errors.Is(err, query.ErrNotFound) {
		t.Fatalf("TableExists() error = %v, want ErrNotFound", err)
	}
}

func TestExistenceChecksKeepOtherFailures(t *testing.T) {
	fake := &fakeClient{datasetErr: &googleapi.Error{Code: http.StatusForbidden, Message: "Access Denied"}}
	err := newWithClient(fake).DatasetExists(context.Background(), "sales")
	if err == nil || errors.Is(err, query.ErrNotFound) {
		t.Fatalf("DatasetExists() error = %v, want infrastructure error", err)
	}
}

func TestExecuteReturnsRows(t *testing.T) {
	fake := &fakeClient{result: query.Result{
		Columns: []string{"name"},
		Rows:    [][]any{{"Ada"}},
	}}
	warehouse := newWithClient(fake)

	result, err := warehouse.Execute(context.Background(), "SELECT name FROM sales.customers")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if fake.lastSQL != "SELECT name FROM sales.customers" {
		t.Fatalf("lastSQL = %q", fake.lastSQL)
	}
	if len(result.Rows) != 1 || result.Rows[0][0] != "Ada" {
		t.Fatalf("rows = %#v", result.Rows)
	}
	if err := warehouse.Close(); err != nil || !fake.closed {
		t.Fatalf("Close() error = %v closed=%v", err, fake.closed)
	}
}

func TestExecuteClassifiesInvalidQueries(t *testing.T) {
	tests := []error{
		&googleapi.Error{Code: http.StatusBadRequest, Message: "Syntax error"},
		&googleapi.Error{Code: http.StatusOK, Errors: []googleapi.ErrorItem{{Reason: "invalidQuery"}}},
		&bigquery.Error{Reason: "invalidQuery", Message: "Unrecognized name"},
	}
	for _, queryErr := range tests {
		_, err := newWithClient(&fakeClient{queryErr: queryErr}).Execute(context.Background(), "SELECT x")
		if !errors.Is(err, query.ErrBadRequest) {
			t.Fatalf("Execute() error = %v, want ErrBadRequest for %v", err, queryErr)
		}
	}
}

func TestExecuteKeepsNotFoundDuringQueryAsInfrastructure(t *testing.T) {
	queryErr := &googleapi.Error{Code: http.StatusNotFound, Message: "Not found: Table p:sales.orders"}
	_, err := newWithClient(&fakeClient{queryErr: queryErr}).Execute(context.Background(), "SELECT 1 FROM sales.orders")
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, query.ErrBadRequest) || errors.Is(err, query.ErrNotFound) {
		t.Fatalf("Execute() error = %v, want unclassified error", err)
	}
}
