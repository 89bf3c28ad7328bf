package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/querypilot/querypilot/internal/query"
)

func TestDatasetExists(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()
	warehouse := New(db)

	statement := regexp.QuoteMeta(`SELECT EXISTS (SELECT 1 FROM information_schema.schemata WHERE schema_name = $1)`)
	mock.ExpectQuery(statement).WithArgs("sales").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(statement).WithArgs("crm").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	if err := warehouse.DatasetExists(context.Background(), "sales"); err != nil {
		t.Fatalf("DatasetExists(sales) error = %v", err)
	}
	if err := warehouse.DatasetExists(context.Background(), "crm"); !errors.Is(err, query.ErrNotFound) {
		t.Fatalf("DatasetExists(crm) error = %v, want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet() error = %v", err)
	}
}

func TestTableExists(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()
	warehouse := New(db)

	statement := regexp.QuoteMeta(`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = $1 AND table_name = $2)`)
	mock.ExpectQuery(statement).WithArgs("sales", "refunds").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(statement).WithArgs("sales", "orders").WillReturnError(errors.New("connection reset"))

	if err := warehouse.TableExists(context.Background(), "sales", "refunds"); !errors.Is(err, query.ErrNotFound) {
		t.Fatalf("TableExists() error = %v, want ErrNotFound", err)
	}
	err = warehouse.TableExists(context.Background(), "sales", "orders")
	if err == nil || errors.Is(err, query.ErrNotFound) {
		t.Fatalf("TableExists() error = %v, want infrastructure error", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet() error = %v", err)
	}
}

func TestExecuteMaterializesRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT name, total FROM sales.customers`)).
		WillReturnRows(sqlmock.NewRows([]string{"name", "total"}).
			AddRow([]byte("Ada"), int64(12)).
			AddRow("Grace", nil))

	result, err := New(db).Execute(context.Background(), "SELECT name, total FROM sales.customers")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("rows = %d", len(result.Rows))
	}
	if result.Rows[0][0] != "Ada" {
		t.Fatalf("first cell = %#v", result.Rows[0][0])
	}
	if query.FormatValue(result.Rows[1][1]) != "NULL" {
		t.Fatalf("null cell = %#v", result.Rows[1][1])
	}
}

func TestExecuteClassifiesSQLStateErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()
	warehouse := New(db)

	mock.ExpectQuery("SELEC").WillReturnError(&pgconn.PgError{Code: "42601", Message: "syntax error"})
	mock.ExpectQuery("SELECT").WillReturnError(&pgconn.PgError{Code: "53300", Message: "too many connections"})

	if _, err := warehouse.Execute(context.Background(), "SELEC 1"); !errors.Is(err, query.ErrBadRequest) {
		t.Fatalf("Execute() error = %v, want ErrBadRequest", err)
	}
	_, err = warehouse.Execute(context.Background(), "SELECT 1")
	if err == nil || errors.Is(err, query.ErrBadRequest) {
		t.Fatalf("Execute() error = %v, want infrastructure error", err)
	}
}
