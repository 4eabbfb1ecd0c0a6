package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMockSource(t *testing.T, query string) (*PostgresSource, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		db.Close()
	})
	return &PostgresSource{db: db, query: query}, mock
}

func TestPostgresSourceFetch(t *testing.T) {
	src, mock := newMockSource(t, "SELECT id, name, amount FROM payments")

	rows := sqlmock.NewRows([]string{"id", "name", "amount"}).
		AddRow(int64(1), []byte("alpha"), 99.5).
		AddRow(int64(2), []byte("beta"), nil)
	mock.ExpectQuery("SELECT id, name, amount FROM payments").WillReturnRows(rows)

	data, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	result, ok := data.([]any)
	if !ok || len(result) != 2 {
		t.Fatalf("result: %T %v", data, data)
	}

	first := result[0].(map[string]any)
	if first["id"] != int64(1) {
		t.Errorf("id: %v", first["id"])
	}
	// Byte-slice columns come back as strings so the pipeline sees JSON-like rows.
	if first["name"] != "alpha" {
		t.Errorf("name: %v (%T)", first["name"], first["name"])
	}
	if first["amount"] != 99.5 {
		t.Errorf("amount: %v", first["amount"])
	}

	second := result[1].(map[string]any)
	if second["amount"] != nil {
		t.Errorf("null column: %v", second["amount"])
	}
}

func TestPostgresSourceFetchNoQuery(t *testing.T) {
	src, _ := newMockSource(t, "")
	if _, err := src.Fetch(context.Background()); err == nil {
		t.Error("empty query should fail")
	}
}

func TestNewSourceUnknownType(t *testing.T) {
	if _, err := NewSource(SourceConfig{Type: "carrier-pigeon"}); err == nil {
		t.Error("unknown source type should fail")
	}
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	if err := os.WriteFile(path, []byte(`[{"a": 1}]`), 0o600); err != nil {
		t.Fatal(err)
	}

	src := &FileSource{Path: path}
	data, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	arr, ok := data.([]any)
	if !ok || len(arr) != 1 {
		t.Errorf("data: %v", data)
	}

	src = &FileSource{Path: path + ".missing"}
	if _, err := src.Fetch(context.Background()); err == nil {
		t.Error("missing file should fail")
	}
}
