package driver

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/marcboeker/go-duckdb/v2"
)

func openMemory(t *testing.T) *Conn {
	t.Helper()
	conn, err := Open(context.Background(), "")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestDuckDBFetchByName(t *testing.T) {
	conn := openMemory(t)
	cursor, err := conn.Execute(context.Background(), `SELECT 1 AS col`, nil)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	row, ok, err := cursor.FetchOne()
	if err != nil || !ok {
		t.Fatalf("FetchOne() = %v, %v", ok, err)
	}
	value, ok := row.Get("col")
	if !ok || fmt.Sprint(value) != "1" {
		t.Fatalf("Get(col) = %v, %v", value, ok)
	}
	if fmt.Sprint(row.At(0)) != "1" {
		t.Fatalf("At(0) = %v", row.At(0))
	}
}

func TestDuckDBDoubleQuotedLiteral(t *testing.T) {
	conn := openMemory(t)
	ctx := context.Background()
	if err := conn.Exec(ctx, `CREATE TABLE t (col VARCHAR)`); err != nil {
		t.Fatalf("Exec() error = %v", err)
	}

	_, err := conn.Execute(ctx, `SELECT * FROM t WHERE col = "some value"`, nil)
	var literalErr *DoubleQuotedLiteralError
	if !errors.As(err, &literalErr) {
		t.Fatalf("Execute() error = %v, want DoubleQuotedLiteralError", err)
	}
	if literalErr.Literals[0] != `"some value"` {
		t.Fatalf("Literals = %v", literalErr.Literals)
	}
}

func TestDuckDBMissingColumnIsNotALiteral(t *testing.T) {
	conn := openMemory(t)
	ctx := context.Background()
	if err := conn.Exec(ctx, `CREATE TABLE t (col VARCHAR)`); err != nil {
		t.Fatalf("Exec() error = %v", err)
	}

	_, err := conn.Execute(ctx, `SELECT missing FROM t`, nil)
	if err == nil {
		t.Fatal("expected binder error")
	}
	var literalErr *DoubleQuotedLiteralError
	if errors.As(err, &literalErr) {
		t.Fatalf("Execute() error = %v, want plain binder error", err)
	}
	var duckErr *duckdb.Error
	if !errors.As(err, &duckErr) || duckErr.Type != duckdb.ErrorTypeBinder {
		t.Fatalf("Execute() error = %#v, want duckdb binder error", err)
	}
	if err.Error() != duckErr.Error() {
		t.Fatalf("Execute() message = %q, want unchanged %q", err.Error(), duckErr.Error())
	}
}

func TestDuckDBNamedParamsAndRewrites(t *testing.T) {
	conn := openMemory(t)
	ctx := context.Background()
	if err := conn.Exec(ctx, `CREATE TABLE users (name VARCHAR, tags VARCHAR)`); err != nil {
		t.Fatalf("Exec() error = %v", err)
	}
	if err := conn.Exec(ctx, `INSERT INTO users VALUES ('Alice', 'a'), ('Alice', 'b'), ('Bob', 'c')`); err != nil {
		t.Fatalf("Exec() error = %v", err)
	}

	cursor, err := conn.Execute(ctx,
		"select group_concat([tags]) as tags from `users` where name == :name",
		Named{"name": "Alice", "csrftoken": "ignored"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	rows, err := cursor.FetchAll()
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d", len(rows))
	}
	tags, _ := rows[0].Get("tags")
	if tags != "a,b" && tags != "b,a" {
		t.Fatalf("tags = %v", tags)
	}
}

func TestDuckDBEmptyResultShape(t *testing.T) {
	conn := openMemory(t)
	cursor, err := conn.Execute(context.Background(), `PRAGMA schema_version`, nil)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if _, err := cursor.FetchAll(); err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}

	cursor, err = conn.Execute(context.Background(), `select json_type(payload) from events`, Named{"x": 1})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	rows, err := cursor.FetchAll()
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("rows = %d, want 0", len(rows))
	}
}
