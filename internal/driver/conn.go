package driver

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync/atomic"

	_ "github.com/marcboeker/go-duckdb/v2"
)

// Conn owns one DuckDB handle.
type Conn struct {
	db     *sql.DB
	logger *slog.Logger
	closed atomic.Bool
}

// Option configures a Conn.
type Option func(*Conn)

// WithLogger sets the logger used for rewrite warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Conn) { c.logger = logger }
}

// Open opens a DuckDB database. An empty dsn opens an in-memory database.
func Open(ctx context.Context, dsn string, opts ...Option) (*Conn, error) {
	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}
	return NewConn(db, opts...), nil
}

// NewConn wraps an existing handle. The Conn takes ownership of db.
func NewConn(db *sql.DB, opts ...Option) *Conn {
	conn := &Conn{db: db}
	for _, opt := range opts {
		opt(conn)
	}
	return conn
}

// Execute rewrites and runs query, returning a cursor over its result.
func (c *Conn) Execute(ctx context.Context, query string, params Params) (*Cursor, error) {
	cursor := c.Cursor()
	if _, err := cursor.Execute(ctx, query, params); err != nil {
		return nil, err
	}
	return cursor, nil
}

// Cursor returns a cursor with no statement executed yet.
func (c *Conn) Cursor() *Cursor {
	return &Cursor{conn: c}
}

// Exec runs statement as is, without rewriting. It is used to apply DuckDB
// statements such as view definitions.
func (c *Conn) Exec(ctx context.Context, statement string) error {
	if c.closed.Load() {
		return ErrConnClosed
	}
	if _, err := c.db.ExecContext(ctx, statement); err != nil {
		return fmt.Errorf("exec %q: %w", statement, err)
	}
	return nil
}

// SetProgressHandler is accepted for SQLite compatibility. DuckDB has no
// progress hook, so the handler is never called.
func (c *Conn) SetProgressHandler(handler func() int, n int) {}

// Unwrap returns the underlying DuckDB handle.
func (c *Conn) Unwrap() *sql.DB {
	return c.db
}

func (c *Conn) Closed() bool {
	return c.closed.Load()
}

// Close closes the handle. Queries already running are allowed to finish.
func (c *Conn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.db.Close()
}

func (c *Conn) log() *slog.Logger {
	if c.logger == nil {
		return slog.Default()
	}
	return c.logger
}
