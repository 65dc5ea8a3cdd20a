package driver

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"time"

	"github.com/duckmesh/duckview/internal/observability"
	"github.com/duckmesh/duckview/internal/rewrite"
)

// Cursor runs statements on a Conn and fetches their rows.
type Cursor struct {
	conn     *Conn
	rows     *sql.Rows
	executed bool
	warnings []string
}

// Execute rewrites query for DuckDB, binds params and runs it. Any result
// of a previous statement on this cursor is closed first.
func (c *Cursor) Execute(ctx context.Context, query string, params Params) (*Cursor, error) {
	if c.conn == nil || c.conn.closed.Load() {
		return nil, ErrConnClosed
	}
	if err := c.Close(); err != nil {
		return nil, err
	}
	c.executed = false
	c.warnings = nil

	result, err := rewrite.Rewrite(query)
	if err != nil {
		observability.ObserveQuery("unsupported", 0)
		return nil, err
	}
	observability.ObserveRewrite(result.Applied)
	for _, warning := range result.Warnings {
		observability.IncrementLossyRewrite()
		c.conn.log().WarnContext(ctx, "lossy sql rewrite",
			slog.String("warning", warning),
			slog.String("sql", query),
		)
	}
	c.warnings = result.Warnings

	statement, args := bindParams(result.SQL, params)
	start := time.Now()
	rows, err := c.conn.db.QueryContext(ctx, statement, args...)
	if err != nil {
		mapped := mapError(statement, err)
		if _, ok := mapped.(*DoubleQuotedLiteralError); ok {
			observability.ObserveQuery("double_quoted_literal", time.Since(start))
		} else {
			observability.ObserveQuery("error", time.Since(start))
		}
		return nil, mapped
	}
	observability.ObserveQuery("ok", time.Since(start))
	c.rows = rows
	c.executed = true
	return c, nil
}

// Description returns the columns of the current result.
func (c *Cursor) Description() ([]Column, error) {
	if !c.executed {
		return nil, ErrNoResult
	}
	if c.rows == nil {
		return nil, nil
	}
	return describe(c.rows)
}

// Warnings returns the lossy rewrites applied to the last statement.
func (c *Cursor) Warnings() []string {
	return c.warnings
}

// FetchOne returns the next row. ok is false once the result is exhausted.
func (c *Cursor) FetchOne() (row Row, ok bool, err error) {
	if !c.executed {
		return Row{}, false, ErrNoResult
	}
	if c.rows == nil {
		return Row{}, false, nil
	}
	columns, err := describe(c.rows)
	if err != nil {
		return Row{}, false, err
	}
	return c.scan(columns, columnIndex(columns))
}

// FetchMany returns up to size rows; a size below one fetches one row.
func (c *Cursor) FetchMany(size int) ([]Row, error) {
	if size < 1 {
		size = 1
	}
	return c.fetch(size)
}

// FetchAll returns every remaining row.
func (c *Cursor) FetchAll() ([]Row, error) {
	return c.fetch(-1)
}

// Next returns the next row, or io.EOF once the result is exhausted.
// Only executing a new statement restarts iteration.
func (c *Cursor) Next() (Row, error) {
	row, ok, err := c.FetchOne()
	if err != nil {
		return Row{}, err
	}
	if !ok {
		return Row{}, io.EOF
	}
	return row, nil
}

// All iterates over the remaining rows.
func (c *Cursor) All() iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		for {
			row, err := c.Next()
			if err == io.EOF {
				return
			}
			if !yield(row, err) || err != nil {
				return
			}
		}
	}
}

// Unwrap returns the DuckDB result of the last statement, or nil.
func (c *Cursor) Unwrap() *sql.Rows {
	return c.rows
}

// Close releases the current result.
func (c *Cursor) Close() error {
	if c.rows == nil {
		return nil
	}
	rows := c.rows
	c.rows = nil
	if err := rows.Close(); err != nil {
		return fmt.Errorf("close rows: %w", err)
	}
	return nil
}

func (c *Cursor) fetch(limit int) ([]Row, error) {
	if !c.executed {
		return nil, ErrNoResult
	}
	if c.rows == nil {
		return []Row{}, nil
	}
	columns, err := describe(c.rows)
	if err != nil {
		return nil, err
	}
	index := columnIndex(columns)

	out := make([]Row, 0)
	for limit < 0 || len(out) < limit {
		row, ok, err := c.scan(columns, index)
		if err != nil {
			return out, err
		}
		if !ok {
			break
		}
		out = append(out, row)
	}
	return out, nil
}

func (c *Cursor) scan(columns []Column, index map[string]int) (Row, bool, error) {
	if c.rows == nil {
		return Row{}, false, nil
	}
	if !c.rows.Next() {
		err := c.rows.Err()
		_ = c.Close()
		if err != nil {
			return Row{}, false, fmt.Errorf("iterate rows: %w", err)
		}
		return Row{}, false, nil
	}
	values := make([]any, len(columns))
	targets := make([]any, len(columns))
	for i := range values {
		targets[i] = &values[i]
	}
	if err := c.rows.Scan(targets...); err != nil {
		return Row{}, false, fmt.Errorf("scan row: %w", err)
	}
	return newRow(values, columns, index), true, nil
}

func describe(rows *sql.Rows) ([]Column, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	columns := make([]Column, len(types))
	for i, columnType := range types {
		columns[i] = Column{Name: columnType.Name(), DatabaseType: columnType.DatabaseTypeName()}
	}
	return columns, nil
}
