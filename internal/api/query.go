package api

import (
	"bytes"
	"context"
	"errors"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/duckmesh/duckview/internal/database"
	"github.com/duckmesh/duckview/internal/driver"
	"github.com/duckmesh/duckview/internal/rewrite"
)

type queryRequest struct {
	SQL string `json:"sql"`
	// Params is a JSON object for :name placeholders or an array for
	// positional ones.
	Params json.RawMessage `json:"params"`
}

type queryColumn struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type queryResponse struct {
	Database  string         `json:"database"`
	Columns   []queryColumn  `json:"columns"`
	Rows      [][]any        `json:"rows"`
	RowCount  int            `json:"row_count"`
	Truncated bool           `json:"truncated"`
	Warnings  []string       `json:"warnings"`
	Stats     map[string]any `json:"stats"`
}

func handleQuery(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	db, ok := resolveDatabase(deps, w, r)
	if !ok {
		return
	}

	var request queryRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid query request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(request.SQL) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_REQUIRED", "sql is required", false, nil)
		return
	}
	params, err := parseParams(request.Params)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "params must be a JSON object or array", false, map[string]any{"details": err.Error()})
		return
	}

	start := time.Now()
	response := queryResponse{Database: db.Name(), Columns: []queryColumn{}, Rows: [][]any{}, Warnings: []string{}}
	err = db.ExecuteFn(r.Context(), func(ctx context.Context, conn *driver.Conn) error {
		return runQuery(ctx, conn, request.SQL, params, deps, &response)
	})
	if err != nil {
		writeQueryError(r.Context(), w, err)
		return
	}
	response.RowCount = len(response.Rows)
	response.Stats = map[string]any{"duration_ms": time.Since(start).Milliseconds()}
	writeJSON(w, http.StatusOK, response)
}

func runQuery(ctx context.Context, conn *driver.Conn, sql string, params driver.Params, deps Dependencies, out *queryResponse) error {
	cursor, err := conn.Execute(ctx, sql, params)
	if err != nil {
		return err
	}
	defer func() { _ = cursor.Close() }()

	columns, err := cursor.Description()
	if err != nil {
		return err
	}
	rows, err := cursor.FetchMany(deps.MaxRows + 1)
	if err != nil {
		return err
	}
	if len(rows) > deps.MaxRows {
		rows = rows[:deps.MaxRows]
		out.Truncated = true
	}

	out.Columns = make([]queryColumn, 0, len(columns))
	for _, column := range columns {
		out.Columns = append(out.Columns, queryColumn{Name: column.Name, Type: column.DatabaseType})
	}
	out.Rows = make([][]any, 0, len(rows))
	for _, row := range rows {
		out.Rows = append(out.Rows, row.Encode(deps.Encoder))
	}
	if warnings := cursor.Warnings(); len(warnings) > 0 {
		out.Warnings = warnings
	}
	return nil
}

func writeQueryError(ctx context.Context, w http.ResponseWriter, err error) {
	var literalErr *driver.DoubleQuotedLiteralError
	switch {
	case errors.As(err, &literalErr):
		writeError(ctx, w, http.StatusBadRequest, "DOUBLE_QUOTED_LITERAL", literalErr.Error(), false, map[string]any{"literals": literalErr.Literals})
	case errors.Is(err, rewrite.ErrExplainUnsupported):
		writeError(ctx, w, http.StatusBadRequest, "EXPLAIN_UNSUPPORTED", err.Error(), false, nil)
	case errors.Is(err, database.ErrClosed), errors.Is(err, driver.ErrConnClosed):
		writeError(ctx, w, http.StatusServiceUnavailable, "DATABASE_UNAVAILABLE", "database is not serving queries", true, nil)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		writeError(ctx, w, http.StatusGatewayTimeout, "QUERY_TIMEOUT", "query did not finish in time", true, nil)
	default:
		writeError(ctx, w, http.StatusBadRequest, "QUERY_EXECUTION_FAILED", "query execution failed", false, map[string]any{"details": err.Error()})
	}
}

// parseParams decodes request params into driver params. Whole numbers are
// bound as integers.
func parseParams(raw json.RawMessage) (driver.Params, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	switch trimmed[0] {
	case '{':
		var named map[string]any
		if err := json.Unmarshal(trimmed, &named); err != nil {
			return nil, err
		}
		for key, value := range named {
			named[key] = normalizeParam(value)
		}
		return driver.Named(named), nil
	case '[':
		var positional []any
		if err := json.Unmarshal(trimmed, &positional); err != nil {
			return nil, err
		}
		for i, value := range positional {
			positional[i] = normalizeParam(value)
		}
		return driver.Positional(positional), nil
	default:
		return nil, errors.New("unsupported params type")
	}
}

func normalizeParam(value any) any {
	number, ok := value.(float64)
	if !ok {
		return value
	}
	if number == math.Trunc(number) && math.Abs(number) < 1<<53 {
		return int64(number)
	}
	return number
}
