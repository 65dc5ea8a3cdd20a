package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/duckmesh/duckview/internal/auth"
	"github.com/duckmesh/duckview/internal/driver"
)

type queryResult struct {
	Database  string        `json:"database"`
	Columns   []queryColumn `json:"columns"`
	Rows      [][]any       `json:"rows"`
	RowCount  int           `json:"row_count"`
	Truncated bool          `json:"truncated"`
	Warnings  []string      `json:"warnings"`
}

func TestQueryEndpointNamedParams(t *testing.T) {
	h := newQueryHandler(t, Dependencies{})

	rr := postQuery(t, h, "trove", `{"sql":"SELECT name, email FROM users WHERE name = :name","params":{"name":"Alice","unused":1}}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	result := decodeQuery(t, rr)
	if result.Database != "trove" || result.RowCount != 1 || result.Truncated {
		t.Fatalf("result = %#v", result)
	}
	if len(result.Columns) != 2 || result.Columns[0].Name != "name" || result.Columns[1].Name != "email" {
		t.Fatalf("columns = %#v", result.Columns)
	}
	if result.Rows[0][1] != "alice@example.com" {
		t.Fatalf("rows = %#v", result.Rows)
	}
	if len(result.Warnings) != 0 {
		t.Fatalf("warnings = %#v", result.Warnings)
	}
}

func TestQueryEndpointPositionalParams(t *testing.T) {
	h := newQueryHandler(t, Dependencies{})

	rr := postQuery(t, h, "trove", `{"sql":"SELECT name FROM users WHERE id >= ? ORDER BY id","params":[2]}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	result := decodeQuery(t, rr)
	if result.RowCount != 2 || result.Rows[0][0] != "Bob" || result.Rows[1][0] != "Carol" {
		t.Fatalf("rows = %#v", result.Rows)
	}
}

func TestQueryEndpointRewritesSQLiteDialect(t *testing.T) {
	h := newQueryHandler(t, Dependencies{})

	rr := postQuery(t, h, "trove", "{\"sql\":\"SELECT group_concat(name) AS names FROM users WHERE `id` == 1\"}")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	result := decodeQuery(t, rr)
	if result.RowCount != 1 || result.Rows[0][0] != "Alice" {
		t.Fatalf("rows = %#v", result.Rows)
	}

	probe := postQuery(t, h, "trove", `{"sql":"select 1 from sqlite_master where tbl_name = \"geometry_columns\""}`)
	if probe.Code != http.StatusOK {
		t.Fatalf("probe status = %d, body = %s", probe.Code, probe.Body.String())
	}
	if result := decodeQuery(t, probe); result.RowCount != 0 || len(result.Columns) != 1 {
		t.Fatalf("probe result = %#v", result)
	}
}

func TestQueryEndpointGlobWarning(t *testing.T) {
	h := newQueryHandler(t, Dependencies{})

	rr := postQuery(t, h, "trove", `{"sql":"SELECT name FROM users WHERE name GLOB 'Al%'"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	result := decodeQuery(t, rr)
	if result.RowCount != 1 || result.Rows[0][0] != "Alice" {
		t.Fatalf("rows = %#v", result.Rows)
	}
	if len(result.Warnings) != 1 || !strings.Contains(result.Warnings[0], "LIKE") {
		t.Fatalf("warnings = %#v", result.Warnings)
	}
}

func TestQueryEndpointTruncatesAtMaxRows(t *testing.T) {
	h := newQueryHandler(t, Dependencies{MaxRows: 2})

	rr := postQuery(t, h, "trove", `{"sql":"SELECT id FROM users ORDER BY id"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	result := decodeQuery(t, rr)
	if result.RowCount != 2 || !result.Truncated {
		t.Fatalf("result = %#v", result)
	}
}

func TestQueryEndpointCustomEncoder(t *testing.T) {
	h := newQueryHandler(t, Dependencies{
		Encoder: driver.ValueEncoderFunc(func(column driver.Column, value any) any {
			return column.Name + "!"
		}),
	})

	rr := postQuery(t, h, "trove", `{"sql":"SELECT name FROM users WHERE id = 1"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if result := decodeQuery(t, rr); result.Rows[0][0] != "name!" {
		t.Fatalf("rows = %#v", result.Rows)
	}
}

func TestQueryEndpointDoubleQuotedLiteral(t *testing.T) {
	h := newQueryHandler(t, Dependencies{})

	rr := postQuery(t, h, "trove", `{"sql":"SELECT * FROM users WHERE name = \"Alice\""}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["error_code"] != "DOUBLE_QUOTED_LITERAL" {
		t.Fatalf("error_code = %v", body["error_code"])
	}
	extra, ok := body["context"].(map[string]any)
	if !ok {
		t.Fatalf("context = %#v", body["context"])
	}
	literals, ok := extra["literals"].([]any)
	if !ok || len(literals) != 1 || literals[0] != "Alice" {
		t.Fatalf("literals = %#v", extra["literals"])
	}
}

func TestQueryEndpointErrors(t *testing.T) {
	h := newQueryHandler(t, Dependencies{})

	cases := []struct {
		name     string
		database string
		body     string
		status   int
		code     string
	}{
		{name: "explain", database: "trove", body: `{"sql":"explain query plan select 1"}`, status: http.StatusBadRequest, code: "EXPLAIN_UNSUPPORTED"},
		{name: "missing sql", database: "trove", body: `{"sql":"   "}`, status: http.StatusBadRequest, code: "SQL_REQUIRED"},
		{name: "unknown field", database: "trove", body: `{"sql":"SELECT 1","limit":5}`, status: http.StatusBadRequest, code: "INVALID_JSON"},
		{name: "malformed body", database: "trove", body: `{"sql":`, status: http.StatusBadRequest, code: "INVALID_JSON"},
		{name: "scalar params", database: "trove", body: `{"sql":"SELECT 1","params":5}`, status: http.StatusBadRequest, code: "INVALID_JSON"},
		{name: "missing table", database: "trove", body: `{"sql":"SELECT * FROM nope"}`, status: http.StatusBadRequest, code: "QUERY_EXECUTION_FAILED"},
		{name: "unknown database", database: "nope", body: `{"sql":"SELECT 1"}`, status: http.StatusNotFound, code: "DATABASE_NOT_FOUND"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := postQuery(t, h, tc.database, tc.body)
			if rr.Code != tc.status {
				t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
			}
			if body := decodeBody(t, rr); body["error_code"] != tc.code {
				t.Fatalf("error_code = %v", body["error_code"])
			}
		})
	}
}

func TestQueryEndpointForbiddenDatabase(t *testing.T) {
	cfg := loadConfig(t, map[string]string{"DUCKVIEW_AUTH_REQUIRED": "true"})
	validator, err := auth.NewStaticAPIKeyValidator("k1:analyst:archive")
	if err != nil {
		t.Fatalf("validator setup failed: %v", err)
	}
	h := NewHandler(cfg, Dependencies{
		AuthMiddleware: auth.Middleware(nil, validator),
		Databases:      newTestRegistry(t),
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/databases/trove/query", strings.NewReader(`{"sql":"SELECT 1"}`))
	req.Header.Set("X-API-Key", "k1")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d", rr.Code)
	}
	if body := decodeBody(t, rr); body["error_code"] != "FORBIDDEN" {
		t.Fatalf("error_code = %v", body["error_code"])
	}
}

func TestQueryEndpointClosedDatabase(t *testing.T) {
	registry := newTestRegistry(t)
	h := NewHandler(loadConfig(t, map[string]string{}), Dependencies{Databases: registry})
	db, _ := registry.Get("trove")
	if err := db.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	rr := postQuery(t, h, "trove", `{"sql":"SELECT 1"}`)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if body := decodeBody(t, rr); body["error_code"] != "DATABASE_UNAVAILABLE" || body["retryable"] != true {
		t.Fatalf("body = %#v", body)
	}
}

func TestParseParams(t *testing.T) {
	params, err := parseParams(json.RawMessage(`{"id":3,"ratio":0.5,"name":"x"}`))
	if err != nil {
		t.Fatalf("parseParams() error = %v", err)
	}
	named, ok := params.(driver.Named)
	if !ok {
		t.Fatalf("params type = %T", params)
	}
	if named["id"] != int64(3) || named["ratio"] != 0.5 || named["name"] != "x" {
		t.Fatalf("named = %#v", named)
	}

	params, err = parseParams(json.RawMessage(`[1, true, null]`))
	if err != nil {
		t.Fatalf("parseParams() error = %v", err)
	}
	positional, ok := params.(driver.Positional)
	if !ok || len(positional) != 3 || positional[0] != int64(1) || positional[1] != true || positional[2] != nil {
		t.Fatalf("positional = %#v", params)
	}

	for _, raw := range []string{"", "null", "  "} {
		params, err := parseParams(json.RawMessage(raw))
		if err != nil || params != nil {
			t.Fatalf("parseParams(%q) = %v, %v", raw, params, err)
		}
	}
}

func newQueryHandler(t *testing.T, deps Dependencies) http.Handler {
	t.Helper()
	deps.Databases = newTestRegistry(t)
	deps.DependencyTimeout = time.Second
	return NewHandler(loadConfig(t, map[string]string{}), deps)
}

func postQuery(t *testing.T, h http.Handler, database, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/databases/"+database+"/query", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeQuery(t *testing.T, rr *httptest.ResponseRecorder) queryResult {
	t.Helper()
	var result queryResult
	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatalf("json decode failed: %v, body = %s", err, rr.Body.String())
	}
	return result
}

func TestQueryEndpointFallsBackFromInvalidMaxRows(t *testing.T) {
	cfg := loadConfig(t, map[string]string{})
	cfg.Query.MaxRows = -1
	h := NewHandler(cfg, Dependencies{Databases: newTestRegistry(t)})

	rr := postQuery(t, h, "trove", `{"sql":"SELECT name FROM users"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if result := decodeQuery(t, rr); result.RowCount != 3 || result.Truncated {
		t.Fatalf("result = %#v", result)
	}
}
