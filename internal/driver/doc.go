// Package driver wraps a DuckDB *sql.DB so that callers written against
// SQLite conventions can use it unchanged.
//
// Every statement passes through the rewrite package before it reaches DuckDB.
// Named parameters (:name) are renumbered to DuckDB ordinals ($1, $2, ...),
// parameters the statement does not reference are dropped, and rows expose
// their values both by position and by column name.
//
// A Conn is one DuckDB handle. A Cursor runs one statement at a time on a
// Conn and stops being valid once the Conn is closed. Callers that need
// DuckDB-specific features use Conn.Unwrap and Cursor.Unwrap.
package driver
