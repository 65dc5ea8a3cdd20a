package driver

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/marcboeker/go-duckdb/v2"
)

var (
	ErrConnClosed = errors.New("connection is closed")
	ErrNoResult   = errors.New("no statement has been executed on this cursor")
)

// DoubleQuotedLiteralError reports string values written in double quotes,
// which DuckDB reads as identifiers.
type DoubleQuotedLiteralError struct {
	// Literals holds the offending values with their double quotes.
	Literals []string
	Err      error
}

func (e *DoubleQuotedLiteralError) Error() string {
	literal := ""
	if len(e.Literals) > 0 {
		literal = e.Literals[0]
	}
	return fmt.Sprintf("it looks like you are using a double quoted string for a value at: %s. "+
		"To make this work with DuckDB, wrap it in single quoted strings instead", literal)
}

func (e *DoubleQuotedLiteralError) Unwrap() error {
	return e.Err
}

var referencedColumnPattern = regexp.MustCompile(`Referenced column "((?:[^"]|"")*)" not found`)

// mapError turns binder errors caused by double-quoted literals in sql into a
// DoubleQuotedLiteralError. Other errors are returned unchanged.
func mapError(sql string, err error) error {
	if err == nil {
		return nil
	}
	var duckErr *duckdb.Error
	if errors.As(err, &duckErr) {
		if duckErr.Type != duckdb.ErrorTypeBinder {
			return err
		}
	} else if !strings.Contains(err.Error(), "Binder Error") {
		return err
	}

	matches := referencedColumnPattern.FindAllStringSubmatch(err.Error(), -1)
	literals := make([]string, 0, len(matches))
	for _, match := range matches {
		literal := `"` + match[1] + `"`
		if strings.Contains(sql, literal) {
			literals = append(literals, literal)
		}
	}
	if len(literals) == 0 {
		return err
	}
	return &DoubleQuotedLiteralError{Literals: literals, Err: err}
}
