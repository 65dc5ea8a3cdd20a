// Package rewrite translates SQLite-dialect statements, including the pragmas
// and probes a SQLite-oriented front end issues, into statements DuckDB runs.
package rewrite

import (
	"errors"
	"regexp"
	"strings"
)

// EmptyResult always succeeds, returns zero rows and takes no parameters. It
// replaces statements that have no faithful DuckDB equivalent.
const EmptyResult = "SELECT 0 WHERE 1 = 0"

// ErrExplainUnsupported is returned for "explain " statements. Callers are
// expected to fall back to guessing parameters from the SQL text.
var ErrExplainUnsupported = errors.New("explain statements are not supported; fall back to parameter guessing")

// Result is a rewritten statement plus the rules that changed it.
type Result struct {
	SQL      string
	Applied  []string
	Warnings []string
}

// Empty reports whether the statement was replaced by EmptyResult.
func (r Result) Empty() bool {
	return r.SQL == EmptyResult
}

// Rule is one step of the rewrite pipeline.
type Rule struct {
	Name string
	// Warning is reported when the rule changes a statement in a way that
	// alters its meaning.
	Warning string
	Apply   func(sql string) (string, error)
}

var (
	dateCallPattern     = regexp.MustCompile(`(?i)\sdate\(`)
	jsonTypeCallPattern = regexp.MustCompile(`(?i)\sjson_type\(`)
	globPattern         = regexp.MustCompile(`(?i) glob `)
	tableXInfoPattern   = regexp.MustCompile(`^PRAGMA table_xinfo\((.+)\)`)
	tableInfoBracket    = regexp.MustCompile(`^PRAGMA table_info\(\[(.+)]\)`)
)

var rules = []Rule{
	{Name: "date_function", Apply: emptyWhen(func(sql string) bool { return dateCallPattern.MatchString(sql) })},
	{Name: "json_type_function", Apply: emptyWhen(func(sql string) bool { return jsonTypeCallPattern.MatchString(sql) })},
	{Name: "empty_string_literal", Apply: func(sql string) (string, error) {
		return strings.NewReplacer(`<> ""`, `<> ''`, `!= ""`, `!= ''`, `"????-??-*"`, `'????-??-*'`).Replace(sql), nil
	}},
	{Name: "glob_to_like", Warning: "GLOB rewritten to LIKE; pattern semantics differ", Apply: func(sql string) (string, error) {
		return globPattern.ReplaceAllString(sql, " LIKE "), nil
	}},
	{Name: "schema_version", Apply: replaceEqual("PRAGMA schema_version", "SELECT 0")},
	{Name: "geometry_columns_probe", Apply: replaceEqual(`select 1 from sqlite_master where tbl_name = "geometry_columns"`, EmptyResult)},
	{Name: "table_listing", Apply: replaceEqual(`select name from sqlite_master where type="table"`, `select name from sqlite_master where type='table'`)},
	{Name: "explain", Apply: func(sql string) (string, error) {
		if strings.HasPrefix(sql, "explain ") {
			return "", ErrExplainUnsupported
		}
		return sql, nil
	}},
	{Name: "table_xinfo", Apply: func(sql string) (string, error) {
		match := tableXInfoPattern.FindStringSubmatch(sql)
		if match == nil {
			return sql, nil
		}
		return "SELECT *, 0 AS hidden FROM pragma_table_info(" + quoteString(unquoteName(match[1])) + ")", nil
	}},
	{Name: "table_info_brackets", Apply: func(sql string) (string, error) {
		match := tableInfoBracket.FindStringSubmatch(sql)
		if match == nil {
			return sql, nil
		}
		return "PRAGMA table_info(" + quoteIdent(match[1]) + ")", nil
	}},
	{Name: "foreign_key_list", Apply: emptyWhen(prefix("PRAGMA foreign_key_list"))},
	{Name: "index_list", Apply: emptyWhen(prefix("PRAGMA index_list"))},
	{Name: "recursive_triggers", Apply: emptyWhen(prefix("PRAGMA recursive_triggers"))},
	{Name: "fts_probe", Apply: emptyWhen(func(sql string) bool { return strings.Contains(sql, "VIRTUAL TABLE%USING FTS") })},
	{Name: "transpile", Apply: func(sql string) (string, error) {
		if strings.HasPrefix(sql, "PRAGMA") || strings.HasPrefix(sql, "COPY ") || strings.Contains(sql, "from '") {
			return sql, nil
		}
		return Transpile(sql), nil
	}},
}

// Rules returns the rewrite pipeline in application order.
func Rules() []Rule {
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}

// Rewrite runs sql through every rule in order. The rules are plain text
// rewrites, so a later rule sees the output of the earlier ones.
func Rewrite(sql string) (Result, error) {
	result := Result{SQL: sql}
	for _, rule := range rules {
		next, err := rule.Apply(result.SQL)
		if err != nil {
			return Result{}, err
		}
		if next == result.SQL {
			continue
		}
		result.SQL = next
		result.Applied = append(result.Applied, rule.Name)
		if rule.Warning != "" {
			result.Warnings = append(result.Warnings, rule.Warning)
		}
	}
	return result, nil
}

func emptyWhen(match func(string) bool) func(string) (string, error) {
	return func(sql string) (string, error) {
		if match(sql) {
			return EmptyResult, nil
		}
		return sql, nil
	}
}

func replaceEqual(from, to string) func(string) (string, error) {
	return func(sql string) (string, error) {
		if sql == from {
			return to, nil
		}
		return sql, nil
	}
}

func prefix(p string) func(string) bool {
	return func(sql string) bool { return strings.HasPrefix(sql, p) }
}

// unquoteName strips one layer of [..], ".." or '..' quoting from a table name.
func unquoteName(name string) string {
	name = strings.TrimSpace(name)
	if len(name) < 2 {
		return name
	}
	first, last := name[0], name[len(name)-1]
	switch {
	case first == '[' && last == ']':
		return name[1 : len(name)-1]
	case first == '"' && last == '"':
		return strings.ReplaceAll(name[1:len(name)-1], `""`, `"`)
	case first == '\'' && last == '\'':
		return strings.ReplaceAll(name[1:len(name)-1], `''`, `'`)
	}
	return name
}
