package driver

import (
	"strconv"
	"strings"

	"github.com/duckmesh/duckview/internal/rewrite"
)

// Params binds statement parameters. Use Positional or Named.
type Params interface {
	bind(sql string) (string, []any)
}

// Positional parameters are passed to DuckDB unchanged.
type Positional []any

func (p Positional) bind(sql string) (string, []any) {
	return sql, []any(p)
}

// Named parameters fill :name placeholders. Keys the statement never mentions
// are dropped.
type Named map[string]any

func (n Named) bind(sql string) (string, []any) {
	if len(n) == 0 {
		return sql, nil
	}
	tokens := rewrite.Scan(sql)
	ordinals := make(map[string]int)
	args := make([]any, 0, len(n))

	var out strings.Builder
	out.Grow(len(sql))
	for _, token := range tokens {
		if token.Kind != rewrite.Param || !strings.HasPrefix(token.Value, ":") {
			out.WriteString(token.Value)
			continue
		}
		name := token.Value[1:]
		value, ok := n[name]
		if !ok {
			out.WriteString(token.Value)
			continue
		}
		ordinal, seen := ordinals[name]
		if !seen {
			args = append(args, value)
			ordinal = len(args)
			ordinals[name] = ordinal
		}
		out.WriteString("$" + strconv.Itoa(ordinal))
	}
	return out.String(), args
}

// bindParams applies params to an already rewritten statement. EmptyResult
// never takes parameters, whatever the original statement expected.
func bindParams(sql string, params Params) (string, []any) {
	if sql == rewrite.EmptyResult || params == nil {
		return sql, nil
	}
	return params.bind(sql)
}
