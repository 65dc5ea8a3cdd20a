package rewrite

import (
	"strings"
)

// Transpile rewrites SQLite-only syntax in sql into its DuckDB form. Literals,
// double-quoted identifiers, comments and placeholders are copied unchanged,
// and transpiling already transpiled text leaves it as is.
func Transpile(sql string) string {
	return renderTokens(Scan(sql))
}

func renderTokens(tokens []Token) string {
	var out strings.Builder
	for i := 0; i < len(tokens); i++ {
		token := tokens[i]
		switch token.Kind {
		case BracketIdent:
			out.WriteString(quoteIdent(strings.TrimSuffix(strings.TrimPrefix(token.Value, "["), "]")))
		case BacktickIdent:
			inner := strings.TrimSuffix(strings.TrimPrefix(token.Value, "`"), "`")
			out.WriteString(quoteIdent(strings.ReplaceAll(inner, "``", "`")))
		case Operator:
			if token.Value == "==" {
				out.WriteString("=")
				continue
			}
			out.WriteString(token.Value)
		case Word:
			if rendered, consumed, ok := renderFunction(tokens, i); ok {
				out.WriteString(rendered)
				i = consumed
				continue
			}
			out.WriteString(token.Value)
		default:
			out.WriteString(token.Value)
		}
	}
	return out.String()
}

// renderFunction handles calls whose DuckDB spelling differs from SQLite's.
// It returns the rendered call and the index of its closing parenthesis.
func renderFunction(tokens []Token, index int) (string, int, bool) {
	name := strings.ToLower(tokens[index].Value)
	if name != "group_concat" && name != "strftime" {
		return "", 0, false
	}
	open := skipWhitespace(tokens, index+1)
	if open >= len(tokens) || tokens[open].Value != "(" {
		return "", 0, false
	}
	args, closing, ok := splitArguments(tokens, open)
	if !ok {
		return "", 0, false
	}

	rendered := make([]string, 0, len(args))
	for _, arg := range args {
		rendered = append(rendered, strings.TrimSpace(renderTokens(arg)))
	}

	switch name {
	case "group_concat":
		switch len(rendered) {
		case 1:
			return "string_agg(" + rendered[0] + ", ',')", closing, true
		case 2:
			return "string_agg(" + rendered[0] + ", " + rendered[1] + ")", closing, true
		}
	case "strftime":
		// SQLite takes the format first; DuckDB takes it second.
		if len(args) == 2 && isSingleString(args[0]) {
			return tokens[index].Value + "(CAST(" + rendered[1] + " AS TIMESTAMP), " + rendered[0] + ")", closing, true
		}
	}
	return "", 0, false
}

// splitArguments splits the tokens between the parenthesis at open and its
// match into top-level comma separated arguments.
func splitArguments(tokens []Token, open int) ([][]Token, int, bool) {
	depth := 0
	start := open + 1
	args := make([][]Token, 0, 2)
	for i := open; i < len(tokens); i++ {
		if tokens[i].Kind != Punct {
			continue
		}
		switch tokens[i].Value {
		case "(":
			depth++
		case ")":
			depth--
			if depth == 0 {
				if i > start || len(args) > 0 {
					args = append(args, tokens[start:i])
				}
				return args, i, true
			}
		case ",":
			if depth == 1 {
				args = append(args, tokens[start:i])
				start = i + 1
			}
		}
	}
	return nil, 0, false
}

func skipWhitespace(tokens []Token, index int) int {
	for index < len(tokens) && (tokens[index].Kind == Whitespace || tokens[index].Kind == Comment) {
		index++
	}
	return index
}

func isSingleString(arg []Token) bool {
	found := false
	for _, token := range arg {
		switch token.Kind {
		case Whitespace, Comment:
		case String:
			if found {
				return false
			}
			found = true
		default:
			return false
		}
	}
	return found
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func quoteString(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}
