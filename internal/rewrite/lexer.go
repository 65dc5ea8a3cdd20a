package rewrite

// TokenKind classifies a Token.
type TokenKind int

const (
	Whitespace    TokenKind = iota // spaces, tabs and newlines
	Comment                        // -- line or /* block */ comment
	Word                           // keyword, function name or bare identifier
	Number                         // numeric literal
	String                         // 'single quoted' literal
	QuotedIdent                    // "double quoted" identifier
	BracketIdent                   // [bracketed] identifier
	BacktickIdent                  // `backticked` identifier
	Param                          // ?, ?N, $N, :name or @name placeholder
	Operator                       // operator such as ==, <> or ::
	Punct                          // parentheses, commas and semicolons
)

// Token is a lexical unit of a SQL statement. Value holds the exact source
// text, so concatenating all tokens reproduces the statement.
type Token struct {
	Kind  TokenKind
	Value string
}

// Scan splits a SQL statement into tokens without interpreting it.
// Unterminated literals run to the end of input.
func Scan(sql string) []Token {
	lexer := &lexer{sql: sql}
	tokens := make([]Token, 0, len(sql)/4)
	for lexer.position < len(sql) {
		tokens = append(tokens, lexer.next())
	}
	return tokens
}

type lexer struct {
	sql      string
	position int
}

func (l *lexer) peek(offset int) byte {
	index := l.position + offset
	if index >= len(l.sql) {
		return 0
	}
	return l.sql[index]
}

func (l *lexer) emit(kind TokenKind, start int) Token {
	return Token{Kind: kind, Value: l.sql[start:l.position]}
}

func (l *lexer) next() Token {
	start := l.position
	ch := l.peek(0)

	switch {
	case isSpace(ch):
		for isSpace(l.peek(0)) {
			l.position++
		}
		return l.emit(Whitespace, start)
	case ch == '-' && l.peek(1) == '-':
		for l.position < len(l.sql) && l.peek(0) != '\n' {
			l.position++
		}
		return l.emit(Comment, start)
	case ch == '/' && l.peek(1) == '*':
		l.position += 2
		for l.position < len(l.sql) && !(l.peek(0) == '*' && l.peek(1) == '/') {
			l.position++
		}
		l.position = min(l.position+2, len(l.sql))
		return l.emit(Comment, start)
	case ch == '\'':
		l.readQuoted('\'')
		return l.emit(String, start)
	case ch == '"':
		l.readQuoted('"')
		return l.emit(QuotedIdent, start)
	case ch == '`':
		l.readQuoted('`')
		return l.emit(BacktickIdent, start)
	case ch == '[':
		l.position++
		for l.position < len(l.sql) && l.peek(0) != ']' {
			l.position++
		}
		l.position = min(l.position+1, len(l.sql))
		return l.emit(BracketIdent, start)
	case ch == ':' && isIdentStart(l.peek(1)):
		l.position++
		l.readWord()
		return l.emit(Param, start)
	case (ch == '$' || ch == '?') && isIdentPart(l.peek(1)):
		l.position++
		l.readWord()
		return l.emit(Param, start)
	case ch == '@' && isIdentStart(l.peek(1)):
		l.position++
		l.readWord()
		return l.emit(Param, start)
	case ch == '?':
		l.position++
		return l.emit(Param, start)
	case isIdentStart(ch):
		l.readWord()
		return l.emit(Word, start)
	case isDigit(ch) || (ch == '.' && isDigit(l.peek(1))):
		l.readNumber()
		return l.emit(Number, start)
	case isOperatorChar(ch):
		l.readOperator()
		return l.emit(Operator, start)
	default:
		l.position++
		return l.emit(Punct, start)
	}
}

// readQuoted consumes a quoted run where a doubled quote character escapes itself.
func (l *lexer) readQuoted(quote byte) {
	l.position++
	for l.position < len(l.sql) {
		if l.peek(0) == quote {
			if l.peek(1) == quote {
				l.position += 2
				continue
			}
			l.position++
			return
		}
		l.position++
	}
}

func (l *lexer) readWord() {
	for isIdentPart(l.peek(0)) {
		l.position++
	}
}

func (l *lexer) readNumber() {
	for isDigit(l.peek(0)) || l.peek(0) == '.' {
		l.position++
	}
	if (l.peek(0) == 'e' || l.peek(0) == 'E') && (isDigit(l.peek(1)) || ((l.peek(1) == '+' || l.peek(1) == '-') && isDigit(l.peek(2)))) {
		l.position += 2
		for isDigit(l.peek(0)) {
			l.position++
		}
	}
}

var operators = []string{"->>", "==", "!=", "<>", "<=", ">=", "||", "::", "->", "<<", ">>"}

func (l *lexer) readOperator() {
	rest := l.sql[l.position:]
	for _, operator := range operators {
		if len(rest) >= len(operator) && rest[:len(operator)] == operator {
			l.position += len(operator)
			return
		}
	}
	l.position++
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' || ch == '\f'
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

func isIdentStart(ch byte) bool {
	return ('a' <= ch && ch <= 'z') || ('A' <= ch && ch <= 'Z') || ch == '_' || ch >= 0x80
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch) || ch == '$'
}

func isOperatorChar(ch byte) bool {
	switch ch {
	case '=', '!', '<', '>', '|', ':', '-', '+', '*', '/', '%', '&', '~':
		return true
	}
	return false
}
