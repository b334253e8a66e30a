package lexer

import (
	"strings"
	"unicode"

	"github.com/xplshn/typeof/pkg/config"
	"github.com/xplshn/typeof/pkg/ops"
	"github.com/xplshn/typeof/pkg/token"
)

type Lexer struct {
	source    []rune
	fileIndex int
	pos       int
	line      int
	column    int
	cfg       *config.Config
	ops       *ops.Table

	// Stray collects characters that matched no token and were skipped.
	Stray []token.Token
}

func NewLexer(source []rune, fileIndex int, cfg *config.Config, table *ops.Table) *Lexer {
	if table == nil {
		table = ops.Standard()
	}
	return &Lexer{
		source: source, fileIndex: fileIndex, line: 1, column: 1, cfg: cfg, ops: table,
	}
}

// Tokenize scans the whole source. The trailing EOF token is not included.
func (l *Lexer) Tokenize() []token.Token {
	var toks []token.Token
	for {
		tok := l.Next()
		if tok.Type == token.EOF {
			return toks
		}
		toks = append(toks, tok)
	}
}

func (l *Lexer) Next() token.Token {
	for {
		l.skipWhitespace()
		startPos, startCol, startLine := l.pos, l.column, l.line

		if l.isAtEnd() {
			return l.makeToken(token.EOF, "", startPos, startCol, startLine)
		}

		ch := l.peek()
		if isIdentStart(ch) {
			return l.identifierOrWordOp(startPos, startCol, startLine)
		}
		if unicode.IsDigit(ch) || (ch == '.' && unicode.IsDigit(l.peekNext())) {
			return l.numberLiteral(startPos, startCol, startLine)
		}
		if ch == '.' && isIdentStart(l.peekNext()) {
			l.advance()
			return l.makeToken(token.Dot, ".", startPos, startCol, startLine)
		}
		if ch == '-' && l.peekNext() == '>' {
			l.advance()
			l.advance()
			return l.makeToken(token.Arrow, "->", startPos, startCol, startLine)
		}

		if info, ok := l.ops.Match(l.source, l.pos); ok {
			for range []rune(info.Lexeme) {
				l.advance()
			}
			return l.makeToken(token.Operator, info.Lexeme, startPos, startCol, startLine)
		}

		l.advance()
		l.Stray = append(l.Stray, l.makeToken(token.EOF, string(ch), startPos, startCol, startLine))
	}
}

func (l *Lexer) peek() rune {
	if l.isAtEnd() {
		return 0
	}
	return l.source[l.pos]
}

func (l *Lexer) peekNext() rune {
	if l.pos+1 >= len(l.source) {
		return 0
	}
	return l.source[l.pos+1]
}

func (l *Lexer) peekAt(offset int) rune {
	if l.pos+offset >= len(l.source) {
		return 0
	}
	return l.source[l.pos+offset]
}

func (l *Lexer) advance() rune {
	if l.isAtEnd() {
		return 0
	}
	ch := l.source[l.pos]
	if ch == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}
	l.pos++
	return ch
}

func (l *Lexer) isAtEnd() bool { return l.pos >= len(l.source) }

func (l *Lexer) makeToken(tokType token.Type, value string, startPos, startCol, startLine int) token.Token {
	return token.Token{
		Type: tokType, Value: value, FileIndex: l.fileIndex,
		Line: startLine, Column: startCol, Len: l.pos - startPos,
	}
}

func (l *Lexer) skipWhitespace() {
	for {
		switch l.peek() {
		case ' ', '\t', '\n', '\r', '\v', '\f':
			l.advance()
		default:
			return
		}
	}
}

func isIdentStart(r rune) bool { return unicode.IsLetter(r) || r == '_' }
func isIdentPart(r rune) bool  { return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' }

func (l *Lexer) identifierOrWordOp(startPos, startCol, startLine int) token.Token {
	l.scanIdent()
	value := string(l.source[startPos:l.pos])

	if info, ok := l.ops.Lookup(value); ok && ops.IsWord(value) {
		return l.makeToken(token.Operator, info.Lexeme, startPos, startCol, startLine)
	}

	if l.cfg.IsFeatureEnabled(config.FeatMemberAccess) {
		parts := []string{value}
		for l.peek() == ':' && l.peekNext() == ':' && isIdentStart(l.peekAt(2)) {
			l.advance()
			l.advance()
			partStart := l.pos
			l.scanIdent()
			parts = append(parts, string(l.source[partStart:l.pos]))
		}
		value = strings.Join(parts, "::")
	}
	return l.makeToken(token.Ident, value, startPos, startCol, startLine)
}

func (l *Lexer) scanIdent() {
	for isIdentPart(l.peek()) {
		l.advance()
	}
}

func (l *Lexer) numberLiteral(startPos, startCol, startLine int) token.Token {
	isFloat, isHex := false, false
	if l.peek() == '.' {
		isFloat = true
		l.advance()
	}

	if l.peek() == '0' && (l.peekNext() == 'x' || l.peekNext() == 'X') {
		isHex = true
		l.advance()
		l.advance()
		for unicode.IsDigit(l.peek()) || (l.peek() >= 'a' && l.peek() <= 'f') || (l.peek() >= 'A' && l.peek() <= 'F') {
			l.advance()
		}
	} else {
		for unicode.IsDigit(l.peek()) {
			l.advance()
		}
	}

	if !isHex && !isFloat && l.peek() == '.' && !l.isAccessor() {
		isFloat = true
		l.advance()
		for unicode.IsDigit(l.peek()) {
			l.advance()
		}
	}

	if !isHex && (l.peek() == 'e' || l.peek() == 'E') {
		sign := 0
		if l.peekNext() == '+' || l.peekNext() == '-' {
			sign = 1
		}
		if unicode.IsDigit(l.peekAt(1 + sign)) {
			isFloat = true
			for i := 0; i <= sign; i++ {
				l.advance()
			}
			for unicode.IsDigit(l.peek()) {
				l.advance()
			}
		}
	}

	for {
		switch l.peek() {
		case 'u', 'U', 'l', 'L':
			l.advance()
			continue
		case 'f', 'F':
			if !isHex {
				isFloat = true
				l.advance()
				continue
			}
		}
		break
	}

	value := string(l.source[startPos:l.pos])
	if isFloat {
		return l.makeToken(token.FloatNumber, value, startPos, startCol, startLine)
	}
	return l.makeToken(token.Number, value, startPos, startCol, startLine)
}

// isAccessor reports whether the '.' under the cursor starts a member access
// rather than a fraction. Only dialects with accessor-dot make the distinction.
func (l *Lexer) isAccessor() bool {
	return l.cfg.IsFeatureEnabled(config.FeatAccessorDot) && isIdentStart(l.peekNext())
}
