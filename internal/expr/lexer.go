package expr

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// SyntaxError reports a lexical or grammatical problem in an expression.
type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at offset %d: %s", e.Pos, e.Msg)
}

// lexer scans an expression source into tokens.
type lexer struct {
	src    string
	start  int // start index of current token
	cur    int // current index
	tokens []Token
}

// Lex tokenizes src. The returned slice always ends with an EOF token.
func Lex(src string) ([]Token, error) {
	l := &lexer{src: src}
	for {
		l.skipWhitespace()
		if l.isAtEnd() {
			l.add(EOF, "")
			return l.tokens, nil
		}
		if err := l.scanToken(); err != nil {
			return nil, err
		}
	}
}

func (l *lexer) isAtEnd() bool { return l.cur >= len(l.src) }

func (l *lexer) peek() byte {
	if l.isAtEnd() {
		return 0
	}
	return l.src[l.cur]
}

func (l *lexer) peekN(n int) byte {
	if l.cur+n >= len(l.src) {
		return 0
	}
	return l.src[l.cur+n]
}

func (l *lexer) add(tt TokenType, text string) {
	l.tokens = append(l.tokens, Token{Type: tt, Lexeme: l.src[l.start:l.cur], Text: text, Pos: l.start})
	l.start = l.cur
}

func (l *lexer) err(msg string) error {
	return &SyntaxError{Pos: l.start, Msg: msg}
}

func (l *lexer) skipWhitespace() {
	for !l.isAtEnd() {
		switch l.peek() {
		case ' ', '\t', '\r', '\n':
			l.cur++
		default:
			l.start = l.cur
			return
		}
	}
	l.start = l.cur
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
func isIdentStart(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || b == '_' || b == '$' || b >= utf8.RuneSelf
}
func isIdentPart(b byte) bool { return isIdentStart(b) || isDigit(b) }

func (l *lexer) scanToken() error {
	ch := l.src[l.cur]
	l.cur++

	two := func(next byte, ifTwo, ifOne TokenType) {
		if l.peek() == next {
			l.cur++
			l.add(ifTwo, "")
			return
		}
		l.add(ifOne, "")
	}

	switch ch {
	case '(':
		l.add(LPAREN, "")
	case ')':
		l.add(RPAREN, "")
	case '[':
		l.add(LBRACKET, "")
	case ']':
		l.add(RBRACKET, "")
	case ',':
		l.add(COMMA, "")
	case ';':
		l.add(SEMICOLON, "")
	case ':':
		l.add(COLON, "")
	case '+':
		l.add(PLUS, "")
	case '*':
		l.add(MULT, "")
	case '/':
		l.add(DIV, "")
	case '%':
		l.add(MOD, "")
	case '?':
		two(':', ELVIS, QUESTION)
	case '-':
		two('>', ARROW, MINUS)
	case '=':
		two('=', EQ, ASSIGN)
	case '!':
		two('=', NEQ, NOT)
	case '<':
		two('=', LESS_EQ, LESS)
	case '>':
		two('=', GREATER_EQ, GREATER)
	case '&':
		if l.peek() != '&' {
			return l.err("expected '&&'")
		}
		l.cur++
		l.add(AND, "")
	case '|':
		if l.peek() != '|' {
			return l.err("expected '||'")
		}
		l.cur++
		l.add(OR, "")
	case '"', '\'':
		s, err := l.scanString(ch)
		if err != nil {
			return err
		}
		l.add(STRING, s)
	case '.':
		if isDigit(l.peek()) {
			l.cur--
			return l.scanNumber()
		}
		l.add(PERIOD, "")
	default:
		switch {
		case isDigit(ch):
			l.cur--
			return l.scanNumber()
		case isIdentStart(ch):
			for !l.isAtEnd() && isIdentPart(l.peek()) {
				l.cur++
			}
			word := l.src[l.start:l.cur]
			if tt, ok := keywords[word]; ok {
				l.add(tt, word)
				return nil
			}
			l.add(IDENT, word)
		default:
			return l.err(fmt.Sprintf("unexpected character %q", ch))
		}
	}
	return nil
}

// scanNumber reads [0-9]*(.[0-9]+)?([eE][+-]?[0-9]+)?
func (l *lexer) scanNumber() error {
	for isDigit(l.peek()) {
		l.cur++
	}
	if l.peek() == '.' && isDigit(l.peekN(1)) {
		l.cur++
		for isDigit(l.peek()) {
			l.cur++
		}
	}
	if c := l.peek(); c == 'e' || c == 'E' {
		n := 1
		if s := l.peekN(1); s == '+' || s == '-' {
			n = 2
		}
		if isDigit(l.peekN(n)) {
			l.cur += n
			for isDigit(l.peek()) {
				l.cur++
			}
		}
	}
	if isIdentStart(l.peek()) {
		return l.err(fmt.Sprintf("malformed number %q", l.src[l.start:l.cur+1]))
	}
	l.add(NUMBER, l.src[l.start:l.cur])
	return nil
}

// scanString reads a quoted literal with JSON-style escapes.
func (l *lexer) scanString(quote byte) (string, error) {
	var b strings.Builder
	for !l.isAtEnd() {
		ch := l.src[l.cur]
		l.cur++
		if ch == quote {
			return b.String(), nil
		}
		if ch != '\\' {
			b.WriteByte(ch)
			continue
		}
		if l.isAtEnd() {
			break
		}
		esc := l.src[l.cur]
		l.cur++
		switch esc {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'u':
			if l.cur+4 > len(l.src) {
				return "", l.err("unicode escape was not terminated (expect 4 hex digits)")
			}
			r, err := strconv.ParseUint(l.src[l.cur:l.cur+4], 16, 32)
			if err != nil {
				return "", l.err("invalid unicode escape")
			}
			l.cur += 4
			b.WriteRune(rune(r))
		case '\\', '\'', '"':
			b.WriteByte(esc)
		default:
			// Unknown escapes keep their backslash so regex classes such
			// as \d and \s reach the regex engine intact.
			b.WriteByte('\\')
			b.WriteByte(esc)
		}
	}
	return "", l.err("string was not terminated")
}
