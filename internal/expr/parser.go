package expr

import (
	"fmt"

	"github.com/epimorphics/dclib-sub000/internal/value"
)

// Binding powers, weakest first.
const (
	bpNone    = 0
	bpTernary = 10
	bpOr      = 20
	bpAnd     = 30
	bpEquals  = 40
	bpCompare = 50
	bpSum     = 60
	bpProduct = 70
	bpPrefix  = 80
	bpPostfix = 90
)

func lbp(t TokenType) (int, bool) {
	switch t {
	case QUESTION, ELVIS:
		return bpTernary, true
	case OR:
		return bpOr, true
	case AND:
		return bpAnd, true
	case EQ, NEQ:
		return bpEquals, true
	case LESS, LESS_EQ, GREATER, GREATER_EQ:
		return bpCompare, true
	case PLUS, MINUS:
		return bpSum, true
	case MULT, DIV, MOD:
		return bpProduct, true
	case PERIOD, LPAREN, LBRACKET:
		return bpPostfix, true
	default:
		return 0, false
	}
}

type parser struct {
	toks []Token
	i    int
}

// Parse compiles src. With script set, src is a ';'-separated statement
// sequence that may assign names; otherwise it must be a single expression.
func Parse(src string, script bool) (*Program, error) {
	toks, err := Lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	prog := &Program{Source: src, Script: script}

	for p.peek().Type != EOF {
		stmt, err := p.statement(script)
		if err != nil {
			return nil, err
		}
		prog.Stmts = append(prog.Stmts, stmt)

		if !script {
			if t := p.peek(); t.Type != EOF {
				return nil, p.errAt(t, fmt.Sprintf("unexpected %s after expression", t.Type))
			}
			break
		}
		if !p.match(SEMICOLON) {
			if t := p.peek(); t.Type != EOF {
				return nil, p.errAt(t, fmt.Sprintf("expected ';' but got %s", t.Type))
			}
		}
		for p.match(SEMICOLON) {
		}
	}
	if len(prog.Stmts) == 0 {
		return nil, &SyntaxError{Pos: 0, Msg: "empty expression"}
	}
	return prog, nil
}

func (p *parser) peek() Token { return p.toks[p.i] }

func (p *parser) peekAt(n int) Token {
	if p.i+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.i+n]
}

func (p *parser) next() Token {
	t := p.toks[p.i]
	if t.Type != EOF {
		p.i++
	}
	return t
}

func (p *parser) match(tt TokenType) bool {
	if p.peek().Type == tt {
		p.i++
		return true
	}
	return false
}

func (p *parser) need(tt TokenType, context string) (Token, error) {
	t := p.peek()
	if t.Type != tt {
		return t, p.errAt(t, fmt.Sprintf("expected %s %s but got %s", tt, context, t.Type))
	}
	p.i++
	return t, nil
}

func (p *parser) errAt(t Token, msg string) error {
	return &SyntaxError{Pos: t.Pos, Msg: msg}
}

func (p *parser) statement(script bool) (Node, error) {
	t := p.peek()
	if t.Type == VAR || (t.Type == IDENT && p.peekAt(1).Type == ASSIGN) {
		if !script {
			return nil, p.errAt(t, "assignment is only allowed in script blocks")
		}
		if t.Type == VAR {
			p.next()
		}
		name, err := p.need(IDENT, "in assignment")
		if err != nil {
			return nil, err
		}
		if _, err := p.need(ASSIGN, "in assignment"); err != nil {
			return nil, err
		}
		x, err := p.expr(bpNone)
		if err != nil {
			return nil, err
		}
		return &Assign{At: t.Pos, Name: name.Lexeme, X: x}, nil
	}
	return p.expr(bpNone)
}

func (p *parser) expr(minBP int) (Node, error) {
	left, err := p.nud()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		bp, ok := lbp(t.Type)
		if !ok || bp <= minBP {
			return left, nil
		}
		p.next()
		left, err = p.led(t, bp, left)
		if err != nil {
			return nil, err
		}
	}
}

func (p *parser) nud() (Node, error) {
	t := p.next()
	switch t.Type {
	case NUMBER:
		n, ok := value.ParseNumber(t.Lexeme)
		if !ok {
			return nil, p.errAt(t, fmt.Sprintf("malformed number %q", t.Lexeme))
		}
		return &Literal{At: t.Pos, Val: n}, nil
	case STRING:
		return &Literal{At: t.Pos, Val: value.Str(t.Text)}, nil
	case TRUE:
		return &Literal{At: t.Pos, Val: value.Bool(true)}, nil
	case FALSE:
		return &Literal{At: t.Pos, Val: value.Bool(false)}, nil
	case NULL:
		return &Literal{At: t.Pos, Val: value.Null{}}, nil
	case IDENT:
		if p.peek().Type == ARROW {
			p.next()
			body, err := p.expr(bpNone)
			if err != nil {
				return nil, err
			}
			return &Lambda{At: t.Pos, Params: []string{t.Lexeme}, Body: body}, nil
		}
		return &Ident{At: t.Pos, Name: t.Lexeme}, nil
	case LPAREN:
		if params, ok := p.lambdaParams(); ok {
			body, err := p.expr(bpNone)
			if err != nil {
				return nil, err
			}
			return &Lambda{At: t.Pos, Params: params, Body: body}, nil
		}
		x, err := p.expr(bpNone)
		if err != nil {
			return nil, err
		}
		if _, err := p.need(RPAREN, "to close group"); err != nil {
			return nil, err
		}
		return x, nil
	case LBRACKET:
		elems, err := p.list(RBRACKET)
		if err != nil {
			return nil, err
		}
		return &ArrayLit{At: t.Pos, Elems: elems}, nil
	case MINUS, NOT:
		x, err := p.expr(bpPrefix)
		if err != nil {
			return nil, err
		}
		return &Unary{At: t.Pos, Op: t.Type, X: x}, nil
	default:
		return nil, p.errAt(t, fmt.Sprintf("unexpected %s", t.Type))
	}
}

func (p *parser) led(t Token, bp int, left Node) (Node, error) {
	switch t.Type {
	case QUESTION:
		then, err := p.expr(bpNone)
		if err != nil {
			return nil, err
		}
		if _, err := p.need(COLON, "in conditional"); err != nil {
			return nil, err
		}
		els, err := p.expr(bp - 1)
		if err != nil {
			return nil, err
		}
		return &Ternary{At: t.Pos, Cond: left, Then: then, Else: els}, nil
	case ELVIS:
		other, err := p.expr(bp - 1)
		if err != nil {
			return nil, err
		}
		return &Elvis{At: t.Pos, X: left, Other: other}, nil
	case PERIOD:
		name, err := p.need(IDENT, "after '.'")
		if err != nil {
			return nil, err
		}
		if p.match(LPAREN) {
			args, err := p.list(RPAREN)
			if err != nil {
				return nil, err
			}
			return &MethodCall{At: name.Pos, X: left, Name: name.Lexeme, Args: args}, nil
		}
		return &Member{At: name.Pos, X: left, Name: name.Lexeme}, nil
	case LPAREN:
		args, err := p.list(RPAREN)
		if err != nil {
			return nil, err
		}
		return &Call{At: t.Pos, Fn: left, Args: args}, nil
	case LBRACKET:
		idx, err := p.expr(bpNone)
		if err != nil {
			return nil, err
		}
		if _, err := p.need(RBRACKET, "to close index"); err != nil {
			return nil, err
		}
		return &Index{At: t.Pos, X: left, I: idx}, nil
	default:
		right, err := p.expr(bp)
		if err != nil {
			return nil, err
		}
		return &Binary{At: t.Pos, Op: t.Type, L: left, R: right}, nil
	}
}

// list parses comma-separated expressions up to and including end.
func (p *parser) list(end TokenType) ([]Node, error) {
	var out []Node
	if p.match(end) {
		return out, nil
	}
	for {
		x, err := p.expr(bpNone)
		if err != nil {
			return nil, err
		}
		out = append(out, x)
		if p.match(COMMA) {
			continue
		}
		if _, err := p.need(end, "to close list"); err != nil {
			return nil, err
		}
		return out, nil
	}
}

// lambdaParams recognizes "(a, b) ->" after an opening paren and consumes
// it. It leaves the parser untouched when the group is not a parameter list.
func (p *parser) lambdaParams() ([]string, bool) {
	var params []string
	j := 0
	if p.peekAt(j).Type != RPAREN {
		for {
			t := p.peekAt(j)
			if t.Type != IDENT {
				return nil, false
			}
			params = append(params, t.Lexeme)
			j++
			if p.peekAt(j).Type == COMMA {
				j++
				continue
			}
			break
		}
	}
	if p.peekAt(j).Type != RPAREN || p.peekAt(j+1).Type != ARROW {
		return nil, false
	}
	p.i += j + 2
	return params, true
}
