package expr

import "github.com/epimorphics/dclib-sub000/internal/value"

// Node is an expression tree node. It is sealed: only this package
// provides implementations.
type Node interface {
	Pos() int
	node()
}

// Literal is a constant.
type Literal struct {
	At  int
	Val value.Value
}

// Ident references a binding.
type Ident struct {
	At   int
	Name string
}

// Unary is a prefix operator application.
type Unary struct {
	At int
	Op TokenType
	X  Node
}

// Binary is an infix operator application, including && and ||.
type Binary struct {
	At   int
	Op   TokenType
	L, R Node
}

// Ternary is cond ? then : else.
type Ternary struct {
	At               int
	Cond, Then, Else Node
}

// Elvis is x ?: fallback.
type Elvis struct {
	At       int
	X, Other Node
}

// Member is x.name, a method invocation with no arguments.
type Member struct {
	At   int
	X    Node
	Name string
}

// MethodCall is x.name(args).
type MethodCall struct {
	At   int
	X    Node
	Name string
	Args []Node
}

// Call is f(args) for a builtin or a bound function value.
type Call struct {
	At   int
	Fn   Node
	Args []Node
}

// Index is x[i].
type Index struct {
	At   int
	X, I Node
}

// ArrayLit is [a, b, ...].
type ArrayLit struct {
	At    int
	Elems []Node
}

// Lambda is (params) -> body.
type Lambda struct {
	At     int
	Params []string
	Body   Node
}

// Assign is name = x, only valid as a script statement.
type Assign struct {
	At   int
	Name string
	X    Node
}

func (n *Literal) Pos() int    { return n.At }
func (n *Ident) Pos() int      { return n.At }
func (n *Unary) Pos() int      { return n.At }
func (n *Binary) Pos() int     { return n.At }
func (n *Ternary) Pos() int    { return n.At }
func (n *Elvis) Pos() int      { return n.At }
func (n *Member) Pos() int     { return n.At }
func (n *MethodCall) Pos() int { return n.At }
func (n *Call) Pos() int       { return n.At }
func (n *Index) Pos() int      { return n.At }
func (n *ArrayLit) Pos() int   { return n.At }
func (n *Lambda) Pos() int     { return n.At }
func (n *Assign) Pos() int     { return n.At }

func (*Literal) node()    {}
func (*Ident) node()      {}
func (*Unary) node()      {}
func (*Binary) node()     {}
func (*Ternary) node()    {}
func (*Elvis) node()      {}
func (*Member) node()     {}
func (*MethodCall) node() {}
func (*Call) node()       {}
func (*Index) node()      {}
func (*ArrayLit) node()   {}
func (*Lambda) node()     {}
func (*Assign) node()     {}

// Program is a compiled expression or script. A script is a sequence of
// statements whose value is the value of the last one; an expression has
// exactly one statement and no assignments.
type Program struct {
	Source string
	Script bool
	Stmts  []Node
}

// Names returns every identifier the program reads, in first-use order.
// Names assigned inside a script before use are excluded.
func (p *Program) Names() []string {
	var out []string
	seen := make(map[string]bool)
	local := make(map[string]bool)

	var walk func(n Node)
	walk = func(n Node) {
		switch t := n.(type) {
		case *Ident:
			if !seen[t.Name] && !local[t.Name] {
				seen[t.Name] = true
				out = append(out, t.Name)
			}
		case *Unary:
			walk(t.X)
		case *Binary:
			walk(t.L)
			walk(t.R)
		case *Ternary:
			walk(t.Cond)
			walk(t.Then)
			walk(t.Else)
		case *Elvis:
			walk(t.X)
			walk(t.Other)
		case *Member:
			walk(t.X)
		case *MethodCall:
			walk(t.X)
			for _, a := range t.Args {
				walk(a)
			}
		case *Call:
			if _, ok := t.Fn.(*Ident); !ok {
				walk(t.Fn)
			}
			for _, a := range t.Args {
				walk(a)
			}
		case *Index:
			walk(t.X)
			walk(t.I)
		case *ArrayLit:
			for _, e := range t.Elems {
				walk(e)
			}
		case *Lambda:
			for _, p := range t.Params {
				local[p] = true
			}
			walk(t.Body)
		case *Assign:
			walk(t.X)
			local[t.Name] = true
		}
	}
	for _, s := range p.Stmts {
		walk(s)
	}
	return out
}
