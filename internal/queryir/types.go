package queryir

import "github.com/epimorphics/dclib-sub000/internal/rdf"

// Query is an abstract graph query. *Select is the only implementation.
type Query interface {
	queryNode() // Marker method - seals interface to this package
}

// Term is a position of a triple pattern: a *Variable or a *Constant.
type Term interface {
	termNode() // Marker method - seals interface to this package
}

// Predicate is a filter over solutions: *Equals, *NotEquals or *And.
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Variable is a named query variable.
type Variable struct {
	Name string
}

func (*Variable) termNode() {}

// Var returns the variable name.
func Var(name string) *Variable { return &Variable{Name: name} }

// Constant matches exactly one node.
type Constant struct {
	Node rdf.Node
}

func (*Constant) termNode() {}

// Const returns a constant term for n.
func Const(n rdf.Node) *Constant { return &Constant{Node: n} }

// Pattern is a triple pattern.
type Pattern struct {
	S, P, O Term
}

// Select matches the conjunction of Patterns, keeps the solutions
// satisfying Filter and returns the Project variables.
//
// Solutions are distinct and ordered by the projected variables.
type Select struct {
	Patterns []Pattern
	Filter   Predicate // nil = no filter
	Project  []string
	Limit    int // 0 = no limit
}

func (*Select) queryNode() {}

// Equals requires a variable to be bound to a node.
type Equals struct {
	Var   string
	Value rdf.Node
}

func (*Equals) predicateNode() {}

// NotEquals requires a variable not to be bound to a node.
type NotEquals struct {
	Var   string
	Value rdf.Node
}

func (*NotEquals) predicateNode() {}

// And is a conjunction; an empty And is always true.
type And struct {
	Predicates []Predicate
}

func (*And) predicateNode() {}

// Solution maps projected variable names to nodes.
type Solution map[string]rdf.Node

// Vars returns the variables of q's patterns in first-use order.
func (q *Select) Vars() []string {
	var out []string
	seen := make(map[string]bool)
	for _, p := range q.Patterns {
		for _, t := range []Term{p.S, p.P, p.O} {
			if v, ok := t.(*Variable); ok && !seen[v.Name] {
				seen[v.Name] = true
				out = append(out, v.Name)
			}
		}
	}
	return out
}
