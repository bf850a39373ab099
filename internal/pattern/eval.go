package pattern

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/epimorphics/dclib-sub000/internal/env"
	"github.com/epimorphics/dclib-sub000/internal/expr"
	"github.com/epimorphics/dclib-sub000/internal/rdf"
	"github.com/epimorphics/dclib-sub000/internal/value"
)

// Reporter receives the data errors met while evaluating patterns.
type Reporter interface {
	Report(e value.Error)
}

// Context is the explicit evaluation context: the binding environment plus
// every collaborator an evaluation may reach. Copy it with WithEnv to
// evaluate in another frame; the collaborators are shared.
type Context struct {
	Env      *env.Env
	Mapper   value.Mapper
	Prefixes *rdf.PrefixMap
	IDs      expr.IDGenerator
	Now      time.Time
	Reporter Reporter
	Blanks   *BlankCache
}

// WithEnv returns a copy of c evaluating in e.
func (c *Context) WithEnv(e *env.Env) *Context {
	cp := *c
	cp.Env = e
	return &cp
}

func (c *Context) exprContext() *expr.Context {
	return &expr.Context{
		Env:      c.Env,
		Mapper:   c.Mapper,
		Prefixes: c.Prefixes,
		IDs:      c.IDs,
		Now:      c.Now,
	}
}

func (c *Context) report(e value.Error) {
	if c.Reporter != nil {
		c.Reporter.Report(e)
	}
}

// CoercionError is raised when a value cannot be turned into the node the
// pattern requires, such as a non-URI string in a "<...>" pattern.
type CoercionError struct {
	Pattern string
	Value   string
	Reason  string
}

func (e *CoercionError) Error() string {
	return fmt.Sprintf("pattern %q: %s (value %q)", e.Pattern, e.Reason, e.Value)
}

// IsCoercionError returns true if err is or wraps a CoercionError.
func IsCoercionError(err error) bool {
	var ce *CoercionError
	return errors.As(err, &ce)
}

// Evaluate computes the pattern's value.
//
// A constant pattern yields its value-converted text. Otherwise components
// are evaluated in order and concatenated; once a component is
// multi-valued the accumulated text seeds an Array and later components
// are combined with value.Append, giving the Cartesian expansion. A null
// component, or an Error value (which is first reported), ends the
// evaluation with no result. Hard errors, such as abort(), are returned.
func (p *Pattern) Evaluate(ctx *Context) (value.Value, error) {
	if p.IsConstant {
		v := p.constantValue()
		if v.IsNull() {
			return nil, value.NoResult("pattern %q is empty", p.Source)
		}
		return v, nil
	}

	if len(p.Components) == 1 {
		v, err := p.component(ctx, p.Components[0])
		if err != nil {
			return nil, err
		}
		return p.settle(ctx, v)
	}

	var text strings.Builder
	var multi value.Value
	for _, c := range p.Components {
		v, err := p.component(ctx, c)
		if err != nil {
			return nil, err
		}
		if v, err = p.settle(ctx, v); err != nil {
			return nil, err
		}
		if multi == nil && !v.IsMulti() {
			text.WriteString(v.String())
			continue
		}
		if multi == nil {
			multi = value.Str(text.String())
		}
		multi = value.Append(multi, v)
	}
	if multi != nil {
		return multi, nil
	}
	return value.Str(text.String()), nil
}

func (p *Pattern) component(ctx *Context, c Component) (value.Value, error) {
	if c.Kind == Text {
		return value.Str(c.Text), nil
	}
	return expr.Eval(ctx.exprContext(), c.Prog)
}

// settle turns Error and Null results into "no result", reporting errors.
func (p *Pattern) settle(ctx *Context, v value.Value) (value.Value, error) {
	switch t := v.(type) {
	case nil:
		return nil, value.NoResult("pattern %q produced nothing", p.Source)
	case value.Error:
		ctx.report(t)
		return nil, value.NoResult("pattern %q: %s", p.Source, t.Msg)
	}
	if v.IsNull() {
		return nil, value.NoResult("pattern %q is null", p.Source)
	}
	return v, nil
}

// EvaluateNodes evaluates the pattern and converts the result to nodes,
// one per element for multi-valued results.
func (p *Pattern) EvaluateNodes(ctx *Context) ([]rdf.Node, error) {
	v, err := p.Evaluate(ctx)
	if err != nil {
		return nil, err
	}
	elems := []value.Value{v}
	if arr, ok := v.(value.Array); ok {
		elems = arr
	}
	out := make([]rdf.Node, 0, len(elems))
	for _, e := range elems {
		n, err := p.ToNode(ctx, e)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// EvaluateNode evaluates a pattern that must yield exactly one node, such
// as a subject. Multi-valued results use their first element.
func (p *Pattern) EvaluateNode(ctx *Context) (rdf.Node, error) {
	nodes, err := p.EvaluateNodes(ctx)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, value.NoResult("pattern %q produced no node", p.Source)
	}
	return nodes[0], nil
}

// ToNode converts one scalar to a node, following the pattern's flags.
//
// Node values pass through, but a literal in a URI pattern is an error.
// In a URI pattern strings must be blank node labels ("_:x") or, after
// prefix expansion, absolute IRIs. Otherwise strings become plain or
// language-tagged literals, numbers typed literals with their lexical
// form, booleans xsd:boolean and dates their tagged datatype.
func (p *Pattern) ToNode(ctx *Context, v value.Value) (rdf.Node, error) {
	if n, ok := v.(value.Node); ok {
		if p.IsURI && n.N.Kind() == rdf.KindLiteral {
			return nil, &CoercionError{Pattern: p.Source, Value: n.N.String(), Reason: "literal where a URI is required"}
		}
		return n.N, nil
	}
	if !p.IsURI {
		n, ok := value.AsNode(v)
		if !ok {
			return nil, &CoercionError{Pattern: p.Source, Value: v.String(), Reason: "cannot convert " + v.Kind().String() + " to a node"}
		}
		return n, nil
	}

	switch v.(type) {
	case value.String, value.Number:
	default:
		return nil, &CoercionError{Pattern: p.Source, Value: v.String(), Reason: "not a URI or blank node"}
	}
	s := strings.TrimSpace(v.String())
	if s == "_:" || rdf.IsBlankLabel(s) {
		return ctx.blank(strings.TrimPrefix(s, "_:")), nil
	}
	s = ctx.Prefixes.Expand(s)
	if !rdf.IsAbsoluteIRI(s) {
		return nil, &CoercionError{Pattern: p.Source, Value: s, Reason: "not an absolute URI"}
	}
	return rdf.NewURI(s), nil
}

func (c *Context) blank(label string) rdf.Blank {
	if c.Blanks == nil {
		c.Blanks = NewBlankCache(nil)
	}
	return c.Blanks.Get(label)
}

// BlankCache gives blank node labels a stable, run-unique identity: the
// same label maps to the same node for the whole run, and the empty label
// always makes a fresh node.
//
// A BlankCache belongs to one run and is not safe for concurrent use.
type BlankCache struct {
	ids   expr.IDGenerator
	nodes map[string]rdf.Blank
	n     int
}

// NewBlankCache creates a cache. With a nil generator labels are numbered
// b1, b2, ...
func NewBlankCache(ids expr.IDGenerator) *BlankCache {
	return &BlankCache{ids: ids, nodes: make(map[string]rdf.Blank)}
}

// Get returns the node for label.
func (b *BlankCache) Get(label string) rdf.Blank {
	if label != "" {
		if n, ok := b.nodes[label]; ok {
			return n
		}
	}
	n := rdf.Blank{ID: b.nextID()}
	if label != "" {
		b.nodes[label] = n
	}
	return n
}

// Len returns the number of labelled nodes.
func (b *BlankCache) Len() int {
	return len(b.nodes)
}

func (b *BlankCache) nextID() string {
	b.n++
	if b.ids == nil {
		return "b" + strconv.Itoa(b.n)
	}
	return "b" + strings.ReplaceAll(b.ids.Generate(), "-", "")
}
