package expr

import (
	"fmt"
	"strings"
	"time"

	"github.com/epimorphics/dclib-sub000/internal/env"
	"github.com/epimorphics/dclib-sub000/internal/rdf"
	"github.com/epimorphics/dclib-sub000/internal/value"
)

// maxCallDepth bounds nested function value calls.
const maxCallDepth = 256

// IDGenerator produces the identifiers returned by uuid().
type IDGenerator interface {
	Generate() string
}

// Context is everything an evaluation may read. It replaces any notion of
// a "current" conversion: callers pass it explicitly.
type Context struct {
	Env      *env.Env
	Mapper   value.Mapper
	Prefixes *rdf.PrefixMap
	IDs      IDGenerator
	Now      time.Time
}

// AbortError is raised by abort(). It is a hard error that halts the run.
type AbortError struct {
	Msg string
}

func (e *AbortError) Error() string {
	if e.Msg == "" {
		return "conversion aborted"
	}
	return "conversion aborted: " + e.Msg
}

// Eval runs prog against ctx.
//
// Expressions read the environment only. Scripts evaluate their statements
// in a private child frame, so assignments are visible to later statements
// of the same script and nowhere else. The result is the value of the last
// statement; an Error value stops a script early.
func Eval(ctx *Context, prog *Program) (value.Value, error) {
	scope := ctx.Env
	if scope == nil {
		scope = env.New()
	}
	if prog.Script {
		scope = scope.Child()
	}

	ev := &evaluator{ctx: ctx}
	var result value.Value = value.Null{}
	for _, stmt := range prog.Stmts {
		v, err := ev.eval(scope, stmt)
		if err != nil {
			return nil, err
		}
		if e, ok := v.(value.Error); ok {
			return e, nil
		}
		result = v
	}
	if result == nil {
		result = value.Null{}
	}
	return result, nil
}

type evaluator struct {
	ctx   *Context
	depth int
}

func (ev *evaluator) eval(scope *env.Env, n Node) (value.Value, error) {
	switch t := n.(type) {
	case *Literal:
		return t.Val, nil

	case *Ident:
		return scope.Get(t.Name), nil

	case *Assign:
		v, err := ev.eval(scope, t.X)
		if err != nil {
			return nil, err
		}
		if _, ok := v.(value.Error); !ok {
			scope.Bind(t.Name, v)
		}
		return v, nil

	case *Unary:
		x, err := ev.eval(scope, t.X)
		if err != nil {
			return nil, err
		}
		if t.Op == NOT {
			if e, ok := x.(value.Error); ok {
				return e, nil
			}
			return value.Bool(!value.Truthy(x)), nil
		}
		return negate(x), nil

	case *Binary:
		return ev.binary(scope, t)

	case *Ternary:
		c, err := ev.eval(scope, t.Cond)
		if err != nil {
			return nil, err
		}
		if e, ok := c.(value.Error); ok {
			return e, nil
		}
		if value.Truthy(c) {
			return ev.eval(scope, t.Then)
		}
		return ev.eval(scope, t.Else)

	case *Elvis:
		x, err := ev.eval(scope, t.X)
		if err != nil && !value.IsNoResult(err) {
			return nil, err
		}
		if err == nil && value.Truthy(x) {
			return x, nil
		}
		return ev.eval(scope, t.Other)

	case *Member:
		recv, err := ev.eval(scope, t.X)
		if err != nil {
			return nil, err
		}
		return ev.callMethod(t.Name, recv, nil)

	case *MethodCall:
		recv, err := ev.eval(scope, t.X)
		if err != nil {
			return nil, err
		}
		args, err := ev.evalArgs(scope, t.Args)
		if err != nil {
			return nil, err
		}
		return ev.callMethod(t.Name, recv, args)

	case *Call:
		return ev.call(scope, t)

	case *Index:
		x, err := ev.eval(scope, t.X)
		if err != nil {
			return nil, err
		}
		i, err := ev.eval(scope, t.I)
		if err != nil {
			return nil, err
		}
		return index(x, i), nil

	case *ArrayLit:
		vals, err := ev.evalArgs(scope, t.Elems)
		if err != nil {
			return nil, err
		}
		kept := make([]value.Value, 0, len(vals))
		for _, v := range vals {
			if e, ok := v.(value.Error); ok {
				return e, nil
			}
			if !v.IsNull() {
				kept = append(kept, v)
			}
		}
		return value.NewArray(kept...), nil

	case *Lambda:
		return value.Function{Name: "lambda", Fn: &closure{ev: ev, scope: scope, lam: t}}, nil

	default:
		return nil, fmt.Errorf("expr: unhandled node %T", n)
	}
}

func (ev *evaluator) evalArgs(scope *env.Env, nodes []Node) ([]value.Value, error) {
	out := make([]value.Value, len(nodes))
	for i, a := range nodes {
		v, err := ev.eval(scope, a)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (ev *evaluator) binary(scope *env.Env, t *Binary) (value.Value, error) {
	l, err := ev.eval(scope, t.L)
	if err != nil {
		return nil, err
	}
	if e, ok := l.(value.Error); ok {
		return e, nil
	}

	// && and || short-circuit.
	switch t.Op {
	case AND:
		if !value.Truthy(l) {
			return value.Bool(false), nil
		}
	case OR:
		if value.Truthy(l) {
			return value.Bool(true), nil
		}
	}

	r, err := ev.eval(scope, t.R)
	if err != nil {
		return nil, err
	}
	if e, ok := r.(value.Error); ok {
		return e, nil
	}

	switch t.Op {
	case AND, OR:
		return value.Bool(value.Truthy(r)), nil
	case EQ:
		return value.Bool(value.Equal(l, r)), nil
	case NEQ:
		return value.Bool(!value.Equal(l, r)), nil
	case LESS, LESS_EQ, GREATER, GREATER_EQ:
		return value.Cross(l, r, comparison(t.Op)), nil
	case PLUS:
		return value.Cross(l, r, plus), nil
	case MINUS:
		return value.Cross(l, r, arithmetic(value.Sub)), nil
	case MULT:
		return value.Cross(l, r, arithmetic(value.Mul)), nil
	case DIV:
		return value.Cross(l, r, arithmetic(value.Div)), nil
	case MOD:
		return value.Cross(l, r, arithmetic(value.Mod)), nil
	default:
		return nil, fmt.Errorf("expr: unhandled operator %s", t.Op)
	}
}

func (ev *evaluator) call(scope *env.Env, t *Call) (value.Value, error) {
	var fn value.Value
	if id, ok := t.Fn.(*Ident); ok {
		bound, isBound := scope.Lookup(id.Name)
		if _, isFn := bound.(value.Function); !isBound || !isFn {
			b, ok := builtins[id.Name]
			if !ok {
				return value.Errorf("unknown function %s", id.Name), nil
			}
			args, err := ev.evalArgs(scope, t.Args)
			if err != nil {
				return nil, err
			}
			if len(args) < b.minArgs || (b.maxArgs >= 0 && len(args) > b.maxArgs) {
				return value.Errorf("%s: wrong number of arguments (%d)", id.Name, len(args)), nil
			}
			return b.fn(ev, args)
		}
		fn = bound
	} else {
		v, err := ev.eval(scope, t.Fn)
		if err != nil {
			return nil, err
		}
		fn = v
	}

	f, ok := fn.(value.Function)
	if !ok {
		return value.Errorf("%s is not a function", value.Describe(fn)), nil
	}
	args, err := ev.evalArgs(scope, t.Args)
	if err != nil {
		return nil, err
	}
	return f.Fn.Call(args)
}

// closure is a lambda bound to the frame it was created in.
type closure struct {
	ev    *evaluator
	scope *env.Env
	lam   *Lambda
}

func (c *closure) Call(args []value.Value) (value.Value, error) {
	if c.ev.depth >= maxCallDepth {
		return value.Fatalf("function call depth exceeded %d", maxCallDepth), nil
	}
	c.ev.depth++
	defer func() { c.ev.depth-- }()

	frame := c.scope.Child()
	for i, p := range c.lam.Params {
		if i < len(args) {
			frame.Bind(p, args[i])
		} else {
			frame.Bind(p, value.Null{})
		}
	}
	return c.ev.eval(frame, c.lam.Body)
}

func negate(x value.Value) value.Value {
	return value.Cross(x, value.Null{}, func(v, _ value.Value) value.Value {
		if v.IsNull() {
			return value.Null{}
		}
		n, ok := numberOf(v)
		if !ok {
			return value.Errorf("cannot negate %s", value.Describe(v))
		}
		return value.Negate(n)
	})
}

// numberOf accepts numbers and numeric strings.
func numberOf(v value.Value) (value.Number, bool) {
	switch t := v.(type) {
	case value.Number:
		return t, true
	case value.String:
		return value.ParseNumber(strings.TrimSpace(t.S))
	default:
		return value.Number{}, false
	}
}

// plus adds numbers and concatenates everything else.
func plus(x, y value.Value) value.Value {
	a, aNum := x.(value.Number)
	b, bNum := y.(value.Number)
	if aNum && bNum {
		return value.Calculate(value.Add, a, b)
	}
	return value.Append(x, y)
}

func arithmetic(op value.Arith) func(x, y value.Value) value.Value {
	return func(x, y value.Value) value.Value {
		if x.IsNull() || y.IsNull() {
			return value.Null{}
		}
		a, ok := numberOf(x)
		if !ok {
			return value.Errorf("%s is not a number", value.Describe(x))
		}
		b, ok := numberOf(y)
		if !ok {
			return value.Errorf("%s is not a number", value.Describe(y))
		}
		return value.Calculate(op, a, b)
	}
}

func comparison(op TokenType) func(x, y value.Value) value.Value {
	return func(x, y value.Value) value.Value {
		if x.IsNull() || y.IsNull() {
			return value.Bool(false)
		}
		c, ok := compareValues(x, y)
		if !ok {
			return value.Errorf("cannot compare %s with %s", value.Describe(x), value.Describe(y))
		}
		switch op {
		case LESS:
			return value.Bool(c < 0)
		case LESS_EQ:
			return value.Bool(c <= 0)
		case GREATER:
			return value.Bool(c > 0)
		default:
			return value.Bool(c >= 0)
		}
	}
}

func compareValues(x, y value.Value) (int, bool) {
	if a, ok := x.(value.Date); ok {
		if b, ok := y.(value.Date); ok {
			return a.T.Compare(b.T), true
		}
		return 0, false
	}
	_, xNum := x.(value.Number)
	_, yNum := y.(value.Number)
	if xNum || yNum {
		a, ok1 := numberOf(x)
		b, ok2 := numberOf(y)
		if !ok1 || !ok2 {
			return 0, false
		}
		return value.Compare(a, b), true
	}
	return strings.Compare(x.String(), y.String()), true
}

func index(x, i value.Value) value.Value {
	if e, ok := x.(value.Error); ok {
		return e
	}
	n, ok := numberOf(i)
	if !ok {
		return value.Errorf("index %s is not a number", value.Describe(i))
	}
	k, ok := n.Int64()
	if !ok {
		return value.Errorf("index %s is not an integer", n)
	}
	arr, isArr := x.(value.Array)
	if !isArr {
		if x.IsNull() {
			return value.Null{}
		}
		arr = value.Array{x}
	}
	if k < 0 {
		k += int64(len(arr))
	}
	if k < 0 || k >= int64(len(arr)) {
		return value.Null{}
	}
	return arr[k]
}
