package value

import (
	"errors"
	"fmt"
	"strings"

	"github.com/epimorphics/dclib-sub000/internal/rdf"
)

// ErrNoResult is the recoverable "no result" signal. An expression that
// legitimately produces nothing (a missing optional column, an optional
// lookup miss) returns an error wrapping ErrNoResult. It is swallowed at the
// nearest optional-property boundary and never marks a run failed.
var ErrNoResult = errors.New("no result")

// NoResult returns an ErrNoResult carrying a reason for debug logging.
func NoResult(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNoResult, fmt.Sprintf(format, args...))
}

// IsNoResult reports whether err is (or wraps) ErrNoResult.
func IsNoResult(err error) bool {
	return errors.Is(err, ErrNoResult)
}

// Kind identifies the variant of a Value.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindDate
	KindNode
	KindArray
	KindError
	KindFunction
)

var kindNames = [...]string{"null", "string", "number", "bool", "date", "node", "array", "error", "function"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Value is the tagged union produced by expression evaluation.
//
// This is a sealed interface: only the types in this package implement it.
// Only Array is multi-valued.
type Value interface {
	Kind() Kind
	IsNull() bool
	IsMulti() bool
	String() string
	value()
}

// Null is explicit absence, distinct from a name that is not bound at all.
type Null struct{}

func (Null) Kind() Kind       { return KindNull }
func (Null) IsNull() bool     { return true }
func (Null) IsMulti() bool    { return false }
func (Null) String() string   { return "" }
func (Null) value()           {}

// String is a plain string scalar with an optional language tag.
type String struct {
	S    string
	Lang string
}

// Str creates an untagged String.
func Str(s string) String { return String{S: s} }

func (String) Kind() Kind       { return KindString }
func (String) IsNull() bool     { return false }
func (String) IsMulti() bool    { return false }
func (s String) String() string { return s.S }
func (String) value()           {}

// Bool is a boolean scalar.
type Bool bool

func (Bool) Kind() Kind    { return KindBool }
func (Bool) IsNull() bool  { return false }
func (Bool) IsMulti() bool { return false }
func (b Bool) String() string {
	if b {
		return "true"
	}
	return "false"
}
func (Bool) value() {}

// Node wraps a graph node.
type Node struct {
	N rdf.Node
}

// NodeOf wraps n.
func NodeOf(n rdf.Node) Node { return Node{N: n} }

func (Node) Kind() Kind       { return KindNode }
func (Node) IsNull() bool     { return false }
func (Node) IsMulti() bool    { return false }
func (n Node) String() string { return n.N.Value() }
func (Node) value()           {}

// Array is an ordered multi-valued result. Use NewArray to build one so
// the non-empty invariant holds.
type Array []Value

// NewArray returns an Array of vals, flattening nested arrays one level.
// An empty input yields Null.
func NewArray(vals ...Value) Value {
	out := make(Array, 0, len(vals))
	for _, v := range vals {
		if a, ok := v.(Array); ok {
			out = append(out, a...)
			continue
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return Null{}
	}
	return out
}

func (Array) Kind() Kind    { return KindArray }
func (Array) IsNull() bool  { return false }
func (Array) IsMulti() bool { return true }
func (a Array) String() string {
	parts := make([]string, len(a))
	for i, v := range a {
		parts[i] = v.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
func (Array) value() {}

// Error is a computation failure carried as data. Fatal errors mark the
// enclosing row (and the run) failed; non-fatal ones are warnings.
type Error struct {
	Msg   string
	Fatal bool
}

// Errorf builds a non-fatal Error value.
func Errorf(format string, args ...any) Error {
	return Error{Msg: fmt.Sprintf(format, args...)}
}

// Fatalf builds a fatal Error value.
func Fatalf(format string, args ...any) Error {
	return Error{Msg: fmt.Sprintf(format, args...), Fatal: true}
}

func (Error) Kind() Kind       { return KindError }
func (Error) IsNull() bool     { return false }
func (Error) IsMulti() bool    { return false }
func (e Error) String() string { return e.Msg }
func (Error) value()           {}

// Callable is a deferred expression closure.
type Callable interface {
	Call(args []Value) (Value, error)
}

// Function wraps a Callable so it can be passed around as a Value.
type Function struct {
	Name string
	Fn   Callable
}

func (Function) Kind() Kind       { return KindFunction }
func (Function) IsNull() bool     { return false }
func (Function) IsMulti() bool    { return false }
func (f Function) String() string { return "function " + f.Name }
func (Function) value()           {}

// Truthy reports the boolean interpretation of v used by conditionals:
// null, empty strings, zero and false are false.
func Truthy(v Value) bool {
	switch x := v.(type) {
	case nil, Null:
		return false
	case Bool:
		return bool(x)
	case String:
		return x.S != ""
	case Number:
		return !x.IsZero()
	case Error:
		return false
	default:
		return true
	}
}

// Equal compares two values: numbers numerically, nodes by identity and
// everything else by kind and string form.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if an, ok := a.(Number); ok {
		if bn, ok := b.(Number); ok {
			return Compare(an, bn) == 0
		}
	}
	if an, ok := a.(Node); ok {
		if bn, ok := b.(Node); ok {
			return an.N == bn.N
		}
	}
	if a.IsNull() || b.IsNull() {
		return a.IsNull() && b.IsNull()
	}
	if a.Kind() == KindArray || b.Kind() == KindArray {
		aa, ok1 := a.(Array)
		ba, ok2 := b.(Array)
		if !ok1 || !ok2 || len(aa) != len(ba) {
			return false
		}
		for i := range aa {
			if !Equal(aa[i], ba[i]) {
				return false
			}
		}
		return true
	}
	return a.String() == b.String()
}
