// Package env provides the chained binding environment that patterns are
// evaluated against.
//
// An Env frame holds only the names bound locally and a pointer to its
// parent. Lookups walk from the frame to the root. A name bound to Null in
// a frame stops the walk there: the caller sees an explicit null, and the
// parent's binding for that name stays hidden. A name that is not bound at
// all keeps walking.
//
// Frames are never mutated through a child: Bind only touches the frame it
// is called on. One root frame lives for a whole conversion run (global
// bindings), one child frame is created per row, and template delegation
// may add frames for local parameters.
package env

import (
	"sort"

	"github.com/epimorphics/dclib-sub000/internal/value"
)

// Reserved global names.
const (
	// BaseName holds the base URI of the conversion.
	BaseName = "$base"
	// DatasetName holds the dataset node derived from $base.
	DatasetName = "$dataset"
	// RowName holds the current row number.
	RowName = "$row"
	// FileName holds the name of the source being converted.
	FileName = "$file"
	// NowName holds the run start time.
	NowName = "$now"
)

// Env is one frame of a binding chain.
type Env struct {
	parent *Env
	vars   map[string]value.Value
	order  []string
}

// New creates a root frame.
func New() *Env {
	return &Env{vars: make(map[string]value.Value)}
}

// Child creates a frame whose lookups fall back to e.
func (e *Env) Child() *Env {
	return &Env{parent: e, vars: make(map[string]value.Value)}
}

// Parent returns the enclosing frame, or nil for a root.
func (e *Env) Parent() *Env {
	return e.parent
}

// Root returns the outermost frame of the chain.
func (e *Env) Root() *Env {
	f := e
	for f.parent != nil {
		f = f.parent
	}
	return f
}

// Bind sets name in this frame. Rebinding a local name replaces it; the
// parent chain is never touched.
func (e *Env) Bind(name string, v value.Value) {
	if v == nil {
		v = value.Null{}
	}
	if _, ok := e.vars[name]; !ok {
		e.order = append(e.order, name)
	}
	e.vars[name] = v
}

// Lookup walks the chain. The boolean is false only when no frame binds
// name; an explicit Null binding is returned as (Null, true).
func (e *Env) Lookup(name string) (value.Value, bool) {
	for f := e; f != nil; f = f.parent {
		if v, ok := f.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// Get returns the bound value, or Null when name is absent.
func (e *Env) Get(name string) value.Value {
	if v, ok := e.Lookup(name); ok {
		return v
	}
	return value.Null{}
}

// Has reports whether name is bound to a non-null value somewhere in the chain.
func (e *Env) Has(name string) bool {
	v, ok := e.Lookup(name)
	return ok && !v.IsNull()
}

// IsLocal reports whether name is bound in this frame.
func (e *Env) IsLocal(name string) bool {
	_, ok := e.vars[name]
	return ok
}

// LocalNames returns the names bound in this frame in binding order.
func (e *Env) LocalNames() []string {
	out := make([]string, len(e.order))
	copy(out, e.order)
	return out
}

// Names returns every visible name in the chain, sorted.
func (e *Env) Names() []string {
	seen := make(map[string]bool)
	for f := e; f != nil; f = f.parent {
		for n := range f.vars {
			seen[n] = true
		}
	}
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Depth returns the number of frames above e.
func (e *Env) Depth() int {
	d := 0
	for f := e.parent; f != nil; f = f.parent {
		d++
	}
	return d
}
