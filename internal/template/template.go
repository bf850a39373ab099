// Package template holds the conversion templates: the variants a template
// document can describe, the loader that reads documents, the registry of
// named templates and the dispatcher that applies a template to one row.
//
// Template is a sealed interface. Only the five variants in this package
// implement it, and the dispatcher handles them with an exhaustive type
// switch:
//
//	switch t := tmpl.(type) {
//	case *ResourceMap:
//	case *Composite:
//	case *Let:
//	case *Hierarchy:
//	case *Ref:
//	}
package template

import (
	"github.com/epimorphics/dclib-sub000/internal/env"
	"github.com/epimorphics/dclib-sub000/internal/pattern"
)

// Template is one of *ResourceMap, *Composite, *Let, *Hierarchy or *Ref.
type Template interface {
	// Head returns the template's common header.
	Head() *Header

	template() // Marker method - seals interface to this package
}

// Header carries the fields every variant shares.
type Header struct {
	// Name registers the template for references; empty for anonymous
	// templates.
	Name string

	// Required lists the bindings that must be present and non-null for
	// the template to apply.
	Required []string

	// Optional lists bindings the template reads when present. It is
	// informational: validate reports it, dispatch ignores it.
	Optional []string
}

// Head returns h.
func (h *Header) Head() *Header { return h }

// IsApplicable reports whether every required name is bound to a non-null
// value in e.
func (h *Header) IsApplicable(e *env.Env) bool {
	for _, name := range h.Required {
		if !e.Has(name) {
			return false
		}
	}
	return true
}

// Property is one predicate with its value patterns.
type Property struct {
	Predicate *pattern.Pattern
	Values    []*pattern.Pattern
}

// ResourceMap emits one resource per row: a subject and its
// predicate/value pairs.
type ResourceMap struct {
	Header

	// ID computes the subject. A nil ID makes a fresh blank node.
	ID         *pattern.Pattern
	Properties []Property
}

func (*ResourceMap) template() {}

// Composite runs its children in order against the same row.
type Composite struct {
	Header

	Templates []Template

	// OneOffs run once, in order, against the root environment before the
	// first row.
	OneOffs []Template

	// Globals are installed into the root environment before the
	// preamble runs.
	Globals []BindingSet
}

func (*Composite) template() {}

// Binding names the value of a pattern.
type Binding struct {
	Name    string
	Pattern *pattern.Pattern
}

// BindingSet is evaluated as a unit: every pattern sees the environment as
// it was before the set, then all names are bound together.
type BindingSet []Binding

// Let derives a child environment from its binding sets, applied in
// order, and delegates to Body.
type Let struct {
	Header

	Bindings []BindingSet
	Body     Template
}

func (*Let) template() {}

// HierarchyMode selects how a Hierarchy finds a row's parent.
type HierarchyMode int

const (
	// ParentMode evaluates a pattern naming the parent node. Row order does
	// not matter.
	ParentMode HierarchyMode = iota

	// LevelMode evaluates a depth for each row and links it to the most
	// recent node one level up. Rows must arrive in depth-first pre-order.
	LevelMode
)

func (m HierarchyMode) String() string {
	if m == LevelMode {
		return "level"
	}
	return "parent"
}

// Hierarchy emits a resource per row like a ResourceMap and links it to
// its parent with ParentLink and ChildLink. Top-level nodes are linked to
// the $dataset node with TopLink.
type Hierarchy struct {
	Header

	Node *ResourceMap
	Mode HierarchyMode

	// Parent computes the parent node in ParentMode.
	Parent *pattern.Pattern
	// Level computes the 1-based depth in LevelMode.
	Level *pattern.Pattern

	ParentLink *pattern.Pattern
	ChildLink  *pattern.Pattern
	TopLink    *pattern.Pattern
}

func (*Hierarchy) template() {}

// Ref is a late-bound reference to a named template, resolved through the
// registry on every call.
type Ref struct {
	Header

	Target string
}

func (*Ref) template() {}

// Kind returns a short name for the variant of t.
func Kind(t Template) string {
	switch t.(type) {
	case *ResourceMap:
		return "mapping"
	case *Composite:
		return "composite"
	case *Let:
		return "let"
	case *Hierarchy:
		return "hierarchy"
	case *Ref:
		return "ref"
	default:
		return "unknown"
	}
}

// Describe names t for logs and diagnostics.
func Describe(t Template) string {
	if r, ok := t.(*Ref); ok {
		return "ref " + r.Target
	}
	if name := t.Head().Name; name != "" {
		return Kind(t) + " " + name
	}
	return Kind(t)
}
