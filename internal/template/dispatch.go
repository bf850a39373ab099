package template

import (
	"fmt"
	"log/slog"

	"github.com/epimorphics/dclib-sub000/internal/env"
	"github.com/epimorphics/dclib-sub000/internal/pattern"
	"github.com/epimorphics/dclib-sub000/internal/rdf"
	"github.com/epimorphics/dclib-sub000/internal/value"
)

// DefaultMaxDepth is the default limit on nested template delegation.
const DefaultMaxDepth = 64

var (
	freshBlank = pattern.MustCompile("<_:>")
	datasetRef = pattern.MustCompile("<{$dataset}>")
)

// Dispatcher applies templates to rows and writes the statements they
// produce to a sink.
//
// A Dispatcher belongs to one run: hierarchy templates keep per-run state
// in it. It is not safe for concurrent use.
type Dispatcher struct {
	registry *Registry
	sink     rdf.Sink
	logger   *slog.Logger
	maxDepth int

	hierarchies map[*Hierarchy]*hierarchyState
}

type hierarchyState struct {
	// stack holds the most recent node at each level, top level first.
	stack []rdf.Node
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDepthLimit sets the maximum delegation depth.
func WithDepthLimit(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxDepth = n
		}
	}
}

// WithDispatchLogger sets the logger for dispatch decisions.
func WithDispatchLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = l }
}

// NewDispatcher creates a dispatcher resolving references through reg and
// emitting into sink.
func NewDispatcher(reg *Registry, sink rdf.Sink, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		registry:    reg,
		sink:        sink,
		logger:      slog.Default(),
		maxDepth:    DefaultMaxDepth,
		hierarchies: make(map[*Hierarchy]*hierarchyState),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Preamble prepares the root environment of a run before its first row.
// For every composite reachable from t (directly, through references or
// through a let body) the global bindings are installed into ctx.Env and
// the one-off templates run in order. A parent's preamble runs before its
// children's, and each composite contributes at most once.
func (d *Dispatcher) Preamble(ctx *pattern.Context, t Template) error {
	return d.preamble(ctx, t, 1, make(map[Template]bool))
}

func (d *Dispatcher) preamble(ctx *pattern.Context, t Template, depth int, seen map[Template]bool) error {
	if depth > d.maxDepth {
		return &DepthExceededError{Template: Describe(t), Depth: depth, Limit: d.maxDepth}
	}
	if seen[t] {
		return nil
	}
	seen[t] = true

	switch t := t.(type) {
	case *Ref:
		target, ok := d.registry.Lookup(t.Target)
		if !ok {
			return &UnresolvedRefError{Name: t.Target}
		}
		return d.preamble(ctx, target, depth+1, seen)

	case *Let:
		return d.preamble(ctx, t.Body, depth+1, seen)

	case *Composite:
		for _, set := range t.Globals {
			if err := d.bindSet(ctx, ctx.Env, set); err != nil {
				return err
			}
		}
		for _, o := range t.OneOffs {
			if _, err := d.apply(ctx, o, depth+1); err != nil {
				return fmt.Errorf("one-off %s: %w", Describe(o), err)
			}
		}
		for _, child := range t.Templates {
			if err := d.preamble(ctx, child, depth+1, seen); err != nil {
				return err
			}
		}
	}
	return nil
}

// Apply runs t against the row bound in ctx.Env.
//
// It returns the subject t produced, or nil when t did not apply (a
// required binding was missing) or produced no subject. Data problems are
// reported through ctx.Reporter; the returned error is reserved for hard
// failures such as coercion errors, abort(), unresolved references and
// broken hierarchy ordering.
func (d *Dispatcher) Apply(ctx *pattern.Context, t Template) (rdf.Node, error) {
	return d.apply(ctx, t, 1)
}

func (d *Dispatcher) apply(ctx *pattern.Context, t Template, depth int) (rdf.Node, error) {
	if depth > d.maxDepth {
		return nil, &DepthExceededError{Template: Describe(t), Depth: depth, Limit: d.maxDepth}
	}
	if !t.Head().IsApplicable(ctx.Env) {
		d.logger.Debug("template not applicable", "template", Describe(t), "required", t.Head().Required)
		return nil, nil
	}

	switch t := t.(type) {
	case *ResourceMap:
		return d.applyResourceMap(ctx, t)

	case *Composite:
		var first rdf.Node
		for _, child := range t.Templates {
			n, err := d.apply(ctx, child, depth+1)
			if err != nil {
				return nil, err
			}
			if first == nil && n != nil {
				first = n
			}
		}
		return first, nil

	case *Let:
		cur := ctx.Env
		for _, set := range t.Bindings {
			next := cur.Child()
			if err := d.bindSet(ctx.WithEnv(next), next, set); err != nil {
				return nil, err
			}
			cur = next
		}
		return d.apply(ctx.WithEnv(cur), t.Body, depth+1)

	case *Hierarchy:
		return d.applyHierarchy(ctx, t)

	case *Ref:
		target, ok := d.registry.Lookup(t.Target)
		if !ok {
			return nil, &UnresolvedRefError{Name: t.Target}
		}
		return d.apply(ctx, target, depth+1)

	default:
		return nil, fmt.Errorf("unknown template variant %T", t)
	}
}

// bindSet evaluates the patterns of set in declaration order, binding each
// result in target before the next is evaluated, so later bindings see
// earlier ones. ctx must evaluate against target or one of its children.
// A binding with no result leaves its name unbound.
func (d *Dispatcher) bindSet(ctx *pattern.Context, target *env.Env, set BindingSet) error {
	for _, b := range set {
		v, err := b.Pattern.Evaluate(ctx)
		if err != nil {
			if value.IsNoResult(err) {
				d.logger.Debug("binding left unbound", "name", b.Name, "reason", err)
				continue
			}
			return fmt.Errorf("bind %s: %w", b.Name, err)
		}
		target.Bind(b.Name, v)
	}
	return nil
}

func (d *Dispatcher) applyResourceMap(ctx *pattern.Context, rm *ResourceMap) (rdf.Node, error) {
	idPattern := rm.ID
	if idPattern == nil {
		idPattern = freshBlank
	}
	subject, err := idPattern.EvaluateNode(ctx)
	if err != nil {
		if value.IsNoResult(err) {
			d.logger.Debug("no subject", "pattern", idPattern.Source, "reason", err)
			return nil, nil
		}
		return nil, err
	}
	if err := d.emitProperties(ctx, subject, rm.Properties); err != nil {
		return nil, err
	}
	return subject, nil
}

// emitProperties emits the statements for props about subject. A
// predicate or value with no result is skipped; multi-valued results fan
// out to one statement per node.
func (d *Dispatcher) emitProperties(ctx *pattern.Context, subject rdf.Node, props []Property) error {
	for _, prop := range props {
		preds, err := prop.Predicate.EvaluateNodes(ctx)
		if err != nil {
			if value.IsNoResult(err) {
				continue
			}
			return err
		}
		for _, pn := range preds {
			pred, err := asPredicate(prop.Predicate, pn)
			if err != nil {
				return err
			}
			for _, vp := range prop.Values {
				objs, err := vp.EvaluateNodes(ctx)
				if err != nil {
					if value.IsNoResult(err) {
						continue
					}
					return err
				}
				for _, o := range objs {
					if err := d.emit(prop.Predicate, subject, pred, o); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}

// emit writes one statement, reversed for inverse predicates.
func (d *Dispatcher) emit(p *pattern.Pattern, s rdf.Node, pred rdf.URI, o rdf.Node) error {
	t := rdf.Triple{S: s, P: pred, O: o}
	if p.IsInverse {
		if o.Kind() == rdf.KindLiteral {
			return &pattern.CoercionError{Pattern: p.Source, Value: o.String(), Reason: "literal cannot be the subject of an inverse property"}
		}
		t = rdf.Triple{S: o, P: pred, O: s}
	}
	if err := d.sink.Emit(t); err != nil {
		return fmt.Errorf("emit %s: %w", t, err)
	}
	return nil
}

func asPredicate(p *pattern.Pattern, n rdf.Node) (rdf.URI, error) {
	u, ok := n.(rdf.URI)
	if !ok {
		return rdf.URI{}, &pattern.CoercionError{Pattern: p.Source, Value: n.String(), Reason: "predicate must be a URI"}
	}
	return u, nil
}

func (d *Dispatcher) applyHierarchy(ctx *pattern.Context, h *Hierarchy) (rdf.Node, error) {
	node, err := d.applyResourceMap(ctx, h.Node)
	if err != nil || node == nil {
		return node, err
	}

	var parent rdf.Node
	switch h.Mode {
	case LevelMode:
		level, err := d.level(ctx, h)
		if err != nil {
			return nil, err
		}
		st := d.state(h)
		if level > len(st.stack)+1 {
			return nil, &HierarchyError{
				Template: Describe(h),
				Message:  fmt.Sprintf("level %d follows level %d; rows must be in depth-first order", level, len(st.stack)),
			}
		}
		st.stack = append(st.stack[:level-1], node)
		if level > 1 {
			parent = st.stack[level-2]
		}

	case ParentMode:
		parent, err = h.Parent.EvaluateNode(ctx)
		if err != nil {
			if !value.IsNoResult(err) {
				return nil, err
			}
			parent = nil
		}
	}

	if parent == nil {
		if h.TopLink == nil {
			return node, nil
		}
		dataset, err := datasetRef.EvaluateNode(ctx)
		if err != nil {
			if value.IsNoResult(err) {
				return node, nil
			}
			return nil, err
		}
		return node, d.link(ctx, h.TopLink, node, dataset)
	}
	if err := d.link(ctx, h.ParentLink, node, parent); err != nil {
		return nil, err
	}
	if err := d.link(ctx, h.ChildLink, parent, node); err != nil {
		return nil, err
	}
	return node, nil
}

func (d *Dispatcher) level(ctx *pattern.Context, h *Hierarchy) (int, error) {
	v, err := h.Level.Evaluate(ctx)
	if err != nil {
		if value.IsNoResult(err) {
			return 0, &HierarchyError{Template: Describe(h), Message: "row has no level"}
		}
		return 0, err
	}
	nv, err := value.ToNumber(v)
	if err == nil {
		if n, ok := nv.(value.Number); ok {
			if i, ok := n.Int64(); ok && i >= 1 {
				return int(i), nil
			}
		}
	}
	return 0, &HierarchyError{Template: Describe(h), Message: fmt.Sprintf("level %q is not a positive integer", v.String())}
}

func (d *Dispatcher) link(ctx *pattern.Context, p *pattern.Pattern, s, o rdf.Node) error {
	if p == nil {
		return nil
	}
	pn, err := p.EvaluateNode(ctx)
	if err != nil {
		if value.IsNoResult(err) {
			return nil
		}
		return err
	}
	pred, err := asPredicate(p, pn)
	if err != nil {
		return err
	}
	return d.emit(p, s, pred, o)
}

func (d *Dispatcher) state(h *Hierarchy) *hierarchyState {
	st, ok := d.hierarchies[h]
	if !ok {
		st = &hierarchyState{}
		d.hierarchies[h] = st
	}
	return st
}
