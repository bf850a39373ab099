package template

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/token"

	"github.com/epimorphics/dclib-sub000/internal/csvin"
	"github.com/epimorphics/dclib-sub000/internal/env"
	"github.com/epimorphics/dclib-sub000/internal/lookup"
	"github.com/epimorphics/dclib-sub000/internal/pattern"
	"github.com/epimorphics/dclib-sub000/internal/queryir"
	"github.com/epimorphics/dclib-sub000/internal/rdf"
	"github.com/epimorphics/dclib-sub000/internal/value"
)

// SourceKind is the kind of a declared lookup source.
type SourceKind string

const (
	// InlineSource lists its entries in the template document.
	InlineSource SourceKind = "inline"
	// CSVSource reads entries from a delimited file.
	CSVSource SourceKind = "csv"
	// GraphSource reads entries from the statement store.
	GraphSource SourceKind = "graph"
)

// NodeName is bound to the matched node while a csv source's enrich
// patterns are evaluated.
const NodeName = "$node"

// InlineEntry is one key and value of an inline source.
type InlineEntry struct {
	Key   string
	Value string
}

// SourceSpec declares a lookup source:
//
//	{"name": "countries", "type": "inline", "entries": {"UK": "ex:uk"}}
//	{"name": "regions", "type": "csv", "path": "regions.csv", "key": "name",
//	 "value": "<ex:region/{code}>", "enrich": {"skos:prefLabel": "{name}"}}
//	{"name": "concepts", "type": "graph", "key": "skos:notation",
//	 "class": "skos:Concept", "describe": true}
type SourceSpec struct {
	Name string
	Kind SourceKind
	Pos  token.Pos

	// Entries of an inline source, in document order.
	Entries []InlineEntry

	// Path of a csv source, resolved against the template's directory.
	Path string
	// Key is the key column of a csv source.
	Key string
	// Value computes the node for a csv row.
	Value *pattern.Pattern
	// Enrich lists the properties emitted about a matched csv node.
	Enrich []Property

	// Predicate links a graph node to its key.
	Predicate string
	// Class optionally restricts graph nodes to one rdf:type.
	Class string
	// Describe enriches matched graph nodes with their stored statements.
	Describe bool
}

func (l *Loader) parseSource(v cue.Value) (*SourceSpec, error) {
	if v.IncompleteKind() != cue.StructKind {
		return nil, shapeError(v, keySources, "source must be an object")
	}
	str := func(key string, required bool) (string, error) {
		fv := v.LookupPath(cue.MakePath(cue.Str(key)))
		if !fv.Exists() {
			if required {
				return "", &LoadError{Code: ErrCodeMissingField, Field: key, Message: "source needs " + key, Pos: v.Pos()}
			}
			return "", nil
		}
		s, err := fv.String()
		if err != nil {
			return "", shapeError(fv, key, "must be a string")
		}
		return s, nil
	}

	name, err := str("name", true)
	if err != nil {
		return nil, err
	}
	kind, err := str("type", true)
	if err != nil {
		return nil, err
	}
	spec := &SourceSpec{Name: name, Kind: SourceKind(kind), Pos: v.Pos()}

	switch spec.Kind {
	case InlineSource:
		ev := v.LookupPath(cue.MakePath(cue.Str("entries")))
		if !ev.Exists() {
			return nil, &LoadError{Code: ErrCodeMissingField, Field: "entries", Message: "inline source needs entries", Pos: v.Pos()}
		}
		iter, err := ev.Fields()
		if err != nil {
			return nil, shapeError(ev, "entries", "must be an object of key to value")
		}
		for iter.Next() {
			key := iter.Selector().Unquoted()
			vals, err := stringList(iter.Value(), "entries."+key)
			if err != nil {
				return nil, err
			}
			for _, val := range vals {
				spec.Entries = append(spec.Entries, InlineEntry{Key: key, Value: val})
			}
		}

	case CSVSource:
		if spec.Path, err = str("path", true); err != nil {
			return nil, err
		}
		if !filepath.IsAbs(spec.Path) && l.dir != "" {
			spec.Path = filepath.Join(l.dir, spec.Path)
		}
		if spec.Key, err = str("key", true); err != nil {
			return nil, err
		}
		spec.Key = csvin.SafeName(spec.Key)
		val, err := str("value", true)
		if err != nil {
			return nil, err
		}
		spec.Value = l.compile(asURIPattern(val))
		if ev := v.LookupPath(cue.MakePath(cue.Str("enrich"))); ev.Exists() {
			iter, err := ev.Fields()
			if err != nil {
				return nil, shapeError(ev, "enrich", "must be an object of predicate to pattern")
			}
			for iter.Next() {
				pred := iter.Selector().Unquoted()
				srcs, err := patternList(iter.Value(), "enrich."+pred)
				if err != nil {
					return nil, err
				}
				prop := Property{Predicate: l.compile(asURIPattern(pred))}
				for _, s := range srcs {
					prop.Values = append(prop.Values, l.compile(s))
				}
				spec.Enrich = append(spec.Enrich, prop)
			}
		}

	case GraphSource:
		key, err := str("key", true)
		if err != nil {
			return nil, err
		}
		if spec.Predicate, err = l.absoluteIRI(v, "key", key); err != nil {
			return nil, err
		}
		class, err := str("class", false)
		if err != nil {
			return nil, err
		}
		if class != "" {
			if spec.Class, err = l.absoluteIRI(v, "class", class); err != nil {
				return nil, err
			}
		}
		if dv := v.LookupPath(cue.MakePath(cue.Str("describe"))); dv.Exists() {
			if spec.Describe, err = dv.Bool(); err != nil {
				return nil, shapeError(dv, "describe", "must be a boolean")
			}
		}

	default:
		return nil, &LoadError{Code: ErrCodeUnknownType, Field: "type", Message: fmt.Sprintf("unknown source type %q", kind), Pos: v.Pos()}
	}
	return spec, nil
}

func (l *Loader) absoluteIRI(v cue.Value, field, s string) (string, error) {
	iri := l.prefixes.Expand(s)
	if !rdf.IsAbsoluteIRI(iri) {
		return "", &LoadError{Code: ErrCodeShape, Field: field, Message: fmt.Sprintf("%q is not a URI or known prefixed name", s), Pos: v.Pos()}
	}
	return iri, nil
}

// GraphStore is the statement store graph sources read from.
type GraphStore interface {
	Select(ctx context.Context, q *queryir.Select) ([]queryir.Solution, error)
	Describe(ctx context.Context, subject rdf.Node) ([]rdf.Triple, error)
}

// SourceBuilder turns source declarations into lookup sources.
type SourceBuilder struct {
	// Eval is the root evaluation context; csv value and enrich patterns
	// are evaluated in a child of its environment.
	Eval *pattern.Context
	// Graph serves graph sources; it may be nil when none are declared.
	Graph  GraphStore
	Logger *slog.Logger
}

// Build creates a registry holding one source per declaration.
func (b *SourceBuilder) Build(ctx context.Context, specs []*SourceSpec) (*lookup.Registry, error) {
	reg := lookup.NewRegistry()
	for _, spec := range specs {
		src, err := b.BuildSource(ctx, spec)
		if err != nil {
			return nil, err
		}
		reg.Register(src)
		b.logger().Debug("lookup source loaded", "source", spec.Name, "type", string(spec.Kind), "keys", src.Len())
	}
	return reg, nil
}

// BuildSource creates the lookup source for one declaration.
func (b *SourceBuilder) BuildSource(ctx context.Context, spec *SourceSpec) (*lookup.Source, error) {
	var (
		src *lookup.Source
		err error
	)
	switch spec.Kind {
	case InlineSource:
		src = b.buildInline(spec)
	case CSVSource:
		src, err = b.buildCSV(spec)
	case GraphSource:
		src, err = b.buildGraph(ctx, spec)
	default:
		err = fmt.Errorf("unknown source type %q", spec.Kind)
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeSource, Field: spec.Name, Message: err.Error(), Pos: spec.Pos}
	}
	return src, nil
}

func (b *SourceBuilder) buildInline(spec *SourceSpec) *lookup.Source {
	src := lookup.NewSource(spec.Name)
	for _, e := range spec.Entries {
		src.Add(e.Key, b.inlineNode(e.Value), nil)
	}
	return src
}

// inlineNode reads an inline value as a URI when it expands to one and as
// a plain literal otherwise.
func (b *SourceBuilder) inlineNode(s string) rdf.Node {
	if iri := b.Eval.Prefixes.Expand(s); rdf.IsAbsoluteIRI(iri) {
		return rdf.NewURI(iri)
	}
	return rdf.PlainLiteral(s)
}

func (b *SourceBuilder) buildCSV(spec *SourceSpec) (*lookup.Source, error) {
	r, err := csvin.Open(spec.Path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	found := false
	for _, col := range r.Header() {
		if col == spec.Key {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("key column %q not in %v", spec.Key, r.Header())
	}

	var opts []lookup.Option
	if len(spec.Enrich) > 0 {
		opts = append(opts, lookup.WithEnrich(b.csvEnricher(spec)))
	}
	src := lookup.NewSource(spec.Name, opts...)

	for {
		row, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		key, _ := row.Get(spec.Key)
		if key == "" {
			continue
		}
		cells := row.Map()
		nodes, err := spec.Value.EvaluateNodes(b.Eval.WithEnv(b.rowEnv(cells)))
		if err != nil {
			if value.IsNoResult(err) {
				b.logger().Debug("lookup row has no value", "source", spec.Name, "row", row.Number)
				continue
			}
			return nil, fmt.Errorf("row %d: %w", row.Number, err)
		}
		for _, n := range nodes {
			src.Add(key, n, cells)
		}
	}
	return src, nil
}

func (b *SourceBuilder) csvEnricher(spec *SourceSpec) lookup.EnrichFunc {
	return func(node rdf.Node, e *lookup.Entry, sink rdf.Sink) error {
		e2 := b.rowEnv(e.Row)
		e2.Bind(NodeName, value.FromNode(node))
		d := &Dispatcher{sink: sink, logger: b.logger()}
		return d.emitProperties(b.Eval.WithEnv(e2), node, spec.Enrich)
	}
}

func (b *SourceBuilder) rowEnv(cells map[string]string) *env.Env {
	e := b.Eval.Env.Child()
	for col, raw := range cells {
		e.Bind(col, value.FromLexical(raw))
	}
	return e
}

func (b *SourceBuilder) buildGraph(ctx context.Context, spec *SourceSpec) (*lookup.Source, error) {
	if b.Graph == nil {
		return nil, errors.New("graph source needs a statement store")
	}
	q := &queryir.Select{
		Patterns: []queryir.Pattern{
			{S: queryir.Var("s"), P: queryir.Const(rdf.NewURI(spec.Predicate)), O: queryir.Var("key")},
		},
		Project: []string{"s", "key"},
	}
	if spec.Class != "" {
		q.Patterns = append(q.Patterns, queryir.Pattern{
			S: queryir.Var("s"),
			P: queryir.Const(rdf.NewURI(rdf.RDFType)),
			O: queryir.Const(rdf.NewURI(spec.Class)),
		})
	}
	solutions, err := b.Graph.Select(ctx, q)
	if err != nil {
		return nil, err
	}

	var opts []lookup.Option
	if spec.Describe {
		graph := b.Graph
		opts = append(opts, lookup.WithEnrich(func(node rdf.Node, _ *lookup.Entry, sink rdf.Sink) error {
			triples, err := graph.Describe(ctx, node)
			if err != nil {
				return err
			}
			for _, t := range triples {
				if err := sink.Emit(t); err != nil {
					return err
				}
			}
			return nil
		}))
	}
	src := lookup.NewSource(spec.Name, opts...)
	for _, sol := range solutions {
		src.Add(sol["key"].Value(), sol["s"], nil)
	}
	return src, nil
}

func (b *SourceBuilder) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.Default()
}
