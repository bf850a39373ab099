package convert

import (
	"context"

	"github.com/epimorphics/dclib-sub000/internal/env"
	"github.com/epimorphics/dclib-sub000/internal/lookup"
	"github.com/epimorphics/dclib-sub000/internal/pattern"
	"github.com/epimorphics/dclib-sub000/internal/template"
	"github.com/epimorphics/dclib-sub000/internal/value"
)

// BuildSources loads the lookup sources declared by specs, configured by
// the same options as the converter that will use them. Value and
// enrichment patterns see $base and the WithBinding names. graph serves
// graph sources and may be nil when none are declared.
func BuildSources(ctx context.Context, specs []*template.SourceSpec, graph template.GraphStore, opts ...Option) (*lookup.Registry, error) {
	c := New(template.NewRegistry(), opts...)

	e := env.New()
	e.Bind(env.BaseName, value.Str(c.base))
	for _, b := range c.bindings {
		e.Bind(b.Name, value.FromLexical(b.Value))
	}

	b := &template.SourceBuilder{
		Eval: &pattern.Context{
			Env:      e,
			Prefixes: c.prefixes,
			IDs:      c.ids,
			Now:      c.clock.Now(),
			Reporter: NewDiagnostics(c.logger),
			Blanks:   pattern.NewBlankCache(c.ids),
		},
		Graph:  graph,
		Logger: c.logger,
	}
	return b.Build(ctx, specs)
}
