package template

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epimorphics/dclib-sub000/internal/env"
	"github.com/epimorphics/dclib-sub000/internal/pattern"
	"github.com/epimorphics/dclib-sub000/internal/rdf"
	"github.com/epimorphics/dclib-sub000/internal/value"
)

const testDataset = "http://example.com/dataset"

type reports struct {
	errs []value.Error
}

func (r *reports) Report(e value.Error) { r.errs = append(r.errs, e) }

// fixture is one run over a loaded template document.
type fixture struct {
	t      *testing.T
	loader *Loader
	graph  *rdf.Graph
	disp   *Dispatcher
	root   *pattern.Context
	rep    *reports
}

func newFixture(t *testing.T, doc string, opts ...DispatcherOption) *fixture {
	t.Helper()
	l := load(t, doc)
	g := rdf.NewGraph()
	opts = append([]DispatcherOption{WithDispatchLogger(quietLogger)}, opts...)

	rootEnv := env.New()
	rootEnv.Bind("$dataset", value.Str(testDataset))
	rep := &reports{}
	return &fixture{
		t:      t,
		loader: l,
		graph:  g,
		disp:   NewDispatcher(l.Registry(), g, opts...),
		root: &pattern.Context{
			Env:      rootEnv,
			Prefixes: l.Prefixes(),
			Blanks:   pattern.NewBlankCache(nil),
			Reporter: rep,
		},
		rep: rep,
	}
}

func (f *fixture) row(cells map[string]string) *pattern.Context {
	e := f.root.Env.Child()
	for k, v := range cells {
		e.Bind(k, value.FromLexical(v))
	}
	return f.root.WithEnv(e)
}

func (f *fixture) rootTemplate() Template {
	f.t.Helper()
	roots := f.loader.Registry().Roots()
	require.NotEmpty(f.t, roots)
	return roots[0]
}

func (f *fixture) apply(cells map[string]string) (rdf.Node, error) {
	return f.disp.Apply(f.row(cells), f.rootTemplate())
}

func (f *fixture) lines() []string {
	var out []string
	for _, t := range f.graph.Triples() {
		out = append(out, t.String())
	}
	return out
}

func TestApply_ResourceMap(t *testing.T) {
	f := newFixture(t, `{
		"prefixes": {"ex": "http://example.com/"},
		"@id": "ex:item/{id}",
		"@type": "ex:Item",
		"rdfs:label": ["{label}", "{alt}"],
		"ex:missing": "{nope}"
	}`)

	subject, err := f.apply(map[string]string{"id": "1", "label": "One", "alt": "Uno"})
	require.NoError(t, err)
	assert.Equal(t, rdf.NewURI("http://example.com/item/1"), subject)
	assert.Equal(t, []string{
		`<http://example.com/item/1> <http://www.w3.org/1999/02/22-rdf-syntax-ns#type> <http://example.com/Item> .`,
		`<http://example.com/item/1> <http://www.w3.org/2000/01/rdf-schema#label> "One" .`,
		`<http://example.com/item/1> <http://www.w3.org/2000/01/rdf-schema#label> "Uno" .`,
	}, f.lines())
}

func TestApply_EmptyCellSkipsPair(t *testing.T) {
	f := newFixture(t, `{"@id": "<http://example.com/{id}>", "rdfs:label": "{label}", "rdfs:comment": "{note}"}`)
	_, err := f.apply(map[string]string{"id": "1", "label": "", "note": "n"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		`<http://example.com/1> <http://www.w3.org/2000/01/rdf-schema#comment> "n" .`,
	}, f.lines())
}

func TestApply_NoSubjectEmitsNothing(t *testing.T) {
	f := newFixture(t, `{"@id": "<http://example.com/{id}>", "rdfs:label": "{label}"}`)
	subject, err := f.apply(map[string]string{"id": "", "label": "x"})
	require.NoError(t, err)
	assert.Nil(t, subject)
	assert.Empty(t, f.lines())
}

func TestApply_NotApplicable(t *testing.T) {
	f := newFixture(t, `{"required": ["id"], "@id": "<http://example.com/{id}>", "rdfs:label": "{label}"}`)
	subject, err := f.apply(map[string]string{"id": "", "label": "x"})
	require.NoError(t, err)
	assert.Nil(t, subject)
	assert.Equal(t, 0, f.graph.Len())
}

func TestApply_MissingIDMakesBlankSubject(t *testing.T) {
	f := newFixture(t, `{"rdfs:label": "{label}"}`)
	s1, err := f.apply(map[string]string{"label": "a"})
	require.NoError(t, err)
	s2, err := f.apply(map[string]string{"label": "b"})
	require.NoError(t, err)

	require.NotNil(t, s1)
	assert.Equal(t, rdf.KindBlank, s1.Kind())
	assert.NotEqual(t, s1, s2, "each row gets a fresh blank node")
}

func TestApply_CompositeReturnsFirstSubject(t *testing.T) {
	f := newFixture(t, `{"templates": [
		{"required": ["code"], "@id": "<http://example.com/code/{code}>", "rdfs:label": "{label}"},
		{"@id": "<http://example.com/{id}>", "rdfs:label": "{label}"},
		{"@id": "<http://example.com/other/{id}>", "rdfs:label": "{label}"}
	]}`)
	subject, err := f.apply(map[string]string{"id": "7", "label": "L"})
	require.NoError(t, err)
	assert.Equal(t, rdf.NewURI("http://example.com/7"), subject)
	assert.Len(t, f.lines(), 2, "every applicable child runs")
}

func TestApply_LetBindingSets(t *testing.T) {
	f := newFixture(t, `{
		"bind": [
			{"uri": "<http://example.com/{id}>", "same": "{uri}"},
			{"label": "Item {id} at {uri}"}
		],
		"@id": "{uri}",
		"rdfs:label": "{label}",
		"rdfs:comment": "{same}"
	}`)
	subject, err := f.apply(map[string]string{"id": "3"})
	require.NoError(t, err)
	assert.Equal(t, rdf.NewURI("http://example.com/3"), subject)
	assert.Equal(t, []string{
		`<http://example.com/3> <http://www.w3.org/2000/01/rdf-schema#label> "Item 3 at http://example.com/3" .`,
		`<http://example.com/3> <http://www.w3.org/2000/01/rdf-schema#comment> "http://example.com/3" .`,
	}, f.lines(), "later bindings in a set see earlier ones")
}

func TestApply_LetBindingOrderWithinSet(t *testing.T) {
	f := newFixture(t, `{
		"bind": {"a": "{id}", "b": "{a}-{a}", "c": "{b}!"},
		"@id": "<http://example.com/{c}>",
		"rdfs:label": "{nope}"
	}`)
	subject, err := f.apply(map[string]string{"id": "7"})
	require.NoError(t, err)
	assert.Equal(t, rdf.NewURI("http://example.com/7-7!"), subject)

	f = newFixture(t, `{
		"bind": {"a": "{nope}", "b": "{a}"},
		"@id": "<http://example.com/{id}>",
		"rdfs:label": "{b}"
	}`)
	subject, err = f.apply(map[string]string{"id": "8"})
	require.NoError(t, err)
	assert.Equal(t, rdf.NewURI("http://example.com/8"), subject)
	assert.Empty(t, f.lines(), "a binding with no result stays unbound")
}

func TestApply_LetDoesNotLeakBindings(t *testing.T) {
	f := newFixture(t, `{"bind": {"x": "bound"}, "@id": "<http://example.com/{id}>", "rdfs:label": "{x}"}`)
	ctx := f.row(map[string]string{"id": "1"})
	_, err := f.disp.Apply(ctx, f.rootTemplate())
	require.NoError(t, err)
	assert.False(t, ctx.Env.Has("x"))
	assert.Len(t, f.lines(), 1)
}

func TestApply_ReferenceResolvedAtCallTime(t *testing.T) {
	f := newFixture(t, `{"name": "root", "template": "later"}`)
	require.NoError(t, f.loader.Load("later.json", []byte(
		`{"name": "later", "@id": "<http://example.com/{id}>", "rdfs:label": "{label}"}`)))

	root, _ := f.loader.Registry().Lookup("root")
	subject, err := f.disp.Apply(f.row(map[string]string{"id": "9", "label": "x"}), root)
	require.NoError(t, err)
	assert.Equal(t, rdf.NewURI("http://example.com/9"), subject)
}

func TestApply_UnresolvedReference(t *testing.T) {
	f := newFixture(t, `{"template": "nowhere"}`)
	_, err := f.apply(map[string]string{"id": "1"})
	var ure *UnresolvedRefError
	require.ErrorAs(t, err, &ure)
	assert.Equal(t, "nowhere", ure.Name)
}

func TestApply_DepthExceeded(t *testing.T) {
	f := newFixture(t, `{"name": "loop", "template": "loop"}`, WithDepthLimit(8))
	_, err := f.apply(map[string]string{"id": "1"})
	require.Error(t, err)
	assert.True(t, IsDepthExceededError(err))

	var de *DepthExceededError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, 8, de.Limit)
}

func TestApply_InverseProperty(t *testing.T) {
	f := newFixture(t, `{
		"prefixes": {"ex": "http://example.com/"},
		"@id": "ex:{id}",
		"^<ex:hasPart>": "ex:{whole}"
	}`)
	_, err := f.apply(map[string]string{"id": "wheel", "whole": "car"})
	require.Error(t, err, "a literal value cannot be the subject")
	assert.True(t, pattern.IsCoercionError(err))

	f = newFixture(t, `{
		"prefixes": {"ex": "http://example.com/"},
		"@id": "ex:{id}",
		"^<ex:hasPart>": "<ex:{whole}>"
	}`)
	_, err = f.apply(map[string]string{"id": "wheel", "whole": "car"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		`<http://example.com/car> <http://example.com/hasPart> <http://example.com/wheel> .`,
	}, f.lines())
}

func TestApply_PredicateMustBeURI(t *testing.T) {
	f := newFixture(t, `{"@id": "<http://example.com/{id}>", "<{pred}>": "x"}`)
	_, err := f.apply(map[string]string{"id": "1", "pred": "not a uri"})
	require.Error(t, err)
	assert.True(t, pattern.IsCoercionError(err))
}

func TestApply_HierarchyLevels(t *testing.T) {
	f := newFixture(t, `{
		"@id": "<http://example.com/{code}>",
		"level": "{depth}",
		"parent-link": "skos:broader",
		"child-link": "skos:narrower",
		"top-link": "skos:topConceptOf"
	}`)
	for _, r := range [][2]string{{"a", "1"}, {"b", "2"}, {"c", "3"}, {"d", "2"}, {"e", "1"}} {
		_, err := f.apply(map[string]string{"code": r[0], "depth": r[1]})
		require.NoError(t, err, r[0])
	}

	const skos = "http://www.w3.org/2004/02/skos/core#"
	link := func(s, p, o string) string {
		return "<http://example.com/" + s + "> <" + skos + p + "> <http://example.com/" + o + "> ."
	}
	top := func(s string) string {
		return "<http://example.com/" + s + "> <" + skos + "topConceptOf> <" + testDataset + "> ."
	}
	assert.Equal(t, []string{
		top("a"),
		link("b", "broader", "a"), link("a", "narrower", "b"),
		link("c", "broader", "b"), link("b", "narrower", "c"),
		link("d", "broader", "a"), link("a", "narrower", "d"),
		top("e"),
	}, f.lines())
}

func TestApply_HierarchyLevelErrors(t *testing.T) {
	doc := `{"@id": "<http://example.com/{code}>", "level": "{depth}", "parent-link": "skos:broader"}`

	t.Run("gap", func(t *testing.T) {
		f := newFixture(t, doc)
		_, err := f.apply(map[string]string{"code": "a", "depth": "1"})
		require.NoError(t, err)
		_, err = f.apply(map[string]string{"code": "c", "depth": "3"})
		var he *HierarchyError
		require.ErrorAs(t, err, &he)
		assert.Contains(t, he.Message, "depth-first")
	})

	t.Run("not a number", func(t *testing.T) {
		f := newFixture(t, doc)
		_, err := f.apply(map[string]string{"code": "a", "depth": "top"})
		var he *HierarchyError
		require.ErrorAs(t, err, &he)
	})

	t.Run("zero", func(t *testing.T) {
		f := newFixture(t, doc)
		_, err := f.apply(map[string]string{"code": "a", "depth": "0"})
		var he *HierarchyError
		require.ErrorAs(t, err, &he)
	})
}

func TestApply_HierarchyParents(t *testing.T) {
	f := newFixture(t, `{
		"@id": "<http://example.com/{code}>",
		"parent": "<http://example.com/{up}>",
		"parent-link": "skos:broader",
		"child-link": "skos:narrower"
	}`)
	_, err := f.apply(map[string]string{"code": "a", "up": ""})
	require.NoError(t, err)
	_, err = f.apply(map[string]string{"code": "b", "up": "a"})
	require.NoError(t, err)

	assert.Equal(t, []string{
		`<http://example.com/b> <http://www.w3.org/2004/02/skos/core#broader> <http://example.com/a> .`,
		`<http://example.com/a> <http://www.w3.org/2004/02/skos/core#narrower> <http://example.com/b> .`,
	}, f.lines())
}

func TestPreamble_GlobalsAndOneOffs(t *testing.T) {
	f := newFixture(t, `{
		"bind": {"$base": "http://example.com/"},
		"one_offs": [{"@id": "<{$base}dataset>", "@type": "dcat:Dataset"}],
		"templates": [
			{"@id": "<{$base}{id}>", "rdfs:label": "{label}"},
			{"bind": {"$scheme": "{$base}scheme"}, "templates": [{"@id": "<{$scheme}>", "rdfs:label": "scheme"}]}
		]
	}`)
	require.NoError(t, f.disp.Preamble(f.root, f.rootTemplate()))
	assert.True(t, f.root.Env.Has("$base"))
	assert.True(t, f.root.Env.Has("$scheme"), "nested composite globals are installed")

	_, err := f.apply(map[string]string{"id": "1", "label": "L"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		`<http://example.com/dataset> <http://www.w3.org/1999/02/22-rdf-syntax-ns#type> <http://www.w3.org/ns/dcat#Dataset> .`,
		`<http://example.com/1> <http://www.w3.org/2000/01/rdf-schema#label> "L" .`,
		`<http://example.com/scheme> <http://www.w3.org/2000/01/rdf-schema#label> "scheme" .`,
	}, f.lines())
}

func TestPreamble_ReferencedComposite(t *testing.T) {
	f := newFixture(t, `{
		"referenced": [{
			"name": "inner",
			"bind": {"$scheme": "http://example.com/scheme"},
			"one_offs": [{"@id": "<{$scheme}>", "@type": "skos:ConceptScheme"}],
			"templates": [{"@id": "<{$scheme}/{id}>", "skos:inScheme": "<{$scheme}>"}]
		}],
		"templates": ["inner"]
	}`)
	require.NoError(t, f.disp.Preamble(f.root, f.rootTemplate()))
	assert.True(t, f.root.Env.Has("$scheme"), "globals of a referenced composite are installed")

	_, err := f.apply(map[string]string{"id": "c1"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		`<http://example.com/scheme> <http://www.w3.org/1999/02/22-rdf-syntax-ns#type> <http://www.w3.org/2004/02/skos/core#ConceptScheme> .`,
		`<http://example.com/scheme/c1> <http://www.w3.org/2004/02/skos/core#inScheme> <http://example.com/scheme> .`,
	}, f.lines())
}

func TestPreamble_SharedTargetRunsOnce(t *testing.T) {
	f := newFixture(t, `{
		"referenced": [{
			"name": "shared",
			"one_offs": [{"@id": "<http://example.com/dataset>", "@type": "dcat:Dataset"}],
			"templates": [{"@id": "<http://example.com/{id}>", "rdfs:label": "{id}"}]
		}],
		"templates": ["shared", {"templates": ["shared"]}]
	}`)
	require.NoError(t, f.disp.Preamble(f.root, f.rootTemplate()))
	assert.Equal(t, 1, f.graph.Len())
}

func TestPreamble_NonCompositeIsNoop(t *testing.T) {
	f := newFixture(t, `{"@id": "<http://example.com/x>", "rdfs:label": "x"}`)
	require.NoError(t, f.disp.Preamble(f.root, f.rootTemplate()))
	assert.Equal(t, 0, f.graph.Len())
}

func TestApply_SinkErrorsAreWrapped(t *testing.T) {
	l := load(t, `{"@id": "<http://example.com/{id}>", "rdfs:label": "x"}`)
	boom := errors.New("disk full")
	d := NewDispatcher(l.Registry(), rdf.SinkFunc(func(rdf.Triple) error { return boom }), WithDispatchLogger(quietLogger))

	e := env.New()
	e.Bind("id", value.Str("1"))
	ctx := &pattern.Context{Env: e, Prefixes: l.Prefixes(), Blanks: pattern.NewBlankCache(nil), Reporter: &reports{}}
	_, err := d.Apply(ctx, l.Registry().Roots()[0])
	assert.ErrorIs(t, err, boom)
}
