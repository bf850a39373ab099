package expr

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epimorphics/dclib-sub000/internal/env"
	"github.com/epimorphics/dclib-sub000/internal/rdf"
	"github.com/epimorphics/dclib-sub000/internal/value"
)

type fixedIDs struct{ id string }

func (f fixedIDs) Generate() string { return f.id }

type fakeMapper map[string]map[string][]rdf.Node

func (f fakeMapper) MapKey(source, key string) ([]rdf.Node, bool, error) {
	nodes, ok := f[source][key]
	return nodes, ok, nil
}

func testContext(t *testing.T) *Context {
	t.Helper()
	e := env.New()
	x, ok := value.ParseNumber("42")
	require.True(t, ok)
	e.Bind("x", x)
	e.Bind("name", value.Str("Alice"))
	e.Bind("arr", value.NewArray(value.Str("a"), value.Str("b")))
	return &Context{Env: e.Child(), Prefixes: rdf.NewPrefixMap()}
}

func eval(t *testing.T, ctx *Context, src string, script bool) (value.Value, error) {
	t.Helper()
	prog, err := Parse(src, script)
	require.NoError(t, err, src)
	return Eval(ctx, prog)
}

func TestEval_StringEscapes(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{`'it\'s'`, "it's"},
		{`"say \"hi\""`, `say "hi"`},
		{`'a\\b'`, `a\b`},
		{`'tab\there'`, "tab\there"},
		{`'\u00e9'`, "é"},
		{`'(\d+)'`, `(\d+)`},
		{`'\s\.'`, `\s\.`},
	}
	ctx := testContext(t)
	for _, tc := range tests {
		t.Run(tc.src, func(t *testing.T) {
			v, err := eval(t, ctx, tc.src, false)
			require.NoError(t, err)
			assert.Equal(t, value.Str(tc.want), v)
		})
	}
}

func TestEval_Expressions(t *testing.T) {
	tests := []struct {
		src  string
		want string
		kind value.Kind
	}{
		{"1 + 2", "3", value.KindNumber},
		{"x + 1", "43", value.KindNumber},
		{"'a' + \"b\"", "ab", value.KindString},
		{"name + '-' + x", "Alice-42", value.KindString},
		{"10 / 4", "2.5", value.KindNumber},
		{"-x", "-42", value.KindNumber},
		{"x > 40 ? 'big' : 'small'", "big", value.KindString},
		{"x < 40 ? 'big' : x == 42 ? 'exact' : 'small'", "exact", value.KindString},
		{"missing ?: 'fallback'", "fallback", value.KindString},
		{"name.toUpperCase()", "ALICE", value.KindString},
		{"name.toLowerCase", "alice", value.KindString},
		{"name.length()", "5", value.KindNumber},
		{"arr.length", "2", value.KindNumber},
		{"arr.join('|')", "a|b", value.KindString},
		{"arr[-1]", "b", value.KindString},
		{"[1, 2, 3].each(v -> v * 2)", "[2, 4, 6]", value.KindArray},
		{"[1, 2, 3].filter(v -> v > 1).length()", "2", value.KindNumber},
		{"((a, b) -> a + b)(1, 2)", "3", value.KindNumber},
		{"round(2.345, 2)", "2.35", value.KindNumber},
		{"round(7.5)", "8", value.KindNumber},
		{"'2024-03-05'.asDate().year()", "2024", value.KindNumber},
		{"'05/03/2024'.asDate('dd/MM/yyyy').format('yyyy-MM-dd')", "2024-03-05", value.KindString},
		{"!true", "false", value.KindBool},
		{"not false and 1 == 1.0", "true", value.KindBool},
		{"x != 42 || name.startsWith('Al')", "true", value.KindBool},
		{"value('42') + 1", "43", value.KindNumber},
		{"name.regex('^(A)l')", "A", value.KindString},
		{"'a b c'.split(' ').length()", "3", value.KindNumber},
		{"'Hello World'.toSegment()", "hello-world", value.KindString},
		{"'abcdef'.substring(2, 4)", "cd", value.KindString},
		{"null()", "", value.KindNull},
		{"missing", "", value.KindNull},
	}
	for _, tc := range tests {
		t.Run(tc.src, func(t *testing.T) {
			got, err := eval(t, testContext(t), tc.src, false)
			require.NoError(t, err)
			assert.Equal(t, tc.kind, got.Kind(), value.Describe(got))
			assert.Equal(t, tc.want, got.String())
		})
	}
}

func TestEval_ArraysDistribute(t *testing.T) {
	ctx := testContext(t)

	got, err := eval(t, ctx, "arr.toUpperCase()", false)
	require.NoError(t, err)
	assert.Equal(t, value.Array{value.Str("A"), value.Str("B")}, got)

	got, err = eval(t, ctx, "concat('x', arr)", false)
	require.NoError(t, err)
	assert.Equal(t, value.Array{value.Str("xa"), value.Str("xb")}, got)

	got, err = eval(t, ctx, "arr + arr", false)
	require.NoError(t, err)
	assert.Len(t, got, 4)
}

func TestEval_ScriptAssignmentsStayLocal(t *testing.T) {
	ctx := testContext(t)

	got, err := eval(t, ctx, "y = x * 2; var z = y + 1; z", true)
	require.NoError(t, err)
	assert.Equal(t, "85", got.String())

	_, bound := ctx.Env.Lookup("y")
	assert.False(t, bound, "script bindings must not leak")
}

func TestEval_NoResultPropagates(t *testing.T) {
	_, err := eval(t, testContext(t), "name.regex('[0-9]+')", false)
	assert.True(t, value.IsNoResult(err))

	got, err := eval(t, testContext(t), "name.regex('[0-9]+') ?: 'none'", false)
	require.NoError(t, err)
	assert.Equal(t, value.Str("none"), got)
}

func TestEval_ErrorsAreValues(t *testing.T) {
	for _, src := range []string{"name.bogus()", "bogus(1)", "name - 1", "round(1, 'x')", "x.substring('a')"} {
		t.Run(src, func(t *testing.T) {
			got, err := eval(t, testContext(t), src, false)
			require.NoError(t, err)
			assert.Equal(t, value.KindError, got.Kind())
		})
	}
}

func TestEval_DivisionByZeroIsError(t *testing.T) {
	got, err := eval(t, testContext(t), "x / 0", false)
	require.NoError(t, err)
	assert.Equal(t, value.KindError, got.Kind())
}

func TestEval_Abort(t *testing.T) {
	_, err := eval(t, testContext(t), "x > 1 ? abort('too big') : x", false)
	require.Error(t, err)

	var abort *AbortError
	require.True(t, errors.As(err, &abort))
	assert.Equal(t, "too big", abort.Msg)
}

func TestEval_UUIDAndNow(t *testing.T) {
	ctx := testContext(t)
	ctx.IDs = fixedIDs{id: "id-1"}

	got, err := eval(t, ctx, "uuid()", false)
	require.NoError(t, err)
	assert.Equal(t, value.Str("id-1"), got)

	got, err = eval(t, ctx, "now()", false)
	require.NoError(t, err)
	d, ok := got.(value.Date)
	require.True(t, ok)
	assert.Equal(t, rdf.XSDDateTime, d.Datatype)
}

func TestEval_MapAndNodes(t *testing.T) {
	uk := rdf.NewURI("http://example.com/uk")
	ctx := testContext(t)
	ctx.Mapper = fakeMapper{"countries": {"UK": {uk}}}

	got, err := eval(t, ctx, "'UK'.map('countries')", false)
	require.NoError(t, err)
	assert.Equal(t, value.NodeOf(uk), got)

	got, err = eval(t, ctx, "'FR'.map('countries')", false)
	require.NoError(t, err)
	e, ok := got.(value.Error)
	require.True(t, ok)
	assert.True(t, e.Fatal)

	_, err = eval(t, ctx, "'FR'.map('countries', false)", false)
	assert.True(t, value.IsNoResult(err))

	got, err = eval(t, ctx, "'FR'.map(['countries'], 'other')", false)
	require.NoError(t, err)
	assert.Equal(t, value.Str("other"), got)

	got, err = eval(t, ctx, "'skos:Concept'.asURI()", false)
	require.NoError(t, err)
	assert.Equal(t, value.NodeOf(rdf.NewURI(rdf.NSSKOS+"Concept")), got)

	got, err = eval(t, ctx, "'3'.datatype('xsd:integer')", false)
	require.NoError(t, err)
	assert.Equal(t, value.NodeOf(rdf.TypedLiteral("3", rdf.XSDInteger)), got)

	got, err = eval(t, ctx, "'chat'.lang('fr')", false)
	require.NoError(t, err)
	assert.Equal(t, value.String{S: "chat", Lang: "fr"}, got)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		script bool
	}{
		{"dangling operator", "1 +", false},
		{"unclosed group", "(1", false},
		{"assignment in expression", "a = 1", false},
		{"two expressions", "a b", false},
		{"unterminated string", "'abc", false},
		{"lone ampersand", "a & b", false},
		{"empty", "   ", false},
		{"missing separator", "a = 1 b", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.src, tc.script)
			require.Error(t, err)
			var syn *SyntaxError
			assert.True(t, errors.As(err, &syn))
		})
	}
}

func TestProgram_Names(t *testing.T) {
	prog, err := Parse("a + b.trim() + f(c) + [d].each(v -> v + e)", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, prog.Names())

	prog, err = Parse("y = a; y + b", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, prog.Names())
}

func TestCache_ConcurrentCompile(t *testing.T) {
	c := NewCache()

	var wg sync.WaitGroup
	progs := make([]*Program, 16)
	for i := range progs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := c.Compile("x + 1", false)
			if err == nil {
				progs[i] = p
			}
		}(i)
	}
	wg.Wait()

	for _, p := range progs {
		assert.Same(t, progs[0], p)
	}
	assert.Equal(t, 1, c.Len())

	_, err := c.Compile("x +", false)
	assert.Error(t, err)
	assert.Equal(t, 1, c.Len(), "failures are not cached")

	s, err := c.Compile("x + 1", true)
	require.NoError(t, err)
	assert.NotSame(t, progs[0], s, "scripts and expressions are cached apart")
}
