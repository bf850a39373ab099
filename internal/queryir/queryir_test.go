package queryir

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epimorphics/dclib-sub000/internal/rdf"
)

var (
	notation = rdf.NewURI(rdf.NSSKOS + "notation")
	concept  = rdf.NewURI(rdf.NSSKOS + "Concept")
	rdfType  = rdf.NewURI(rdf.RDFType)
)

func lookupQuery() *Select {
	return &Select{
		Patterns: []Pattern{
			{S: Var("s"), P: Const(notation), O: Var("key")},
			{S: Var("s"), P: Const(rdfType), O: Const(concept)},
		},
		Project: []string{"s", "key"},
	}
}

func TestValidate_WellFormed(t *testing.T) {
	res := Validate(lookupQuery())
	assert.True(t, res.Valid)
	assert.Empty(t, res.Problems)
}

func TestValidate_Problems(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(q *Select)
		want   string
	}{
		{"no patterns", func(q *Select) { q.Patterns = nil; q.Project = nil }, "no triple patterns"},
		{"unknown projection", func(q *Select) { q.Project = []string{"x"} }, "?x does not occur"},
		{"literal subject", func(q *Select) { q.Patterns[0].S = Const(rdf.PlainLiteral("a")) }, "literal in subject"},
		{"literal predicate", func(q *Select) { q.Patterns[0].P = Const(rdf.PlainLiteral("p")) }, "predicate must be a URI"},
		{"missing term", func(q *Select) { q.Patterns[1].O = nil }, "missing term"},
		{"unknown filter var", func(q *Select) { q.Filter = &Equals{Var: "z", Value: concept} }, "?z does not occur"},
		{"negative limit", func(q *Select) { q.Limit = -1 }, "negative limit"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			q := lookupQuery()
			tc.mutate(q)
			res := Validate(q)
			require.False(t, res.Valid)
			assert.Contains(t, strings.Join(res.Problems, "\n"), tc.want)
		})
	}
}

func TestValidate_NestedFilters(t *testing.T) {
	q := lookupQuery()
	q.Filter = &And{Predicates: []Predicate{
		&Equals{Var: "key", Value: rdf.PlainLiteral("A1")},
		&NotEquals{Var: "s", Value: rdf.NewURI("http://example.com/x")},
	}}
	assert.True(t, Validate(q).Valid)
}

func TestValidate_NilQuery(t *testing.T) {
	var q *Select
	res := Validate(q)
	assert.False(t, res.Valid)
}

func TestSelect_Vars(t *testing.T) {
	q := lookupQuery()
	q.Patterns = append(q.Patterns, Pattern{S: Var("s"), P: Var("p"), O: Var("o")})
	assert.Equal(t, []string{"s", "key", "p", "o"}, q.Vars())
}
