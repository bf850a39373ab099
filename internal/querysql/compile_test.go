package querysql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epimorphics/dclib-sub000/internal/queryir"
	"github.com/epimorphics/dclib-sub000/internal/rdf"
)

var (
	notation = rdf.NewURI(rdf.NSSKOS + "notation")
	concept  = rdf.NewURI(rdf.NSSKOS + "Concept")
	rdfType  = rdf.NewURI(rdf.RDFType)
)

func TestCompile_SinglePattern(t *testing.T) {
	q := &queryir.Select{
		Patterns: []queryir.Pattern{{S: queryir.Var("s"), P: queryir.Const(notation), O: queryir.Var("key")}},
		Project:  []string{"s", "key"},
	}
	sql, params, err := NewSQLCompiler().Compile(q)
	require.NoError(t, err)
	assert.Equal(t,
		`SELECT DISTINCT t0.s AS "s", t0.o AS "key" FROM triples AS t0 WHERE t0.p = ? ORDER BY t0.s COLLATE BINARY ASC, t0.o COLLATE BINARY ASC`,
		sql)
	assert.Equal(t, []any{"<" + rdf.NSSKOS + "notation>"}, params)
}

func TestCompile_JoinOnSharedVariable(t *testing.T) {
	q := &queryir.Select{
		Patterns: []queryir.Pattern{
			{S: queryir.Var("s"), P: queryir.Const(notation), O: queryir.Var("key")},
			{S: queryir.Var("s"), P: queryir.Const(rdfType), O: queryir.Const(concept)},
		},
		Filter:  &queryir.Equals{Var: "key", Value: rdf.PlainLiteral("A1")},
		Project: []string{"s"},
		Limit:   10,
	}
	sql, params, err := NewSQLCompiler().Compile(q)
	require.NoError(t, err)
	assert.Equal(t,
		`SELECT DISTINCT t0.s AS "s" FROM triples AS t0, triples AS t1 WHERE t0.p = ? AND t1.s = t0.s AND t1.p = ? AND t1.o = ? AND t0.o = ? ORDER BY t0.s COLLATE BINARY ASC LIMIT ?`,
		sql)
	assert.Equal(t, []any{
		"<" + rdf.NSSKOS + "notation>",
		"<" + rdf.RDFType + ">",
		"<" + rdf.NSSKOS + "Concept>",
		`"A1"`,
		10,
	}, params)
}

func TestCompile_AndFilter(t *testing.T) {
	q := &queryir.Select{
		Patterns: []queryir.Pattern{{S: queryir.Var("s"), P: queryir.Var("p"), O: queryir.Var("o")}},
		Filter: &queryir.And{Predicates: []queryir.Predicate{
			&queryir.Equals{Var: "p", Value: rdfType},
			&queryir.NotEquals{Var: "o", Value: concept},
		}},
		Project: []string{"s"},
	}
	sql, params, err := NewSQLCompiler().Compile(q)
	require.NoError(t, err)
	assert.Contains(t, sql, "WHERE (t0.p = ? AND t0.o <> ?)")
	assert.Len(t, params, 2)
}

func TestCompile_RejectsInvalidQueries(t *testing.T) {
	_, _, err := NewSQLCompiler().Compile(nil)
	assert.Error(t, err)

	_, _, err = NewSQLCompiler().Compile(&queryir.Select{Project: []string{"s"}})
	assert.ErrorContains(t, err, "no triple patterns")
}

func TestCompile_CustomTable(t *testing.T) {
	c := &SQLCompiler{Table: "staging"}
	sql, _, err := c.Compile(&queryir.Select{
		Patterns: []queryir.Pattern{{S: queryir.Var("s"), P: queryir.Const(rdfType), O: queryir.Var("o")}},
		Project:  []string{"o"},
	})
	require.NoError(t, err)
	assert.Contains(t, sql, "FROM staging AS t0")
}
