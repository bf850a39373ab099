package rdf

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	s1 = NewURI("http://example.com/s1")
	s2 = NewURI("http://example.com/s2")
	pl = NewURI(RDFSLabel)
	pt = NewURI(RDFType)
)

func TestGraph(t *testing.T) {
	g := NewGraph()
	triples := []Triple{
		{S: s1, P: pl, O: PlainLiteral("one")},
		{S: s1, P: pt, O: NewURI(NSSKOS + "Concept")},
		{S: s2, P: pl, O: PlainLiteral("two")},
	}
	for _, tr := range triples {
		require.NoError(t, g.Emit(tr))
	}

	assert.Equal(t, 3, g.Len())
	if diff := cmp.Diff(triples, g.Triples()); diff != "" {
		t.Errorf("emission order mismatch (-want +got):\n%s", diff)
	}

	assert.Len(t, g.Match(s1, nil, nil), 2)
	assert.Len(t, g.Match(nil, &pl, nil), 2)
	assert.Equal(t, triples[2:], g.Match(nil, nil, PlainLiteral("two")))
	assert.Empty(t, g.Match(s2, &pt, nil))

	// Triples returns a copy.
	got := g.Triples()
	got[0] = Triple{}
	assert.Equal(t, triples[0], g.Triples()[0])
}

func TestWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.Emit(Triple{S: s1, P: pl, O: LangLiteral("un", "fr")}))
	require.NoError(t, w.Emit(Triple{S: Blank{ID: "b1"}, P: pt, O: s2}))
	assert.Empty(t, buf.String(), "output is buffered until Flush")

	require.NoError(t, w.Flush())
	assert.Equal(t,
		"<http://example.com/s1> <http://www.w3.org/2000/01/rdf-schema#label> \"un\"@fr .\n"+
			"_:b1 <http://www.w3.org/1999/02/22-rdf-syntax-ns#type> <http://example.com/s2> .\n",
		buf.String())
}

func TestTee(t *testing.T) {
	a, b := NewGraph(), NewGraph()
	tr := Triple{S: s1, P: pl, O: PlainLiteral("x")}

	require.NoError(t, Tee(a, b).Emit(tr))
	assert.Equal(t, 1, a.Len())
	assert.Equal(t, 1, b.Len())

	boom := errors.New("boom")
	c := NewGraph()
	failing := SinkFunc(func(Triple) error { return boom })
	err := Tee(a, failing, c).Emit(tr)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, a.Len())
	assert.Equal(t, 0, c.Len(), "sinks after a failure are skipped")
}
