package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epimorphics/dclib-sub000/internal/queryir"
	"github.com/epimorphics/dclib-sub000/internal/rdf"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

var (
	start    = time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	notation = rdf.NewURI(rdf.NSSKOS + "notation")
	label    = rdf.NewURI(rdf.NSSKOS + "prefLabel")
	typ      = rdf.NewURI(rdf.RDFType)
	concept  = rdf.NewURI(rdf.NSSKOS + "Concept")
)

func ex(local string) rdf.URI { return rdf.NewURI("http://example.com/" + local) }

func writeRun(t *testing.T, s *Store, id string, triples ...rdf.Triple) {
	t.Helper()
	ctx := context.Background()
	w, err := s.BeginRun(ctx, id, "input.csv", "template.json", start)
	require.NoError(t, err)
	for _, tr := range triples {
		require.NoError(t, w.Emit(tr))
	}
	require.NoError(t, w.Finish(StatusSucceeded, start.Add(time.Second)))
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err, "database file was not created")
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	for i := 0; i < 3; i++ {
		s, err := Open(path)
		require.NoError(t, err, "Open() iteration %d", i)
		s.Close()
	}
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)
	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("foreign_keys", "1"))
	assert.NoError(t, s.verifyPragma("user_version", "1"))
}

func TestRunWriter_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	want := []rdf.Triple{
		{S: ex("a"), P: typ, O: concept},
		{S: ex("a"), P: label, O: rdf.LangLiteral("Alpha \"one\"", "en")},
		{S: rdf.Blank{ID: "b1"}, P: notation, O: rdf.TypedLiteral("0042", rdf.XSDInteger)},
	}
	writeRun(t, s, "run-1", want...)

	got, err := s.Triples(ctx, "run-1")
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Triples() mismatch (-want +got):\n%s", diff)
	}

	runs, err := s.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, StatusSucceeded, runs[0].Status)
	assert.Equal(t, 3, runs[0].Triples)
	assert.True(t, runs[0].StartedAt.Equal(start))
	require.NotNil(t, runs[0].FinishedAt)
}

func TestTriples_AllRunsInEmissionOrder(t *testing.T) {
	s := createTestStore(t)
	writeRun(t, s, "run-1", rdf.Triple{S: ex("a"), P: typ, O: concept})
	writeRun(t, s, "run-2", rdf.Triple{S: ex("b"), P: typ, O: concept})

	got, err := s.Triples(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, ex("a"), got[0].S)
	assert.Equal(t, ex("b"), got[1].S)

	empty, err := s.Triples(context.Background(), "missing")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestDescribe_DistinctInFirstEmissionOrder(t *testing.T) {
	s := createTestStore(t)
	a := rdf.Triple{S: ex("a"), P: typ, O: concept}
	b := rdf.Triple{S: ex("a"), P: label, O: rdf.PlainLiteral("Alpha")}
	writeRun(t, s, "run-1", a, b, rdf.Triple{S: ex("c"), P: typ, O: concept})
	writeRun(t, s, "run-2", b, a)

	got, err := s.Describe(context.Background(), ex("a"))
	require.NoError(t, err)
	assert.Equal(t, []rdf.Triple{a, b}, got)
}

func TestSelect_GraphLookupQuery(t *testing.T) {
	s := createTestStore(t)
	writeRun(t, s, "run-1",
		rdf.Triple{S: ex("b"), P: notation, O: rdf.PlainLiteral("B2")},
		rdf.Triple{S: ex("b"), P: typ, O: concept},
		rdf.Triple{S: ex("a"), P: notation, O: rdf.PlainLiteral("A1")},
		rdf.Triple{S: ex("a"), P: typ, O: concept},
		rdf.Triple{S: ex("x"), P: notation, O: rdf.PlainLiteral("X9")},
	)

	q := &queryir.Select{
		Patterns: []queryir.Pattern{
			{S: queryir.Var("s"), P: queryir.Const(notation), O: queryir.Var("key")},
			{S: queryir.Var("s"), P: queryir.Const(typ), O: queryir.Const(concept)},
		},
		Project: []string{"s", "key"},
	}
	got, err := s.Select(context.Background(), q)
	require.NoError(t, err)
	want := []queryir.Solution{
		{"s": ex("a"), "key": rdf.PlainLiteral("A1")},
		{"s": ex("b"), "key": rdf.PlainLiteral("B2")},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Select() mismatch (-want +got):\n%s", diff)
	}
}

func TestDeleteRun_RemovesTriples(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	writeRun(t, s, "run-1", rdf.Triple{S: ex("a"), P: typ, O: concept})

	require.NoError(t, s.DeleteRun(ctx, "run-1"))
	got, err := s.Triples(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestBeginRun_DuplicateID(t *testing.T) {
	s := createTestStore(t)
	writeRun(t, s, "run-1")
	_, err := s.BeginRun(context.Background(), "run-1", "x.csv", "t.json", start)
	assert.Error(t, err)
}
