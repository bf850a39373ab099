package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/epimorphics/dclib-sub000/internal/queryir"
	"github.com/epimorphics/dclib-sub000/internal/querysql"
	"github.com/epimorphics/dclib-sub000/internal/rdf"
)

// Run is a recorded conversion run.
type Run struct {
	ID         string
	Source     string
	Template   string
	StartedAt  time.Time
	FinishedAt *time.Time
	Status     string
	Triples    int
}

// Runs returns all recorded runs ordered by id.
//
// Returns an empty slice (not nil) if no runs exist.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, template, started_at, finished_at, status, triple_count
		FROM runs
		ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var (
			r        Run
			started  string
			finished sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Source, &r.Template, &started, &finished, &r.Status, &r.Triples); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if r.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("run %s: bad start time: %w", r.ID, err)
		}
		if finished.Valid {
			ft, err := time.Parse(time.RFC3339Nano, finished.String)
			if err != nil {
				return nil, fmt.Errorf("run %s: bad finish time: %w", r.ID, err)
			}
			r.FinishedAt = &ft
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// Triples returns the statements of a run in emission order. An empty
// runID returns the statements of every run.
func (s *Store) Triples(ctx context.Context, runID string) ([]rdf.Triple, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if runID == "" {
		rows, err = s.db.QueryContext(ctx, `
			SELECT s, p, o FROM triples
			ORDER BY seq ASC
		`)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT s, p, o FROM triples
			WHERE run_id = ?
			ORDER BY seq ASC
		`, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("query triples: %w", err)
	}
	defer rows.Close()
	return scanTriples(rows)
}

// Describe returns the distinct statements about subject, in order of
// first emission.
func (s *Store) Describe(ctx context.Context, subject rdf.Node) ([]rdf.Triple, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s, p, o FROM triples
		WHERE s = ?
		GROUP BY s, p, o
		ORDER BY MIN(seq) ASC
	`, subject.String())
	if err != nil {
		return nil, fmt.Errorf("describe %s: %w", subject, err)
	}
	defer rows.Close()
	return scanTriples(rows)
}

// Select runs a graph query over the stored statements.
func (s *Store) Select(ctx context.Context, q *queryir.Select) ([]queryir.Solution, error) {
	query, params, err := querysql.NewSQLCompiler().Compile(q)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}
	defer rows.Close()

	solutions := []queryir.Solution{}
	terms := make([]string, len(q.Project))
	dest := make([]any, len(q.Project))
	for i := range terms {
		dest[i] = &terms[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan solution: %w", err)
		}
		sol := make(queryir.Solution, len(terms))
		for i, term := range terms {
			n, err := rdf.ParseTerm(term)
			if err != nil {
				return nil, fmt.Errorf("solution ?%s: %w", q.Project[i], err)
			}
			sol[q.Project[i]] = n
		}
		solutions = append(solutions, sol)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate solutions: %w", err)
	}
	return solutions, nil
}

func scanTriples(rows *sql.Rows) ([]rdf.Triple, error) {
	triples := []rdf.Triple{}
	for rows.Next() {
		var s, p, o string
		if err := rows.Scan(&s, &p, &o); err != nil {
			return nil, fmt.Errorf("scan triple: %w", err)
		}
		t, err := parseTriple(s, p, o)
		if err != nil {
			return nil, err
		}
		triples = append(triples, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate triples: %w", err)
	}
	return triples, nil
}

func parseTriple(s, p, o string) (rdf.Triple, error) {
	return rdf.ParseTriple(s + " " + p + " " + o)
}
