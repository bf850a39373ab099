package store

import (
	"context"
	"fmt"
	"time"

	"github.com/epimorphics/dclib-sub000/internal/rdf"
)

// Run status values.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusAborted   = "aborted"
)

// RunWriter appends the statements of one run. It implements rdf.Sink.
//
// A RunWriter is not safe for concurrent use.
type RunWriter struct {
	store *Store
	ctx   context.Context
	runID string
	count int
}

// BeginRun records a new run and returns a writer for its statements.
// The run id must be unique; callers use UUIDv7 ids so runs sort by start.
func (s *Store) BeginRun(ctx context.Context, runID, source, template string, started time.Time) (*RunWriter, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, source, template, started_at, status)
		VALUES (?, ?, ?, ?, ?)
	`,
		runID,
		source,
		template,
		started.UTC().Format(time.RFC3339Nano),
		StatusRunning,
	)
	if err != nil {
		return nil, fmt.Errorf("begin run: %w", err)
	}
	return &RunWriter{store: s, ctx: ctx, runID: runID}, nil
}

// RunID returns the id of the run being written.
func (w *RunWriter) RunID() string { return w.runID }

// Count returns the number of statements written so far.
func (w *RunWriter) Count() int { return w.count }

// Emit appends t to the run.
func (w *RunWriter) Emit(t rdf.Triple) error {
	_, err := w.store.db.ExecContext(w.ctx, `
		INSERT INTO triples (run_id, s, p, o)
		VALUES (?, ?, ?, ?)
	`,
		w.runID,
		t.S.String(),
		t.P.String(),
		t.O.String(),
	)
	if err != nil {
		return fmt.Errorf("write triple: %w", err)
	}
	w.count++
	return nil
}

// Finish records the run's final status and statement count.
func (w *RunWriter) Finish(status string, finished time.Time) error {
	_, err := w.store.db.ExecContext(w.ctx, `
		UPDATE runs
		SET status = ?, finished_at = ?, triple_count = ?
		WHERE id = ?
	`,
		status,
		finished.UTC().Format(time.RFC3339Nano),
		w.count,
		w.runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// DeleteRun removes a run and its statements.
func (s *Store) DeleteRun(ctx context.Context, runID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, runID); err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	return nil
}
