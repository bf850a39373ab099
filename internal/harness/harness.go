package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/epimorphics/dclib-sub000/internal/convert"
	"github.com/epimorphics/dclib-sub000/internal/csvin"
	"github.com/epimorphics/dclib-sub000/internal/rdf"
	"github.com/epimorphics/dclib-sub000/internal/store"
	"github.com/epimorphics/dclib-sub000/internal/template"
	"github.com/epimorphics/dclib-sub000/internal/testutil"
)

// seedRunID is the store run holding a scenario's Graph statements.
const seedRunID = "seed"

// Harness is the test execution engine.
// It runs scenarios with a fixed clock and sequential ids so the same
// scenario always produces the same statements.
type Harness struct {
	store  *store.Store
	ids    *testutil.SequenceIDs
	clock  *testutil.FixedClock
	logger *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Deterministic helpers ensure reproducible results.
//
// Execution flow:
// 1. Create fresh in-memory database and store the scenario's graph
// 2. Load templates and build lookup sources
// 3. Convert the input, writing statements to the store
// 4. Check the expected outcome and evaluate assertions
//
// The returned error is reserved for scenarios that cannot be set up;
// template and conversion failures are part of the result.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:  st,
		ids:    testutil.NewSequenceIDs(),
		clock:  testutil.NewFixedClock(testutil.DefaultTime),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}

	if err := h.seed(ctx, scenario.Graph); err != nil {
		return nil, fmt.Errorf("failed to store scenario graph: %w", err)
	}

	result := NewResult()
	prefixes, runErr := h.convert(ctx, scenario, result)
	h.checkExpect(scenario.Expect, runErr, result)

	actx := &AssertionContext{
		Store:    st,
		Prefixes: prefixes,
		Ctx:      ctx,
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

// seed stores the scenario's graph statements under their own run.
func (h *Harness) seed(ctx context.Context, lines []string) error {
	if len(lines) == 0 {
		return nil
	}
	w, err := h.store.BeginRun(ctx, seedRunID, "scenario", "graph", h.clock.Now())
	if err != nil {
		return err
	}
	for i, line := range lines {
		t, err := rdf.ParseTriple(line)
		if err != nil {
			return fmt.Errorf("graph[%d]: %w", i, err)
		}
		if err := w.Emit(t); err != nil {
			return err
		}
	}
	return w.Finish(store.StatusSucceeded, h.clock.Now())
}

// convert loads the templates and runs the conversion, filling result.
// It returns the template prefixes, for assertions, and the error that
// ended the run early, if any.
func (h *Harness) convert(ctx context.Context, s *Scenario, result *Result) (*rdf.PrefixMap, error) {
	loader := template.NewLoader(template.WithLogger(h.logger))
	for _, path := range s.Templates {
		if err := loader.LoadFile(path); err != nil {
			return loader.Prefixes(), err
		}
	}

	opts := []convert.Option{
		convert.WithLogger(h.logger),
		convert.WithPrefixes(loader.Prefixes()),
		convert.WithIDGenerator(h.ids),
		convert.WithClock(h.clock),
		convert.WithRoot(s.Root),
		convert.WithMaxDepth(s.MaxDepth),
	}
	if s.Base != "" {
		opts = append(opts, convert.WithBase(s.Base))
	}
	for _, name := range sortedKeys(s.Bindings) {
		opts = append(opts, convert.WithBinding(name, s.Bindings[name]))
	}

	sources, err := convert.BuildSources(ctx, loader.Sources(), h.store, opts...)
	if err != nil {
		return loader.Prefixes(), err
	}
	opts = append(opts, convert.WithSources(sources))

	rows, err := h.open(s)
	if err != nil {
		return loader.Prefixes(), err
	}
	defer rows.Close()

	run := convert.New(loader.Registry(), opts...).NewRun(s.Name, rows)
	root, err := run.Root()
	if err != nil {
		return loader.Prefixes(), err
	}
	w, err := h.store.BeginRun(ctx, run.ID(), s.Name, template.Describe(root), run.Started())
	if err != nil {
		return loader.Prefixes(), err
	}

	sink := rdf.Tee(w, rdf.SinkFunc(func(t rdf.Triple) error {
		result.Statements = append(result.Statements, t.String())
		return nil
	}))
	res, runErr := run.Execute(ctx, sink)
	if res != nil {
		result.record(res)
		if err := w.Finish(string(res.Status), res.Finished); err != nil {
			return loader.Prefixes(), err
		}
	}
	return loader.Prefixes(), runErr
}

func (h *Harness) open(s *Scenario) (*csvin.Reader, error) {
	if s.Input != "" {
		return csvin.Open(s.Input)
	}
	return csvin.NewReader(strings.NewReader(s.CSV))
}

// checkExpect compares the run's outcome with the scenario's expectation.
func (h *Harness) checkExpect(want Expect, runErr error, result *Result) {
	if runErr != nil {
		result.RunError = runErr.Error()
	}

	switch {
	case want.Error != "" && runErr == nil:
		result.AddError(fmt.Sprintf("expected run error containing %q, run ended without error", want.Error))
	case want.Error != "" && !strings.Contains(runErr.Error(), want.Error):
		result.AddError(fmt.Sprintf("expected run error containing %q, got %q", want.Error, runErr.Error()))
	case want.Error == "" && runErr != nil:
		result.AddError(fmt.Sprintf("unexpected run error: %v", runErr))
	}

	if want.Status != "" && result.Status != want.Status {
		result.AddError(fmt.Sprintf("expected status %s, got %q", want.Status, result.Status))
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
