package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/epimorphics/dclib-sub000/internal/csvin"
	"github.com/epimorphics/dclib-sub000/internal/env"
	"github.com/epimorphics/dclib-sub000/internal/lookup"
	"github.com/epimorphics/dclib-sub000/internal/pattern"
	"github.com/epimorphics/dclib-sub000/internal/rdf"
	"github.com/epimorphics/dclib-sub000/internal/template"
	"github.com/epimorphics/dclib-sub000/internal/value"
)

// DefaultMaxDepth is the default limit on nested template delegation.
const DefaultMaxDepth = template.DefaultMaxDepth

// DefaultBase is the base URI used when none is configured.
const DefaultBase = "http://localhost/dclib/"

// Binding is a name bound in the root environment of every run.
type Binding struct {
	Name  string
	Value string
}

// Converter runs templates over input files.
//
// A Converter is immutable once built and may start any number of runs,
// one after another or concurrently; each Run owns its mutable state.
type Converter struct {
	registry *template.Registry
	prefixes *rdf.PrefixMap
	sources  *lookup.Registry
	logger   *slog.Logger
	ids      IDGenerator
	clock    Clock
	maxDepth int
	base     string
	root     string
	bindings []Binding
}

// Option configures a Converter.
type Option func(*Converter)

// WithLogger sets the logger for run progress and row failures.
func WithLogger(l *slog.Logger) Option {
	return func(c *Converter) { c.logger = l }
}

// WithPrefixes sets the prefixes used to expand URI patterns.
func WithPrefixes(pm *rdf.PrefixMap) Option {
	return func(c *Converter) { c.prefixes = pm }
}

// WithSources sets the lookup sources map() resolves against.
func WithSources(reg *lookup.Registry) Option {
	return func(c *Converter) { c.sources = reg }
}

// WithIDGenerator sets the generator for run ids, uuid() and blank nodes.
func WithIDGenerator(g IDGenerator) Option {
	return func(c *Converter) { c.ids = g }
}

// WithClock sets the clock $now is read from.
func WithClock(clk Clock) Option {
	return func(c *Converter) { c.clock = clk }
}

// WithMaxDepth sets the maximum template delegation depth.
//
// Default: 64 (DefaultMaxDepth)
func WithMaxDepth(n int) Option {
	return func(c *Converter) {
		if n > 0 {
			c.maxDepth = n
		}
	}
}

// WithBase sets $base. $dataset is derived from it unless bound
// explicitly.
func WithBase(base string) Option {
	return func(c *Converter) { c.base = base }
}

// WithRoot names the root template instead of selecting it from the
// file's columns.
func WithRoot(name string) Option {
	return func(c *Converter) { c.root = name }
}

// WithBinding binds name to the value converted from raw in every run.
// Later bindings of the same name win.
func WithBinding(name, raw string) Option {
	return func(c *Converter) { c.bindings = append(c.bindings, Binding{Name: name, Value: raw}) }
}

// New creates a converter over the templates of reg.
func New(reg *template.Registry, opts ...Option) *Converter {
	c := &Converter{
		registry: reg,
		logger:   slog.Default(),
		ids:      UUIDv7Generator{},
		clock:    SystemClock{},
		maxDepth: DefaultMaxDepth,
		base:     DefaultBase,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.prefixes == nil {
		c.prefixes = rdf.NewPrefixMap()
	}
	if c.sources == nil {
		c.sources = lookup.NewRegistry()
	}
	return c
}

// RowState tracks one row through a run.
type RowState int

const (
	RowReady RowState = iota
	RowApplying
	RowEmitted
	RowSkipped
	RowFailed
)

func (s RowState) String() string {
	switch s {
	case RowReady:
		return "ready"
	case RowApplying:
		return "applying"
	case RowEmitted:
		return "emitted"
	case RowSkipped:
		return "skipped"
	case RowFailed:
		return "failed"
	default:
		return fmt.Sprintf("RowState(%d)", int(s))
	}
}

// RowResult is the outcome of one row.
type RowResult struct {
	Number  int
	Line    int
	State   RowState
	Subject rdf.Node
}

// Status is the outcome of a run.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusAborted   Status = "aborted"
)

// Result summarizes a finished run.
type Result struct {
	RunID       string
	File        string
	Template    string
	Started     time.Time
	Finished    time.Time
	Status      Status
	Rows        []RowResult
	Statements  int
	Diagnostics []Diagnostic
}

// Count returns the number of rows that ended in state s.
func (r *Result) Count(s RowState) int {
	n := 0
	for _, row := range r.Rows {
		if row.State == s {
			n++
		}
	}
	return n
}

// Run is one conversion of one input. Create it with NewRun.
type Run struct {
	conv *Converter
	id   string
	file string
	rows *csvin.Reader
	now  time.Time
	root template.Template
}

// NewRun prepares a run over rows. file is bound as $file.
func (c *Converter) NewRun(file string, rows *csvin.Reader) *Run {
	return &Run{
		conv: c,
		id:   c.ids.Generate(),
		file: file,
		rows: rows,
		now:  c.clock.Now(),
	}
}

// Convert runs the conversion of rows into sink in one call.
func (c *Converter) Convert(ctx context.Context, file string, rows *csvin.Reader, sink rdf.Sink) (*Result, error) {
	return c.NewRun(file, rows).Execute(ctx, sink)
}

// ID returns the run id.
func (r *Run) ID() string { return r.id }

// Started returns the time the run was created; $now is bound to it.
func (r *Run) Started() time.Time { return r.now }

// Root resolves the template the run applies: the one named by WithRoot,
// or the first top-level template whose required columns the file has.
func (r *Run) Root() (template.Template, error) {
	if r.root != nil {
		return r.root, nil
	}
	t, err := r.conv.registry.Root(r.conv.root, r.rows.Header())
	if err != nil {
		return nil, err
	}
	r.root = t
	return t, nil
}

// Execute converts every row, writing statements to sink.
//
// The returned error is reserved for failures that end the run early: no
// root template, a failed preamble, abort(), an unreadable row or a
// cancelled context. Row failures are recorded in the Result, whose Status
// is then StatusFailed.
func (r *Run) Execute(ctx context.Context, sink rdf.Sink) (*Result, error) {
	c := r.conv
	root, err := r.Root()
	if err != nil {
		return nil, err
	}

	res := &Result{
		RunID:    r.id,
		File:     r.file,
		Template: template.Describe(root),
		Started:  r.now,
	}
	counter := &countingSink{sink: sink}
	diags := NewDiagnostics(c.logger)
	globals := r.seedGlobals()
	pctx := &pattern.Context{
		Env:      globals,
		Mapper:   c.sources.Resolver(counter),
		Prefixes: c.prefixes,
		IDs:      c.ids,
		Now:      r.now,
		Reporter: diags,
		Blanks:   pattern.NewBlankCache(c.ids),
	}
	disp := template.NewDispatcher(c.registry, counter,
		template.WithDepthLimit(c.maxDepth),
		template.WithDispatchLogger(c.logger),
	)
	finish := func(status Status) *Result {
		res.Status = status
		res.Finished = c.clock.Now()
		res.Statements = counter.n
		res.Diagnostics = diags.Items()
		c.logger.Info("conversion finished",
			"run", r.id,
			"status", string(status),
			"rows", len(res.Rows),
			"failed", res.Count(RowFailed),
			"statements", counter.n,
		)
		return res
	}

	c.logger.Info("conversion started", "run", r.id, "file", r.file, "template", res.Template)

	diags.Begin(0, 0)
	dataset := globals.Get(env.DatasetName)
	base := globals.Get(env.BaseName)
	if err := disp.Preamble(pctx, root); err != nil {
		re := newRowError(0, 0, err)
		diags.Fail(re)
		return finish(StatusFailed), fmt.Errorf("preamble: %w", re)
	}
	if diags.RowFailed() {
		return finish(StatusFailed), errors.New("preamble: " + firstError(diags.Items()))
	}
	// A template that rebinds $base without binding $dataset moves the
	// dataset with it.
	if !sameValue(globals.Get(env.BaseName), base) && sameValue(globals.Get(env.DatasetName), dataset) {
		globals.Bind(env.DatasetName, value.Str(datasetFor(globals.Get(env.BaseName).String())))
	}

	for {
		if err := ctx.Err(); err != nil {
			return finish(StatusAborted), err
		}
		row, err := r.rows.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return finish(StatusFailed), fmt.Errorf("read row: %w", err)
		}
		rr, err := r.applyRow(pctx, disp, diags, counter, root, row)
		res.Rows = append(res.Rows, rr)
		if err != nil {
			return finish(StatusAborted), err
		}
	}

	if diags.HasErrors() {
		return finish(StatusFailed), nil
	}
	return finish(StatusSucceeded), nil
}

// applyRow applies root to one row. It returns an error only when the row
// stops the run.
func (r *Run) applyRow(pctx *pattern.Context, disp *template.Dispatcher, diags *Diagnostics, counter *countingSink, root template.Template, row *csvin.Row) (RowResult, error) {
	rr := RowResult{Number: row.Number, Line: row.Line, State: RowReady}

	e := pctx.Env.Child()
	e.Bind(env.RowName, value.Int(int64(row.Number)))
	for _, cell := range row.Cells {
		e.Bind(cell.Column, value.FromLexical(cell.Raw))
	}

	diags.Begin(row.Number, row.Line)
	rr.State = RowApplying
	before := counter.n
	subject, err := safeApply(disp, pctx.WithEnv(e), root)
	switch {
	case err != nil:
		re := newRowError(row.Number, row.Line, err)
		diags.Fail(re)
		rr.State = RowFailed
		if re.Code == ErrCodeAborted {
			return rr, re
		}
	case diags.RowFailed():
		rr.State = RowFailed
	case subject == nil && counter.n == before:
		diags.Fail(&RowError{
			Code:    ErrCodeNoTemplate,
			Row:     row.Number,
			Line:    row.Line,
			Message: "no template matched the row",
		})
		rr.State = RowFailed
	case counter.n == before:
		rr.Subject = subject
		rr.State = RowSkipped
	default:
		rr.Subject = subject
		rr.State = RowEmitted
	}
	return rr, nil
}

// safeApply applies root to one row, turning a panic into an error so the
// row fails and the run moves on.
func safeApply(disp *template.Dispatcher, ctx *pattern.Context, root template.Template) (subject rdf.Node, err error) {
	defer func() {
		if r := recover(); r != nil {
			subject, err = nil, fmt.Errorf("panic during row: %v", r)
		}
	}()
	return disp.Apply(ctx, root)
}

// seedGlobals builds the root environment: $base, the caller's bindings,
// the file's metadata rows, then $dataset unless one of those bound it,
// $file and $now.
func (r *Run) seedGlobals() *env.Env {
	c := r.conv
	root := env.New()
	root.Bind(env.BaseName, value.Str(c.base))
	for _, b := range c.bindings {
		root.Bind(b.Name, value.FromLexical(b.Value))
	}
	for _, md := range r.rows.Metadata() {
		root.Bind(metadataName(md.Name), value.FromLexical(md.Value))
	}
	if !root.IsLocal(env.DatasetName) {
		root.Bind(env.DatasetName, value.Str(datasetFor(root.Get(env.BaseName).String())))
	}
	root.Bind(env.FileName, value.Str(r.file))
	root.Bind(env.NowName, value.Date{T: r.now, Datatype: rdf.XSDDateTime, HasTZ: true})
	return root
}

// metadataName keeps a leading '$' so "#$base,..." rows rebind $base.
func metadataName(name string) string {
	if strings.HasPrefix(name, "$") {
		return "$" + csvin.SafeName(name[1:])
	}
	return csvin.SafeName(name)
}

// datasetFor derives the dataset node from a base URI by dropping its
// trailing separator.
func datasetFor(base string) string {
	return strings.TrimRight(base, "/#")
}

func sameValue(a, b value.Value) bool {
	return a.Kind() == b.Kind() && a.String() == b.String()
}

func firstError(items []Diagnostic) string {
	for _, d := range items {
		if d.Severity == SeverityError {
			return d.Message
		}
	}
	return "failed"
}

// countingSink counts the statements it forwards.
type countingSink struct {
	sink rdf.Sink
	n    int
}

func (s *countingSink) Emit(t rdf.Triple) error {
	if err := s.sink.Emit(t); err != nil {
		return err
	}
	s.n++
	return nil
}
