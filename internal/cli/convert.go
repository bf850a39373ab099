package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/epimorphics/dclib-sub000/internal/convert"
	"github.com/epimorphics/dclib-sub000/internal/csvin"
	"github.com/epimorphics/dclib-sub000/internal/rdf"
	"github.com/epimorphics/dclib-sub000/internal/store"
	"github.com/epimorphics/dclib-sub000/internal/template"
)

// ConvertOptions holds flags for the convert command.
type ConvertOptions struct {
	*RootOptions
	Templates []string
	Root      string
	Base      string
	Out       string
	Database  string
	Bindings  []string
	MaxDepth  int
	Delimiter string

	// IDs and Clock override the run id generator and clock (for testing).
	IDs   convert.IDGenerator
	Clock convert.Clock
}

// ConvertSummary reports the outcome of a conversion.
type ConvertSummary struct {
	RunID       string               `json:"run_id"`
	File        string               `json:"file"`
	Template    string               `json:"template"`
	Status      string               `json:"status"`
	Rows        int                  `json:"rows"`
	Emitted     int                  `json:"emitted"`
	Skipped     int                  `json:"skipped"`
	Failed      int                  `json:"failed"`
	Statements  int                  `json:"statements"`
	Diagnostics []convert.Diagnostic `json:"diagnostics,omitempty"`
}

func (s ConvertSummary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s: %s\n", s.RunID, s.Status)
	fmt.Fprintf(&b, "  file: %s\n", s.File)
	fmt.Fprintf(&b, "  template: %s\n", s.Template)
	fmt.Fprintf(&b, "  rows: %d (emitted %d, skipped %d, failed %d)\n", s.Rows, s.Emitted, s.Skipped, s.Failed)
	fmt.Fprintf(&b, "  statements: %d", s.Statements)
	for _, d := range s.Diagnostics {
		fmt.Fprintf(&b, "\n  row %d: %s", d.Row, d.Severity)
		if d.Code != "" {
			fmt.Fprintf(&b, " [%s]", d.Code)
		}
		fmt.Fprintf(&b, " %s", d.Message)
	}
	return b.String()
}

// NewConvertCommand creates the convert command.
func NewConvertCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ConvertOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "convert <csv-file>",
		Short: "Convert a CSV file to N-Triples",
		Long: `Convert a CSV file to RDF using one or more templates.

Statements are written as N-Triples to --out, or to stdout. The run summary
goes to stdout when --out is set and to stderr otherwise. With --db the
statements are also recorded in a SQLite store, which graph lookup sources
query.

Exit codes:
  0 - Every row converted
  1 - Row errors, template errors, or the run was aborted
  2 - Command error (bad flags, missing files, etc.)

Examples:
  dclib convert -t mapping.json data.csv
  dclib convert -t templates/ --root concept --base http://example.com/ data.csv
  dclib convert -t mapping.json --bind scheme=http://example.com/scheme --out out.nt data.csv
  dclib convert -t mapping.json --db ./dclib.db --format json data.csv`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Templates, "template", "t", nil, "template file or directory (repeatable)")
	cmd.Flags().StringVar(&opts.Root, "root", "", "name of the root template (default: chosen from the CSV header)")
	cmd.Flags().StringVar(&opts.Base, "base", "", "base URI bound as $base")
	cmd.Flags().StringVarP(&opts.Out, "out", "o", "", "output file for N-Triples (default: stdout)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite store to record the run in")
	cmd.Flags().StringArrayVar(&opts.Bindings, "bind", nil, "bind a global as name=value (repeatable)")
	cmd.Flags().IntVar(&opts.MaxDepth, "max-depth", convert.DefaultMaxDepth, "maximum template delegation depth")
	cmd.Flags().StringVar(&opts.Delimiter, "delimiter", ",", "CSV field delimiter")
	_ = cmd.MarkFlagRequired("template")

	return cmd
}

func runConvert(opts *ConvertOptions, csvPath string, cmd *cobra.Command) error {
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	bindings, err := parseBindings(opts.Bindings)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --bind", err)
	}
	comma, err := parseDelimiter(opts.Delimiter)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --delimiter", err)
	}

	loader, errs := LoadTemplates(opts.Templates, logger, LoadModeFailFast)
	if loader == nil {
		return WrapExitError(ExitCommandError, "failed to find templates", errs[0])
	}
	if len(errs) > 0 {
		return WrapExitError(ExitFailure, "failed to load templates", errs[0])
	}

	rows, err := csvin.Open(csvPath, csvin.WithComma(comma))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open input", err)
	}
	defer rows.Close()

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, aborting run", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	var (
		st    *store.Store
		graph template.GraphStore
	)
	if opts.Database != "" {
		st, err = store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
		graph = st
	}

	convOpts := []convert.Option{
		convert.WithLogger(logger),
		convert.WithPrefixes(loader.Prefixes()),
		convert.WithRoot(opts.Root),
		convert.WithMaxDepth(opts.MaxDepth),
	}
	if opts.Base != "" {
		convOpts = append(convOpts, convert.WithBase(opts.Base))
	}
	if opts.IDs != nil {
		convOpts = append(convOpts, convert.WithIDGenerator(opts.IDs))
	}
	if opts.Clock != nil {
		convOpts = append(convOpts, convert.WithClock(opts.Clock))
	}
	for _, b := range bindings {
		convOpts = append(convOpts, convert.WithBinding(b.Name, b.Value))
	}

	sources, err := convert.BuildSources(ctx, loader.Sources(), graph, convOpts...)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to build lookup sources", err)
	}
	convOpts = append(convOpts, convert.WithSources(sources))

	out, closeOut, err := openOutput(opts.Out, cmd.OutOrStdout())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open output", err)
	}
	defer closeOut()

	f := formatter(opts.RootOptions, cmd)
	if opts.Out == "" {
		f.Writer = cmd.ErrOrStderr()
	}

	run := convert.New(loader.Registry(), convOpts...).NewRun(csvPath, rows)
	root, err := run.Root()
	if err != nil {
		_ = f.Error(CodeConvert, err.Error(), nil)
		return WrapExitError(ExitFailure, "no root template", err)
	}

	nt := rdf.NewWriter(out)
	var sink rdf.Sink = nt
	var rec *store.RunWriter
	if st != nil {
		// The run record is finished even if ctx is cancelled mid-run.
		rec, err = st.BeginRun(context.WithoutCancel(ctx), run.ID(), csvPath, template.Describe(root), run.Started())
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to record run", err)
		}
		sink = rdf.Tee(nt, rec)
	}

	res, runErr := run.Execute(ctx, sink)
	if err := nt.Flush(); err != nil {
		return WrapExitError(ExitCommandError, "failed to write output", err)
	}
	if res == nil {
		_ = f.Error(CodeConvert, runErr.Error(), nil)
		return WrapExitError(ExitFailure, "conversion failed", runErr)
	}
	if rec != nil {
		if err := rec.Finish(string(res.Status), res.Finished); err != nil {
			logger.Error("error finishing run record", "run", res.RunID, "error", err)
		}
	}

	summary := summarize(res)
	switch {
	case runErr != nil:
		_ = f.Failure(summary, CodeConvert, runErr.Error())
		return WrapExitError(ExitFailure, fmt.Sprintf("conversion %s", res.Status), runErr)
	case res.Status != convert.StatusSucceeded:
		msg := fmt.Sprintf("%d row(s) failed", summary.Failed)
		_ = f.Failure(summary, CodeConvert, msg)
		return NewExitError(ExitFailure, msg)
	}
	return f.Success(summary)
}

func summarize(res *convert.Result) ConvertSummary {
	return ConvertSummary{
		RunID:       res.RunID,
		File:        res.File,
		Template:    res.Template,
		Status:      string(res.Status),
		Rows:        len(res.Rows),
		Emitted:     res.Count(convert.RowEmitted),
		Skipped:     res.Count(convert.RowSkipped),
		Failed:      res.Count(convert.RowFailed),
		Statements:  res.Statements,
		Diagnostics: res.Diagnostics,
	}
}

// parseBindings splits name=value flags. The name may carry a leading $.
func parseBindings(flags []string) ([]convert.Binding, error) {
	out := make([]convert.Binding, 0, len(flags))
	for _, f := range flags {
		name, val, ok := strings.Cut(f, "=")
		name = strings.TrimPrefix(strings.TrimSpace(name), "$")
		if !ok || name == "" {
			return nil, fmt.Errorf("%q: want name=value", f)
		}
		out = append(out, convert.Binding{Name: name, Value: val})
	}
	return out, nil
}

func parseDelimiter(s string) (rune, error) {
	if s == `\t` || s == "tab" {
		return '\t', nil
	}
	r := []rune(s)
	if len(r) != 1 {
		return 0, errors.New("delimiter must be a single character")
	}
	return r[0], nil
}

// openOutput opens path for writing, or returns stdout when path is empty.
func openOutput(path string, stdout io.Writer) (io.Writer, func(), error) {
	if path == "" {
		return stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() {
		if err := f.Close(); err != nil {
			slog.Error("error closing output", "path", path, "error", err)
		}
	}, nil
}
