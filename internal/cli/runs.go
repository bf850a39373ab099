package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/epimorphics/dclib-sub000/internal/rdf"
	"github.com/epimorphics/dclib-sub000/internal/store"
)

// RunsOptions holds flags for the runs command.
type RunsOptions struct {
	*RootOptions
	Database string
	Delete   bool
	Describe string
}

// RunInfo is a recorded run as reported by the runs command.
type RunInfo struct {
	ID         string     `json:"id"`
	Source     string     `json:"source"`
	Template   string     `json:"template"`
	Status     string     `json:"status"`
	Statements int        `json:"statements"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// RunList is the output of listing runs.
type RunList struct {
	Runs []RunInfo `json:"runs"`
}

func (l RunList) String() string {
	if len(l.Runs) == 0 {
		return "No runs recorded."
	}
	var b strings.Builder
	for i, r := range l.Runs {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s  %-9s  %6d  %s  %s  %s", r.ID, r.Status, r.Statements, r.StartedAt.Format(time.RFC3339), r.Source, r.Template)
	}
	return b.String()
}

// Statements is a list of N-Triples lines with an optional run.
type Statements struct {
	Run        *RunInfo `json:"run,omitempty"`
	Subject    string   `json:"subject,omitempty"`
	Statements []string `json:"statements"`
}

func (s Statements) String() string {
	return strings.Join(s.Statements, "\n")
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "Inspect runs recorded in a store",
		Long: `List the conversion runs recorded in a SQLite store, or print the
statements of one run as N-Triples.

Examples:
  dclib runs --db ./dclib.db
  dclib runs --db ./dclib.db 0190d5e2-...
  dclib runs --db ./dclib.db 0190d5e2-... --delete
  dclib runs --db ./dclib.db --describe http://example.com/concept/a`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := ""
			if len(args) == 1 {
				runID = args[0]
			}
			return runRuns(opts, runID, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().BoolVar(&opts.Delete, "delete", false, "delete the run and its statements")
	cmd.Flags().StringVar(&opts.Describe, "describe", "", "print the stored statements about a subject")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runRuns(opts *RunsOptions, runID string, cmd *cobra.Command) error {
	f := formatter(opts.RootOptions, cmd)
	ctx := cmd.Context()

	if opts.Delete && runID == "" {
		return NewExitError(ExitCommandError, "--delete requires a run id")
	}
	// Opening creates missing databases; inspecting one that does not
	// exist is a mistake.
	if _, err := os.Stat(opts.Database); os.IsNotExist(err) {
		_ = f.Error(CodeNotFound, fmt.Sprintf("database not found: %s", opts.Database), nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", opts.Database))
	}
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	if opts.Describe != "" {
		subject, err := parseSubject(opts.Describe)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --describe", err)
		}
		triples, err := st.Describe(ctx, subject)
		if err != nil {
			_ = f.Error(CodeStore, err.Error(), nil)
			return WrapExitError(ExitFailure, "describe failed", err)
		}
		return f.Success(Statements{Subject: subject.String(), Statements: lines(triples)})
	}

	runs, err := st.Runs(ctx)
	if err != nil {
		_ = f.Error(CodeStore, err.Error(), nil)
		return WrapExitError(ExitFailure, "failed to list runs", err)
	}
	if runID == "" {
		list := RunList{Runs: make([]RunInfo, 0, len(runs))}
		for _, r := range runs {
			list.Runs = append(list.Runs, runInfo(r))
		}
		return f.Success(list)
	}

	var run *RunInfo
	for _, r := range runs {
		if r.ID == runID {
			info := runInfo(r)
			run = &info
		}
	}
	if run == nil {
		msg := fmt.Sprintf("run not found: %s", runID)
		_ = f.Error(CodeNotFound, msg, nil)
		return NewExitError(ExitFailure, msg)
	}

	if opts.Delete {
		if err := st.DeleteRun(ctx, runID); err != nil {
			_ = f.Error(CodeStore, err.Error(), nil)
			return WrapExitError(ExitFailure, "failed to delete run", err)
		}
		f.VerboseLog("Deleted run %s (%d statements)", runID, run.Statements)
		return f.Success(fmt.Sprintf("deleted run %s", runID))
	}

	triples, err := st.Triples(ctx, runID)
	if err != nil {
		_ = f.Error(CodeStore, err.Error(), nil)
		return WrapExitError(ExitFailure, "failed to read run", err)
	}
	return f.Success(Statements{Run: run, Statements: lines(triples)})
}

func runInfo(r store.Run) RunInfo {
	return RunInfo{
		ID:         r.ID,
		Source:     r.Source,
		Template:   r.Template,
		Status:     r.Status,
		Statements: r.Triples,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
}

// parseSubject reads an N-Triples subject term, or a bare IRI.
func parseSubject(s string) (rdf.Node, error) {
	if strings.HasPrefix(s, "<") || strings.HasPrefix(s, "_:") {
		n, err := rdf.ParseTerm(s)
		if err != nil {
			return nil, err
		}
		if n.Kind() == rdf.KindLiteral {
			return nil, fmt.Errorf("%s: a subject cannot be a literal", s)
		}
		return n, nil
	}
	if !rdf.IsAbsoluteIRI(s) {
		return nil, fmt.Errorf("%q is not an absolute IRI", s)
	}
	return rdf.NewURI(s), nil
}

func lines(triples []rdf.Triple) []string {
	out := make([]string, len(triples))
	for i, t := range triples {
		out[i] = t.String()
	}
	return out
}
