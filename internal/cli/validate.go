package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/epimorphics/dclib-sub000/internal/convert"
	"github.com/epimorphics/dclib-sub000/internal/template"
)

// ValidationIssue is one problem found in a template document.
type ValidationIssue struct {
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

func (i ValidationIssue) String() string {
	var b strings.Builder
	if i.File != "" {
		fmt.Fprintf(&b, "%s:%d:%d: ", i.File, i.Line, i.Column)
	}
	b.WriteString(i.Code)
	if i.Field != "" {
		b.WriteString(": " + i.Field)
	}
	b.WriteString(": " + i.Message)
	return b.String()
}

// TemplateInfo describes one template found by validate.
type TemplateInfo struct {
	Name string `json:"name,omitempty"`
	Kind string `json:"kind"`
	Root bool   `json:"root"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool                        `json:"valid"`
	Templates []TemplateInfo              `json:"templates"`
	Sources   []string                    `json:"sources,omitempty"`
	Errors    []ValidationIssue           `json:"errors,omitempty"`
	Warnings  []template.ReferenceWarning `json:"warnings,omitempty"`
}

func (r ValidationResult) String() string {
	var b strings.Builder
	for _, e := range r.Errors {
		fmt.Fprintf(&b, "✗ %s\n", e)
	}
	for _, w := range r.Warnings {
		fmt.Fprintf(&b, "%s: %s\n", w.Level, w.Message)
	}
	if r.Valid {
		fmt.Fprintf(&b, "✓ %d template(s), %d source(s) valid", len(r.Templates), len(r.Sources))
	} else {
		fmt.Fprintf(&b, "%d error(s)", len(r.Errors))
	}
	return b.String()
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <template>...",
		Short: "Validate templates without converting",
		Long: `Load templates and check them without reading any data.

Reports document errors with their positions, references to templates
that do not exist, and reference cycles. Inline and csv lookup sources are
built to check them; graph sources need a store and are skipped.

Exit codes:
  0 - Templates are valid (cycles are only warnings)
  1 - Errors found
  2 - Command error (missing files, etc.)`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	f := formatter(opts, cmd)
	logger := newLogger(opts, f.GetErrWriter())

	loader, loadErrors := LoadTemplates(paths, logger, LoadModeCollectAll)
	if loader == nil {
		_ = f.Error(CodeNotFound, loadErrors[0].Error(), nil)
		return WrapExitError(ExitCommandError, "failed to find templates", loadErrors[0])
	}

	result := ValidationResult{Templates: []TemplateInfo{}}
	for _, err := range loadErrors {
		result.Errors = append(result.Errors, issueFor(err))
	}

	reg := loader.Registry()
	for _, t := range reg.Roots() {
		result.Templates = append(result.Templates, TemplateInfo{Name: t.Head().Name, Kind: template.Kind(t), Root: true})
	}
	for _, name := range reg.Names() {
		if isRoot(reg, name) {
			continue
		}
		t, _ := reg.Lookup(name)
		result.Templates = append(result.Templates, TemplateInfo{Name: name, Kind: template.Kind(t)})
	}
	f.VerboseLog("Loaded %d template(s)", len(result.Templates))

	var local []*template.SourceSpec
	for _, s := range loader.Sources() {
		result.Sources = append(result.Sources, s.Name)
		if s.Kind != template.GraphSource {
			local = append(local, s)
		}
	}
	if _, err := convert.BuildSources(context.Background(), local, nil,
		convert.WithLogger(logger), convert.WithPrefixes(loader.Prefixes())); err != nil {
		result.Errors = append(result.Errors, issueFor(err))
	}

	for _, w := range template.AnalyzeReferences(reg) {
		if w.Level == "error" {
			result.Errors = append(result.Errors, ValidationIssue{Code: "UNRESOLVED_REF", Message: w.Message})
			continue
		}
		result.Warnings = append(result.Warnings, w)
	}

	result.Valid = len(result.Errors) == 0
	if !result.Valid {
		msg := fmt.Sprintf("%d validation error(s)", len(result.Errors))
		_ = f.Failure(result, CodeValidate, msg)
		return NewExitError(ExitFailure, msg)
	}
	return f.Success(result)
}

// isRoot reports whether the named template is also a top-level template.
func isRoot(reg *template.Registry, name string) bool {
	for _, t := range reg.Roots() {
		if t.Head().Name == name {
			return true
		}
	}
	return false
}

// issueFor converts a load error, with its position when it has one.
func issueFor(err error) ValidationIssue {
	var le *template.LoadError
	if !errors.As(err, &le) {
		return ValidationIssue{Code: "ERROR", Message: err.Error()}
	}
	issue := ValidationIssue{Code: string(le.Code), Field: le.Field, Message: le.Message}
	if le.Pos.IsValid() {
		issue.File = le.Pos.Filename()
		issue.Line = le.Pos.Line()
		issue.Column = le.Pos.Column()
	}
	return issue
}
