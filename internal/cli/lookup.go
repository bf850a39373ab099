package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/epimorphics/dclib-sub000/internal/convert"
	"github.com/epimorphics/dclib-sub000/internal/lookup"
	"github.com/epimorphics/dclib-sub000/internal/rdf"
	"github.com/epimorphics/dclib-sub000/internal/store"
	"github.com/epimorphics/dclib-sub000/internal/template"
)

// LookupOptions holds flags for the lookup command.
type LookupOptions struct {
	*RootOptions
	Templates []string
	Source    string
	Database  string
	Base      string
	Enrich    bool
}

// EntryMatch is one entry of a lookup source as seen from a query key.
type EntryMatch struct {
	Key      string   `json:"key"`
	Nodes    []string `json:"nodes"`
	Distance int      `json:"distance"`
}

// KeyReport explains how one key resolves.
type KeyReport struct {
	Key        string       `json:"key"`
	Normalized string       `json:"normalized"`
	Found      bool         `json:"found"`
	Match      *EntryMatch  `json:"match,omitempty"`
	Candidates []EntryMatch `json:"candidates,omitempty"`
	Enrichment []string     `json:"enrichment,omitempty"`
}

// LookupReport holds the lookup results for every key.
type LookupReport struct {
	Source  string      `json:"source"`
	Entries int         `json:"entries"`
	Keys    []KeyReport `json:"keys"`
}

func (r LookupReport) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "source %s (%d keys)", r.Source, r.Entries)
	for _, k := range r.Keys {
		fmt.Fprintf(&b, "\n%q → %q: ", k.Key, k.Normalized)
		if !k.Found {
			b.WriteString("no match")
			continue
		}
		fmt.Fprintf(&b, "%s %v", k.Match.Key, k.Match.Nodes)
		if len(k.Candidates) > 1 {
			b.WriteString("\n  candidates:")
			for _, c := range k.Candidates {
				fmt.Fprintf(&b, "\n    %q distance %d %v", c.Key, c.Distance, c.Nodes)
			}
		}
		for _, s := range k.Enrichment {
			fmt.Fprintf(&b, "\n  %s", s)
		}
	}
	return b.String()
}

// NewLookupCommand creates the lookup command.
func NewLookupCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LookupOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "lookup <key>...",
		Short: "Debug a lookup source",
		Long: `Resolve keys against a lookup source declared in the templates.

For each key shows its normalized form, the entry chosen for it and every
entry that shares the normalized form, with its edit distance from the key.
Graph sources query the store given by --db.

Examples:
  dclib lookup -t mapping.json --source countries "United Kingdom" uk
  dclib lookup -t mapping.json --source concepts --db ./dclib.db --enrich A1`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLookup(opts, args, cmd)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Templates, "template", "t", nil, "template file or directory (repeatable)")
	cmd.Flags().StringVar(&opts.Source, "source", "", "name of the lookup source")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite store for graph sources")
	cmd.Flags().StringVar(&opts.Base, "base", "", "base URI bound as $base")
	cmd.Flags().BoolVar(&opts.Enrich, "enrich", false, "show the statements enrichment emits for each match")
	_ = cmd.MarkFlagRequired("template")
	_ = cmd.MarkFlagRequired("source")

	return cmd
}

func runLookup(opts *LookupOptions, keys []string, cmd *cobra.Command) error {
	f := formatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	loader, errs := LoadTemplates(opts.Templates, logger, LoadModeFailFast)
	if loader == nil {
		return WrapExitError(ExitCommandError, "failed to find templates", errs[0])
	}
	if len(errs) > 0 {
		_ = f.Error(CodeLoad, errs[0].Error(), nil)
		return WrapExitError(ExitFailure, "failed to load templates", errs[0])
	}

	var spec *template.SourceSpec
	for _, s := range loader.Sources() {
		if s.Name == opts.Source {
			spec = s
		}
	}
	if spec == nil {
		msg := fmt.Sprintf("no lookup source named %q", opts.Source)
		_ = f.Error(CodeNotFound, msg, nil)
		return NewExitError(ExitFailure, msg)
	}

	var graph template.GraphStore
	if spec.Kind == template.GraphSource {
		if opts.Database == "" {
			return NewExitError(ExitCommandError, fmt.Sprintf("source %s queries the store: --db is required", spec.Name))
		}
		st, err := store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer st.Close()
		graph = st
	}

	convOpts := []convert.Option{convert.WithLogger(logger), convert.WithPrefixes(loader.Prefixes())}
	if opts.Base != "" {
		convOpts = append(convOpts, convert.WithBase(opts.Base))
	}
	reg, err := convert.BuildSources(cmd.Context(), []*template.SourceSpec{spec}, graph, convOpts...)
	if err != nil {
		_ = f.Error(CodeLoad, err.Error(), nil)
		return WrapExitError(ExitFailure, "failed to build lookup source", err)
	}
	src, _ := reg.Source(spec.Name)

	report := LookupReport{Source: src.Name, Entries: src.Len()}
	for _, key := range keys {
		kr, err := explainKey(src, key, opts.Enrich)
		if err != nil {
			_ = f.Error(CodeLoad, err.Error(), nil)
			return WrapExitError(ExitFailure, "enrichment failed", err)
		}
		report.Keys = append(report.Keys, kr)
	}
	return f.Success(report)
}

// explainKey resolves key the way map() does and records the candidates
// the choice was made from.
func explainKey(src *lookup.Source, key string, enrich bool) (KeyReport, error) {
	kr := KeyReport{Key: key, Normalized: lookup.Normalize(key)}
	e, ok := src.Lookup(key)
	if !ok {
		return kr, nil
	}
	kr.Found = true
	m := entryMatch(key, e)
	kr.Match = &m
	for _, c := range src.Candidates(key) {
		kr.Candidates = append(kr.Candidates, entryMatch(key, c))
	}

	if enrich {
		g := rdf.NewGraph()
		if err := src.Enrich(e, g); err != nil {
			return kr, err
		}
		for _, t := range g.Triples() {
			kr.Enrichment = append(kr.Enrichment, t.String())
		}
	}
	return kr, nil
}

func entryMatch(key string, e *lookup.Entry) EntryMatch {
	nodes := make([]string, len(e.Nodes))
	for i, n := range e.Nodes {
		nodes[i] = n.String()
	}
	return EntryMatch{Key: e.Key, Nodes: nodes, Distance: lookup.Levenshtein(key, e.Key)}
}
