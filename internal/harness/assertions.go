package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/epimorphics/dclib-sub000/internal/queryir"
	"github.com/epimorphics/dclib-sub000/internal/rdf"
	"github.com/epimorphics/dclib-sub000/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type       string   // Assertion type for categorization
	Expected   string   // Human-readable expected outcome
	Actual     string   // Human-readable actual outcome
	Statements []string // Emitted statements for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Statements) > 0 {
		fmt.Fprintf(&buf, "\nStatements:\n")
		for i, s := range e.Statements {
			fmt.Fprintf(&buf, "  [%d] %s\n", i+1, s)
		}
	}
	return buf.String()
}

// assertContains checks every listed statement was emitted. Statements
// are compared in normalized N-Triples form.
func assertContains(statements []string, assertion Assertion) error {
	have := statementSet(statements)
	for _, want := range assertion.Triples {
		line, err := normalizeStatement(want)
		if err != nil {
			return fmt.Errorf("contains: %w", err)
		}
		if !have[line] {
			return &AssertionError{
				Type:       AssertContains,
				Expected:   line,
				Actual:     "not emitted",
				Statements: statements,
			}
		}
	}
	return nil
}

// assertNotContains checks no listed statement was emitted.
func assertNotContains(statements []string, assertion Assertion) error {
	have := statementSet(statements)
	for _, unwanted := range assertion.Triples {
		line, err := normalizeStatement(unwanted)
		if err != nil {
			return fmt.Errorf("not_contains: %w", err)
		}
		if have[line] {
			return &AssertionError{
				Type:       AssertNotContains,
				Expected:   "no statement " + line,
				Actual:     "emitted",
				Statements: statements,
			}
		}
	}
	return nil
}

// assertCount checks the exact number of emitted statements.
func assertCount(statements []string, assertion Assertion) error {
	if len(statements) != assertion.Count {
		return &AssertionError{
			Type:       AssertCount,
			Expected:   fmt.Sprintf("%d statements", assertion.Count),
			Actual:     fmt.Sprintf("%d statements", len(statements)),
			Statements: statements,
		}
	}
	return nil
}

// assertRowState checks the final state of one data row.
func assertRowState(rows []string, assertion Assertion) error {
	if assertion.Row > len(rows) {
		return &AssertionError{
			Type:     AssertRowState,
			Expected: fmt.Sprintf("row %d %s", assertion.Row, assertion.State),
			Actual:   fmt.Sprintf("only %d rows processed", len(rows)),
		}
	}
	if got := rows[assertion.Row-1]; got != assertion.State {
		return &AssertionError{
			Type:     AssertRowState,
			Expected: fmt.Sprintf("row %d %s", assertion.Row, assertion.State),
			Actual:   fmt.Sprintf("row %d %s", assertion.Row, got),
		}
	}
	return nil
}

// assertDiagnostic checks a row has a diagnostic with the given code.
// Row 0 is the preamble.
func assertDiagnostic(result *Result, assertion Assertion) error {
	var codes []string
	for _, d := range result.Diagnostics {
		if d.Row != assertion.Row {
			continue
		}
		if string(d.Code) == assertion.Code {
			return nil
		}
		codes = append(codes, string(d.Code))
	}
	return &AssertionError{
		Type:     AssertDiagnostic,
		Expected: fmt.Sprintf("row %d diagnostic %s", assertion.Row, assertion.Code),
		Actual:   fmt.Sprintf("row %d diagnostics %v", assertion.Row, codes),
	}
}

// assertSelect runs the assertion's query over the store and checks the
// number of distinct solutions.
func assertSelect(ctx context.Context, st *store.Store, prefixes *rdf.PrefixMap, assertion Assertion) error {
	q, err := buildSelect(assertion.Patterns, prefixes)
	if err != nil {
		return fmt.Errorf("select: %w", err)
	}
	if v := queryir.Validate(q); !v.Valid {
		return fmt.Errorf("select: invalid query: %s", strings.Join(v.Problems, "; "))
	}
	solutions, err := st.Select(ctx, q)
	if err != nil {
		return &AssertionError{
			Type:     AssertSelect,
			Expected: fmt.Sprintf("query %v", assertion.Patterns),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}
	if len(solutions) != assertion.Count {
		return &AssertionError{
			Type:     AssertSelect,
			Expected: fmt.Sprintf("%d solutions to %v", assertion.Count, assertion.Patterns),
			Actual:   fmt.Sprintf("%d solutions", len(solutions)),
		}
	}
	return nil
}

// buildSelect parses triple patterns into a query projecting every
// variable.
func buildSelect(patterns []string, prefixes *rdf.PrefixMap) (*queryir.Select, error) {
	q := &queryir.Select{}
	for _, src := range patterns {
		fields := strings.Fields(strings.TrimSuffix(strings.TrimSpace(src), " ."))
		if len(fields) != 3 {
			return nil, fmt.Errorf("pattern %q: want subject, predicate and object", src)
		}
		var terms [3]queryir.Term
		for i, f := range fields {
			t, err := parsePatternTerm(f, prefixes)
			if err != nil {
				return nil, fmt.Errorf("pattern %q: %w", src, err)
			}
			terms[i] = t
		}
		q.Patterns = append(q.Patterns, queryir.Pattern{S: terms[0], P: terms[1], O: terms[2]})
	}
	q.Project = q.Vars()
	return q, nil
}

func parsePatternTerm(s string, prefixes *rdf.PrefixMap) (queryir.Term, error) {
	switch {
	case strings.HasPrefix(s, "?"):
		return queryir.Var(s[1:]), nil
	case s == "a":
		return queryir.Const(rdf.NewURI(rdf.RDFType)), nil
	case strings.HasPrefix(s, "<"), strings.HasPrefix(s, "_:"), strings.HasPrefix(s, `"`):
		n, err := rdf.ParseTerm(s)
		if err != nil {
			return nil, err
		}
		return queryir.Const(n), nil
	}
	iri := prefixes.Expand(s)
	if !rdf.IsAbsoluteIRI(iri) {
		return nil, fmt.Errorf("term %q is not a variable, N-Triples term or known prefixed name", s)
	}
	return queryir.Const(rdf.NewURI(iri)), nil
}

// normalizeStatement reparses an expected statement so spacing and the
// terminator do not matter.
func normalizeStatement(line string) (string, error) {
	t, err := rdf.ParseTriple(line)
	if err != nil {
		return "", err
	}
	return t.String(), nil
}

func statementSet(statements []string) map[string]bool {
	set := make(map[string]bool, len(statements))
	for _, s := range statements {
		set[s] = true
	}
	return set
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store    *store.Store
	Prefixes *rdf.PrefixMap
	Ctx      context.Context
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides store access for select assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertContains:
			err = assertContains(result.Statements, assertion)
		case AssertNotContains:
			err = assertNotContains(result.Statements, assertion)
		case AssertCount:
			err = assertCount(result.Statements, assertion)
		case AssertRowState:
			err = assertRowState(result.Rows, assertion)
		case AssertDiagnostic:
			err = assertDiagnostic(result, assertion)
		case AssertSelect:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: select requires a store", i)
			} else {
				prefixes := actx.Prefixes
				if prefixes == nil {
					prefixes = rdf.NewPrefixMap()
				}
				err = assertSelect(actx.Ctx, actx.Store, prefixes, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
