package queryir

import (
	"fmt"

	"github.com/epimorphics/dclib-sub000/internal/rdf"
)

// ValidationResult lists the problems found in a query. A query with
// problems must not be executed.
type ValidationResult struct {
	Valid    bool
	Problems []string
}

// Validate checks that q is well formed:
//  1. at least one triple pattern, with no nil terms
//  2. predicate positions hold URIs or variables; subjects are not literals
//  3. every projected variable and every filtered variable occurs in a
//     pattern
//  4. at least one variable is projected
//
// Validate is a pure function with no side effects.
func Validate(q Query) ValidationResult {
	v := &validator{problems: []string{}}
	v.validateQuery(q)
	return ValidationResult{
		Valid:    len(v.problems) == 0,
		Problems: v.problems,
	}
}

type validator struct {
	problems []string
	vars     map[string]bool
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q Query) {
	switch query := q.(type) {
	case *Select:
		if query == nil {
			v.addProblem("nil query")
			return
		}
		v.validateSelect(query)
	default:
		v.addProblem("unknown query type: %T", q)
	}
}

func (v *validator) validateSelect(sel *Select) {
	if len(sel.Patterns) == 0 {
		v.addProblem("query has no triple patterns")
	}
	v.vars = make(map[string]bool)
	for i, p := range sel.Patterns {
		if p.S == nil || p.P == nil || p.O == nil {
			v.addProblem("pattern %d has a missing term", i)
			continue
		}
		if c, ok := p.S.(*Constant); ok && c.Node.Kind() == rdf.KindLiteral {
			v.addProblem("pattern %d: literal in subject position", i)
		}
		if c, ok := p.P.(*Constant); ok && c.Node.Kind() != rdf.KindURI {
			v.addProblem("pattern %d: predicate must be a URI", i)
		}
		for _, t := range []Term{p.S, p.P, p.O} {
			if vr, ok := t.(*Variable); ok {
				if vr.Name == "" {
					v.addProblem("pattern %d: unnamed variable", i)
				}
				v.vars[vr.Name] = true
			}
		}
	}

	if len(sel.Project) == 0 {
		v.addProblem("no projected variables")
	}
	for _, name := range sel.Project {
		if !v.vars[name] {
			v.addProblem("projected variable ?%s does not occur in a pattern", name)
		}
	}
	if sel.Limit < 0 {
		v.addProblem("negative limit %d", sel.Limit)
	}
	v.validatePredicate(sel.Filter)
}

func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case nil:
	case *Equals:
		v.checkFilterVar(pred.Var, pred.Value)
	case *NotEquals:
		v.checkFilterVar(pred.Var, pred.Value)
	case *And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub)
		}
	default:
		v.addProblem("unknown predicate type: %T", p)
	}
}

func (v *validator) checkFilterVar(name string, value rdf.Node) {
	if !v.vars[name] {
		v.addProblem("filtered variable ?%s does not occur in a pattern", name)
	}
	if value == nil {
		v.addProblem("filter on ?%s compares to nil", name)
	}
}
