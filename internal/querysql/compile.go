// Package querysql compiles queryir graph queries to parameterized SQL
// over the store's triples table.
package querysql

import (
	"fmt"
	"strings"

	"github.com/epimorphics/dclib-sub000/internal/queryir"
)

// TriplesTable is the table queries read from. Each row holds one
// statement with its terms in N-Triples form in columns s, p and o.
const TriplesTable = "triples"

// SQLCompiler compiles queryir queries to parameterized SQL for SQLite.
//
// Every triple pattern becomes one alias of the triples table; variables
// shared between patterns become join conditions. All constants are
// parameters, never interpolated, and every query is ordered by its
// projected columns so results are deterministic.
type SQLCompiler struct {
	// Table overrides TriplesTable.
	Table string
}

// NewSQLCompiler creates a compiler for the default table.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{Table: TriplesTable}
}

// Compile converts q to SQL. The result columns are named after the
// projected variables, in projection order.
func (c *SQLCompiler) Compile(q queryir.Query) (string, []any, error) {
	if q == nil {
		return "", nil, fmt.Errorf("cannot compile nil query")
	}
	if res := queryir.Validate(q); !res.Valid {
		return "", nil, fmt.Errorf("invalid query: %s", strings.Join(res.Problems, "; "))
	}
	switch query := q.(type) {
	case *queryir.Select:
		return c.compileSelect(query)
	default:
		return "", nil, fmt.Errorf("unsupported query type: %T", q)
	}
}

var columns = [3]string{"s", "p", "o"}

func (c *SQLCompiler) compileSelect(q *queryir.Select) (string, []any, error) {
	table := c.Table
	if table == "" {
		table = TriplesTable
	}

	var (
		from   []string
		where  []string
		params []any
		// first column each variable was seen in, e.g. "t0.s"
		bound = make(map[string]string)
	)
	for i, p := range q.Patterns {
		alias := fmt.Sprintf("t%d", i)
		from = append(from, fmt.Sprintf("%s AS %s", table, alias))
		for j, term := range []queryir.Term{p.S, p.P, p.O} {
			col := alias + "." + columns[j]
			switch t := term.(type) {
			case *queryir.Constant:
				where = append(where, col+" = ?")
				params = append(params, t.Node.String())
			case *queryir.Variable:
				if first, ok := bound[t.Name]; ok {
					where = append(where, col+" = "+first)
				} else {
					bound[t.Name] = col
				}
			default:
				return "", nil, fmt.Errorf("unsupported term type: %T", term)
			}
		}
	}

	if q.Filter != nil {
		sql, fp, err := c.compilePredicate(q.Filter, bound)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		where = append(where, sql)
		params = append(params, fp...)
	}

	proj := make([]string, len(q.Project))
	order := make([]string, len(q.Project))
	for i, name := range q.Project {
		proj[i] = fmt.Sprintf("%s AS %s", bound[name], quoteIdent(name))
		order[i] = bound[name] + " COLLATE BINARY ASC"
	}

	var sb strings.Builder
	sb.WriteString("SELECT DISTINCT ")
	sb.WriteString(strings.Join(proj, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(strings.Join(from, ", "))
	if len(where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}
	sb.WriteString(" ORDER BY ")
	sb.WriteString(strings.Join(order, ", "))
	if q.Limit > 0 {
		sb.WriteString(" LIMIT ?")
		params = append(params, q.Limit)
	}
	return sb.String(), params, nil
}

// compilePredicate compiles a filter to a WHERE fragment.
func (c *SQLCompiler) compilePredicate(p queryir.Predicate, bound map[string]string) (string, []any, error) {
	switch pred := p.(type) {
	case *queryir.Equals:
		return bound[pred.Var] + " = ?", []any{pred.Value.String()}, nil
	case *queryir.NotEquals:
		return bound[pred.Var] + " <> ?", []any{pred.Value.String()}, nil
	case *queryir.And:
		if len(pred.Predicates) == 0 {
			return "1 = 1", nil, nil
		}
		var parts []string
		var params []any
		for _, sub := range pred.Predicates {
			sql, sp, err := c.compilePredicate(sub, bound)
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, sql)
			params = append(params, sp...)
		}
		return "(" + strings.Join(parts, " AND ") + ")", params, nil
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
