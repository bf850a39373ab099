package expr

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/epimorphics/dclib-sub000/internal/rdf"
	"github.com/epimorphics/dclib-sub000/internal/value"
)

// method is an entry of the fixed method registry.
type method struct {
	minArgs, maxArgs int
	// whole methods see an Array receiver as one value; the others are
	// lifted over its elements.
	whole bool
	fn    func(ev *evaluator, recv value.Value, args []value.Value) (value.Value, error)
}

var methods map[string]method

func init() {
	methods = map[string]method{
		"asNumber": {0, 0, false, func(_ *evaluator, v value.Value, _ []value.Value) (value.Value, error) {
			return value.ToNumber(v)
		}},
		"asDate":      {0, 2, false, asDate},
		"toSegment":   {0, 1, false, toSegment},
		"toUpperCase": {0, 0, false, unaryOp(value.Upper)},
		"toLowerCase": {0, 0, false, unaryOp(value.Lower)},
		"trim":        {0, 0, false, unaryOp(value.Trim)},
		"substring":   {1, 2, false, substring},
		"regex":       {1, 1, false, regex},
		"matches":     {1, 1, false, matches},
		"replaceAll":  {2, 2, false, replaceAll},
		"split":       {1, 1, false, split},
		"map":         {1, 2, true, mapLookup},
		"lang":        {1, 1, false, lang},
		"datatype":    {1, 1, false, datatype},
		"asURI":       {0, 0, false, asURI},
		"asNode":      {0, 0, false, asNode},
		"toString": {0, 0, false, func(_ *evaluator, v value.Value, _ []value.Value) (value.Value, error) {
			if v.IsNull() {
				return nil, value.NoResult("null value")
			}
			return value.Str(v.String()), nil
		}},
		"startsWith": {1, 1, false, stringTest(strings.HasPrefix)},
		"endsWith":   {1, 1, false, stringTest(strings.HasSuffix)},
		"contains":   {1, 1, false, stringTest(strings.Contains)},
		"format":     {1, 1, false, format},
		"year":       {0, 0, false, datePart(func(d value.Date) int { return d.T.Year() })},
		"month":      {0, 0, false, datePart(func(d value.Date) int { return int(d.T.Month()) })},
		"day":        {0, 0, false, datePart(func(d value.Date) int { return d.T.Day() })},
		"isNull": {0, 0, true, func(_ *evaluator, v value.Value, _ []value.Value) (value.Value, error) {
			return value.Bool(v.IsNull()), nil
		}},
		"length": {0, 0, true, length},
		"join":   {0, 1, true, join},
		"get":    {1, 1, true, func(_ *evaluator, v value.Value, args []value.Value) (value.Value, error) {
			return index(v, args[0]), nil
		}},
		"each":   {1, 1, true, each},
		"filter": {1, 1, true, filter},
	}
}

// MethodNames lists the registered methods, sorted.
func MethodNames() []string {
	out := make([]string, 0, len(methods))
	for name := range methods {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (ev *evaluator) callMethod(name string, recv value.Value, args []value.Value) (value.Value, error) {
	m, ok := methods[name]
	if !ok {
		return value.Errorf("unknown method %s", name), nil
	}
	if len(args) < m.minArgs || len(args) > m.maxArgs {
		return value.Errorf("%s: wrong number of arguments (%d)", name, len(args)), nil
	}
	if e, ok := recv.(value.Error); ok {
		return e, nil
	}
	for _, a := range args {
		if e, ok := a.(value.Error); ok {
			return e, nil
		}
	}
	if m.whole {
		return m.fn(ev, recv, args)
	}
	return value.Lift(recv, func(x value.Value) (value.Value, error) {
		return m.fn(ev, x, args)
	})
}

func unaryOp(f func(value.Value) (value.Value, error)) func(*evaluator, value.Value, []value.Value) (value.Value, error) {
	return func(_ *evaluator, v value.Value, _ []value.Value) (value.Value, error) {
		return f(v)
	}
}

func intArg(v value.Value) (int, bool) {
	n, ok := numberOf(v)
	if !ok {
		return 0, false
	}
	i, ok := n.Int64()
	return int(i), ok
}

// stringList accepts a string or an array of strings.
func stringList(v value.Value) []string {
	if arr, ok := v.(value.Array); ok {
		out := make([]string, len(arr))
		for i, x := range arr {
			out[i] = x.String()
		}
		return out
	}
	if v.IsNull() {
		return nil
	}
	return []string{v.String()}
}

func asDate(_ *evaluator, v value.Value, args []value.Value) (value.Value, error) {
	var formats []string
	dt := ""
	switch len(args) {
	case 1:
		// A lone argument may name the datatype rather than a format.
		if s := args[0].String(); !args[0].IsMulti() && value.DateDatatype(s) != "" {
			dt = s
		} else {
			formats = stringList(args[0])
		}
	case 2:
		formats = stringList(args[0])
		dt = args[1].String()
	}
	return value.ToDate(v, formats, dt)
}

func toSegment(_ *evaluator, v value.Value, args []value.Value) (value.Value, error) {
	sep := "-"
	if len(args) == 1 {
		sep = args[0].String()
	}
	return value.ToSegment(v, sep)
}

func substring(_ *evaluator, v value.Value, args []value.Value) (value.Value, error) {
	start, ok := intArg(args[0])
	if !ok {
		return value.Errorf("substring: start must be an integer"), nil
	}
	end := -1
	if len(args) == 2 {
		if end, ok = intArg(args[1]); !ok {
			return value.Errorf("substring: end must be an integer"), nil
		}
	}
	return value.Substring(v, start, end)
}

func regex(_ *evaluator, v value.Value, args []value.Value) (value.Value, error) {
	return value.RegexExtract(v, args[0].String())
}

func matches(_ *evaluator, v value.Value, args []value.Value) (value.Value, error) {
	if v.IsNull() {
		return value.Bool(false), nil
	}
	return value.Matches(v, args[0].String())
}

func replaceAll(_ *evaluator, v value.Value, args []value.Value) (value.Value, error) {
	return value.ReplaceAll(v, args[0].String(), args[1].String())
}

func split(_ *evaluator, v value.Value, args []value.Value) (value.Value, error) {
	return value.Split(v, args[0].String())
}

// mapLookup implements x.map(source), x.map(source, required),
// x.map(source, default) and x.map([sources], default).
func mapLookup(ev *evaluator, v value.Value, args []value.Value) (value.Value, error) {
	if ev.ctx.Mapper == nil {
		return value.Fatalf("no lookup sources are configured"), nil
	}
	if arr, ok := args[0].(value.Array); ok {
		var def value.Value
		if len(args) == 2 {
			def = args[1]
		}
		return value.MapAny(v, ev.ctx.Mapper, stringList(arr), def)
	}
	source := args[0].String()
	if len(args) == 1 {
		return value.Map(v, ev.ctx.Mapper, source, true)
	}
	if b, ok := args[1].(value.Bool); ok {
		return value.Map(v, ev.ctx.Mapper, source, bool(b))
	}
	return value.MapAny(v, ev.ctx.Mapper, []string{source}, args[1])
}

func lang(_ *evaluator, v value.Value, args []value.Value) (value.Value, error) {
	if v.IsNull() {
		return nil, value.NoResult("null value")
	}
	return value.String{S: v.String(), Lang: args[0].String()}, nil
}

func datatype(ev *evaluator, v value.Value, args []value.Value) (value.Value, error) {
	if v.IsNull() {
		return nil, value.NoResult("null value")
	}
	dt := ev.ctx.Prefixes.Expand(args[0].String())
	if !rdf.IsAbsoluteIRI(dt) {
		return value.Errorf("datatype %q is not an absolute URI", args[0].String()), nil
	}
	return value.NodeOf(rdf.TypedLiteral(v.String(), dt)), nil
}

func asURI(ev *evaluator, v value.Value, _ []value.Value) (value.Value, error) {
	if v.IsNull() {
		return nil, value.NoResult("null value")
	}
	if n, ok := v.(value.Node); ok && n.N.Kind() != rdf.KindLiteral {
		return n, nil
	}
	s := v.String()
	if rdf.IsBlankLabel(s) {
		return value.NodeOf(rdf.Blank{ID: strings.TrimPrefix(s, "_:")}), nil
	}
	s = ev.ctx.Prefixes.Expand(s)
	if !rdf.IsAbsoluteIRI(s) {
		return value.Errorf("%q is not a valid URI", s), nil
	}
	return value.NodeOf(rdf.NewURI(s)), nil
}

func asNode(_ *evaluator, v value.Value, _ []value.Value) (value.Value, error) {
	if v.IsNull() {
		return nil, value.NoResult("null value")
	}
	n, ok := value.AsNode(v)
	if !ok {
		return value.Errorf("cannot convert %s to a node", value.Describe(v)), nil
	}
	return value.NodeOf(n), nil
}

func stringTest(f func(s, sub string) bool) func(*evaluator, value.Value, []value.Value) (value.Value, error) {
	return func(_ *evaluator, v value.Value, args []value.Value) (value.Value, error) {
		if v.IsNull() {
			return value.Bool(false), nil
		}
		return value.Bool(f(v.String(), args[0].String())), nil
	}
}

func format(_ *evaluator, v value.Value, args []value.Value) (value.Value, error) {
	layout := args[0].String()
	switch t := v.(type) {
	case value.Null:
		return nil, value.NoResult("null value")
	case value.Date:
		return value.Str(t.Format(layout)), nil
	case value.Number:
		if strings.ContainsAny(layout, "dxXob") {
			if i, ok := t.Int64(); ok {
				return value.Str(fmt.Sprintf(layout, i)), nil
			}
		}
		return value.Str(fmt.Sprintf(layout, t.Float64())), nil
	default:
		return value.Str(fmt.Sprintf(layout, v.String())), nil
	}
}

func datePart(f func(value.Date) int) func(*evaluator, value.Value, []value.Value) (value.Value, error) {
	return func(_ *evaluator, v value.Value, _ []value.Value) (value.Value, error) {
		if v.IsNull() {
			return nil, value.NoResult("null value")
		}
		d, ok := v.(value.Date)
		if !ok {
			conv, err := value.ToDate(v, nil, "")
			if err != nil {
				return nil, err
			}
			if d, ok = conv.(value.Date); !ok {
				return conv, nil
			}
		}
		return value.Int(int64(f(d))), nil
	}
}

func length(_ *evaluator, v value.Value, _ []value.Value) (value.Value, error) {
	switch t := v.(type) {
	case value.Null:
		return value.Int(0), nil
	case value.Array:
		return value.Int(int64(len(t))), nil
	default:
		return value.Int(int64(utf8.RuneCountInString(v.String()))), nil
	}
}

func join(_ *evaluator, v value.Value, args []value.Value) (value.Value, error) {
	sep := ""
	if len(args) == 1 {
		sep = args[0].String()
	}
	switch t := v.(type) {
	case value.Null:
		return nil, value.NoResult("null value")
	case value.Array:
		parts := make([]string, len(t))
		for i, x := range t {
			parts[i] = x.String()
		}
		return value.Str(strings.Join(parts, sep)), nil
	default:
		return value.Str(v.String()), nil
	}
}

func elements(v value.Value) value.Array {
	if arr, ok := v.(value.Array); ok {
		return arr
	}
	if v.IsNull() {
		return nil
	}
	return value.Array{v}
}

func functionArg(name string, v value.Value) (value.Function, value.Value) {
	f, ok := v.(value.Function)
	if !ok {
		return value.Function{}, value.Errorf("%s: argument must be a function, got %s", name, value.Describe(v))
	}
	return f, nil
}

func each(_ *evaluator, v value.Value, args []value.Value) (value.Value, error) {
	f, bad := functionArg("each", args[0])
	if bad != nil {
		return bad, nil
	}
	var out []value.Value
	for i, x := range elements(v) {
		r, err := f.Fn.Call([]value.Value{x, value.Int(int64(i))})
		if err != nil {
			if value.IsNoResult(err) {
				continue
			}
			return nil, err
		}
		if e, ok := r.(value.Error); ok {
			return e, nil
		}
		if r != nil && !r.IsNull() {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return nil, value.NoResult("each produced no values")
	}
	return value.NewArray(out...), nil
}

func filter(_ *evaluator, v value.Value, args []value.Value) (value.Value, error) {
	f, bad := functionArg("filter", args[0])
	if bad != nil {
		return bad, nil
	}
	var out []value.Value
	for i, x := range elements(v) {
		r, err := f.Fn.Call([]value.Value{x, value.Int(int64(i))})
		if err != nil && !value.IsNoResult(err) {
			return nil, err
		}
		if e, ok := r.(value.Error); ok {
			return e, nil
		}
		if err == nil && value.Truthy(r) {
			out = append(out, x)
		}
	}
	if len(out) == 0 {
		return nil, value.NoResult("filter kept no values")
	}
	return value.NewArray(out...), nil
}

