package expr

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/epimorphics/dclib-sub000/internal/rdf"
	"github.com/epimorphics/dclib-sub000/internal/value"
)

// builtin is an entry of the fixed function registry. maxArgs < 0 means
// variadic.
type builtin struct {
	minArgs, maxArgs int
	fn               func(ev *evaluator, args []value.Value) (value.Value, error)
}

var builtins map[string]builtin

func init() {
	builtins = map[string]builtin{
		"round":  {1, 2, builtinRound},
		"value":  {0, 1, builtinValue},
		"null":   {0, 0, func(*evaluator, []value.Value) (value.Value, error) { return value.Null{}, nil }},
		"abort":  {0, 1, builtinAbort},
		"uuid":   {0, 0, builtinUUID},
		"now":    {0, 0, builtinNow},
		"number": {1, 1, func(_ *evaluator, args []value.Value) (value.Value, error) { return value.ToNumber(args[0]) }},
		"concat": {0, -1, builtinConcat},
	}
}

// BuiltinNames lists the registered functions, sorted.
func BuiltinNames() []string {
	out := make([]string, 0, len(builtins))
	for name := range builtins {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// round(x) rounds to an integer; round(x, places) to a number of decimal
// places (negative places round to tens, hundreds, ...).
func builtinRound(_ *evaluator, args []value.Value) (value.Value, error) {
	places := 0
	if len(args) == 2 {
		p, ok := intArg(args[1])
		if !ok {
			return value.Errorf("round: places must be an integer"), nil
		}
		places = p
	}
	n, err := value.ToNumber(args[0])
	if err != nil {
		return nil, err
	}
	return value.Lift(n, func(x value.Value) (value.Value, error) {
		num, ok := x.(value.Number)
		if !ok {
			return x, nil
		}
		return value.Round(num, int32(places)), nil
	})
}

// value(x) value-converts a string the way raw cells are converted.
func builtinValue(_ *evaluator, args []value.Value) (value.Value, error) {
	if len(args) == 0 {
		return value.Null{}, nil
	}
	return value.Lift(args[0], func(x value.Value) (value.Value, error) {
		if s, ok := x.(value.String); ok && s.Lang == "" {
			return value.FromLexical(s.S), nil
		}
		return x, nil
	})
}

func builtinAbort(_ *evaluator, args []value.Value) (value.Value, error) {
	msg := ""
	if len(args) == 1 {
		msg = args[0].String()
	}
	return nil, &AbortError{Msg: msg}
}

func builtinUUID(ev *evaluator, _ []value.Value) (value.Value, error) {
	if ev.ctx.IDs != nil {
		return value.Str(ev.ctx.IDs.Generate()), nil
	}
	return value.Str(uuid.NewString()), nil
}

func builtinNow(ev *evaluator, _ []value.Value) (value.Value, error) {
	t := ev.ctx.Now
	if t.IsZero() {
		t = time.Now()
	}
	return value.Date{T: t, Datatype: rdf.XSDDateTime, HasTZ: true}, nil
}

func builtinConcat(_ *evaluator, args []value.Value) (value.Value, error) {
	if len(args) == 0 {
		return value.Null{}, nil
	}
	acc := args[0]
	for _, a := range args[1:] {
		acc = value.Append(acc, a)
	}
	return acc, nil
}
