package value

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Append is the core combinator used by pattern concatenation.
//
//   - scalar + scalar: concatenation of string forms
//   - scalar + Array: the scalar appended to (or prepended to) each element
//   - Array + Array: the full cross product, outer-major, so the result has
//     len(a)*len(b) elements ordered a[0]+b[0], a[0]+b[1], ..., a[1]+b[0], ...
//
// Error operands propagate unchanged; Null absorbs.
func Append(a, b Value) Value {
	if e, ok := a.(Error); ok {
		return e
	}
	if e, ok := b.(Error); ok {
		return e
	}
	if a == nil || b == nil || a.IsNull() || b.IsNull() {
		return Null{}
	}
	aa, aMulti := a.(Array)
	ba, bMulti := b.(Array)
	switch {
	case aMulti && bMulti:
		out := make(Array, 0, len(aa)*len(ba))
		for _, x := range aa {
			for _, y := range ba {
				out = append(out, Append(x, y))
			}
		}
		return out
	case aMulti:
		out := make(Array, len(aa))
		for i, x := range aa {
			out[i] = Append(x, b)
		}
		return out
	case bMulti:
		out := make(Array, len(ba))
		for i, y := range ba {
			out[i] = Append(a, y)
		}
		return out
	default:
		return Str(a.String() + b.String())
	}
}

// Lift applies a scalar operation to v, mapping it element-wise over
// arrays. Elements for which f reports no result are dropped; if every
// element is dropped the whole result is no result. The first Error value
// produced by any element is returned as the result.
func Lift(v Value, f func(Value) (Value, error)) (Value, error) {
	arr, ok := v.(Array)
	if !ok {
		return f(v)
	}
	out := make([]Value, 0, len(arr))
	for _, elem := range arr {
		r, err := f(elem)
		if err != nil {
			if IsNoResult(err) {
				continue
			}
			return nil, err
		}
		if e, ok := r.(Error); ok {
			return e, nil
		}
		if r == nil || r.IsNull() {
			continue
		}
		out = append(out, r)
	}
	if len(out) == 0 {
		return nil, NoResult("no element produced a value")
	}
	return NewArray(out...), nil
}

// liftString lifts a string → string transformation.
func liftString(v Value, f func(string) string) (Value, error) {
	return Lift(v, func(x Value) (Value, error) {
		if x.IsNull() {
			return nil, NoResult("null value")
		}
		if s, ok := x.(String); ok {
			return String{S: f(s.S), Lang: s.Lang}, nil
		}
		return Str(f(x.String())), nil
	})
}

// FromLexical converts a raw cell string into a Value: the empty string is
// Null, numeric lexical forms become Numbers (keeping their text), and
// everything else is a String. Dates are never detected here.
func FromLexical(raw string) Value {
	if raw == "" {
		return Null{}
	}
	if n, ok := ParseNumber(raw); ok {
		return n
	}
	return Str(raw)
}

// ToNumber converts v to a Number.
func ToNumber(v Value) (Value, error) {
	return Lift(v, func(x Value) (Value, error) {
		switch t := x.(type) {
		case Null:
			return nil, NoResult("null value")
		case Number:
			return t, nil
		case Bool:
			if t {
				return Int(1), nil
			}
			return Int(0), nil
		default:
			s := strings.TrimSpace(x.String())
			s = strings.ReplaceAll(s, ",", "")
			if n, ok := ParseNumber(s); ok {
				return n, nil
			}
			return Errorf("cannot convert %q to a number", x.String()), nil
		}
	})
}

// ToDate converts v to a Date using the given formats (or ISO 8601 when
// none are given). datatype may be empty to infer it from the format.
func ToDate(v Value, formats []string, datatype string) (Value, error) {
	dt := ""
	if datatype != "" {
		dt = DateDatatype(datatype)
		if dt == "" {
			return Errorf("unknown date datatype %q", datatype), nil
		}
	}
	return Lift(v, func(x Value) (Value, error) {
		switch t := x.(type) {
		case Null:
			return nil, NoResult("null value")
		case Date:
			if dt != "" {
				t.Datatype = dt
			}
			return t, nil
		default:
			d, ok := ParseDate(x.String(), formats, dt)
			if !ok {
				return Errorf("cannot parse %q as a date", x.String()), nil
			}
			return d, nil
		}
	})
}

var diacriticFolder = runes.Remove(runes.In(unicode.Mn))

// FoldDiacritics strips combining marks after NFKD decomposition,
// so "Café" becomes "Cafe".
func FoldDiacritics(s string) string {
	out, _, err := transform.String(transform.Chain(norm.NFKD, diacriticFolder, norm.NFC), s)
	if err != nil {
		return s
	}
	return out
}

// Segment turns s into a URI-safe path segment: diacritics folded, lower
// case, and each run of characters outside [a-z0-9._~-] replaced by sep.
func Segment(s, sep string) string {
	s = strings.ToLower(FoldDiacritics(strings.TrimSpace(s)))
	var b strings.Builder
	pending := false
	for _, r := range s {
		ok := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '.' || r == '_' || r == '~' || r == '-'
		if !ok {
			pending = b.Len() > 0
			continue
		}
		if pending {
			b.WriteString(sep)
			pending = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ToSegment lifts Segment over v.
func ToSegment(v Value, sep string) (Value, error) {
	return liftString(v, func(s string) string { return Segment(s, sep) })
}

// Upper upper-cases v.
func Upper(v Value) (Value, error) {
	c := cases.Upper(language.Und)
	return liftString(v, c.String)
}

// Lower lower-cases v.
func Lower(v Value) (Value, error) {
	c := cases.Lower(language.Und)
	return liftString(v, c.String)
}

// Trim removes leading and trailing white space.
func Trim(v Value) (Value, error) {
	return liftString(v, strings.TrimSpace)
}

// Substring returns the runes in [start, end). A negative end means "to the
// end of the string". Indexes are clamped to the string.
func Substring(v Value, start, end int) (Value, error) {
	return liftString(v, func(s string) string {
		rs := []rune(s)
		from, to := start, end
		if to < 0 || to > len(rs) {
			to = len(rs)
		}
		if from < 0 {
			from = 0
		}
		if from >= to {
			return ""
		}
		return string(rs[from:to])
	})
}

var regexCache sync.Map

func compileRegex(expr string) (*regexp.Regexp, error) {
	if re, ok := regexCache.Load(expr); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	regexCache.Store(expr, re)
	return re, nil
}

// RegexExtract matches v against expr. With no capture groups it returns
// the whole match, with one group that group, and with several groups an
// Array of them. No match is no result.
func RegexExtract(v Value, expr string) (Value, error) {
	re, err := compileRegex(expr)
	if err != nil {
		return Errorf("bad regular expression %q: %v", expr, err), nil
	}
	return Lift(v, func(x Value) (Value, error) {
		if x.IsNull() {
			return nil, NoResult("null value")
		}
		m := re.FindStringSubmatch(x.String())
		if m == nil {
			return nil, NoResult("%q does not match %s", x.String(), expr)
		}
		switch len(m) {
		case 1:
			return Str(m[0]), nil
		case 2:
			return Str(m[1]), nil
		default:
			groups := make([]Value, 0, len(m)-1)
			for _, g := range m[1:] {
				groups = append(groups, Str(g))
			}
			return NewArray(groups...), nil
		}
	})
}

// Matches reports whether v's string form matches expr.
func Matches(v Value, expr string) (Value, error) {
	re, err := compileRegex(expr)
	if err != nil {
		return Errorf("bad regular expression %q: %v", expr, err), nil
	}
	return Bool(re.MatchString(v.String())), nil
}

// ReplaceAll replaces every match of expr with repl ($1 style references
// allowed).
func ReplaceAll(v Value, expr, repl string) (Value, error) {
	re, err := compileRegex(expr)
	if err != nil {
		return Errorf("bad regular expression %q: %v", expr, err), nil
	}
	return liftString(v, func(s string) string { return re.ReplaceAllString(s, repl) })
}

// Split splits v on the regular expression sep. Pieces are trimmed, empty
// pieces dropped, and each piece value-converted like a raw cell.
func Split(v Value, sep string) (Value, error) {
	re, err := compileRegex(sep)
	if err != nil {
		return Errorf("bad regular expression %q: %v", sep, err), nil
	}
	return Lift(v, func(x Value) (Value, error) {
		if x.IsNull() {
			return nil, NoResult("null value")
		}
		var parts []Value
		for _, p := range re.Split(x.String(), -1) {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			parts = append(parts, FromLexical(p))
		}
		if len(parts) == 0 {
			return nil, NoResult("nothing to split in %q", x.String())
		}
		return NewArray(parts...), nil
	})
}

// Describe returns a debug rendering of v including its kind.
func Describe(v Value) string {
	if v == nil {
		return "<unbound>"
	}
	return fmt.Sprintf("%s(%s)", v.Kind(), v.String())
}

// Cross combines a and b with f, distributing over arrays the same way
// Append does: arrays on either side fan out, both sides give the cross
// product in outer-major order. Error operands propagate.
func Cross(a, b Value, f func(x, y Value) Value) Value {
	if e, ok := a.(Error); ok {
		return e
	}
	if e, ok := b.(Error); ok {
		return e
	}
	aa, aMulti := a.(Array)
	ba, bMulti := b.(Array)
	if !aMulti {
		aa = Array{a}
	}
	if !bMulti {
		ba = Array{b}
	}
	if !aMulti && !bMulti {
		return f(a, b)
	}
	out := make([]Value, 0, len(aa)*len(ba))
	for _, x := range aa {
		for _, y := range ba {
			r := f(x, y)
			if e, ok := r.(Error); ok {
				return e
			}
			if r == nil || r.IsNull() {
				continue
			}
			out = append(out, r)
		}
	}
	return NewArray(out...)
}
