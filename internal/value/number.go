package value

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/cockroachdb/apd/v3"

	"github.com/epimorphics/dclib-sub000/internal/rdf"
)

// NumberKind is the numeric subtype of a Number.
type NumberKind int

const (
	Integer NumberKind = iota
	Decimal
	Float
)

// Number is a numeric scalar. Integer and Decimal numbers are exact
// (apd decimals); Float is an IEEE double.
//
// A Number parsed from source text keeps its lexical form: String returns
// exactly the text it was parsed from, so "0042" stays "0042" even though
// its numeric value is 42. Numbers produced by arithmetic have no lexical
// form and print canonically.
type Number struct {
	kind    NumberKind
	exact   *apd.Decimal
	f       float64
	lexical string
}

// decimalContext is used for all exact arithmetic.
var decimalContext = func() *apd.Context {
	c := apd.BaseContext.WithPrecision(34)
	c.Rounding = apd.RoundHalfUp
	return c
}()

var (
	integerRE = regexp.MustCompile(`^[+-]?[0-9]+$`)
	decimalRE = regexp.MustCompile(`^[+-]?[0-9]*\.[0-9]+$`)
	floatRE   = regexp.MustCompile(`^[+-]?([0-9]+(\.[0-9]*)?|\.[0-9]+)[eE][+-]?[0-9]+$`)
)

// ParseNumber parses s using the integer/decimal/float lexical grammar.
// The result remembers s as its lexical form.
func ParseNumber(s string) (Number, bool) {
	switch {
	case integerRE.MatchString(s):
		d, _, err := apd.NewFromString(s)
		if err != nil {
			return Number{}, false
		}
		return Number{kind: Integer, exact: d, lexical: s}, true
	case decimalRE.MatchString(s):
		d, _, err := apd.NewFromString(s)
		if err != nil {
			return Number{}, false
		}
		return Number{kind: Decimal, exact: d, lexical: s}, true
	case floatRE.MatchString(s):
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Number{}, false
		}
		return Number{kind: Float, f: f, lexical: s}, true
	}
	return Number{}, false
}

// Int creates an Integer number.
func Int(i int64) Number {
	return Number{kind: Integer, exact: apd.New(i, 0)}
}

// FloatOf creates a Float number.
func FloatOf(f float64) Number {
	return Number{kind: Float, f: f}
}

// DecimalOf creates an exact number from d, classified as Integer when d
// has no fractional part.
func DecimalOf(d *apd.Decimal) Number {
	r := new(apd.Decimal)
	r.Reduce(d)
	if r.Exponent >= 0 {
		return Number{kind: Integer, exact: r}
	}
	return Number{kind: Decimal, exact: d}
}

func (Number) Kind() Kind    { return KindNumber }
func (Number) IsNull() bool  { return false }
func (Number) IsMulti() bool { return false }
func (Number) value()        {}

// NumberKind returns the numeric subtype.
func (n Number) NumberKind() NumberKind { return n.kind }

// Lexical returns the source text, or "" for computed numbers.
func (n Number) Lexical() string { return n.lexical }

// String returns the lexical form when present, otherwise the canonical form.
func (n Number) String() string {
	if n.lexical != "" {
		return n.lexical
	}
	return n.Canonical()
}

// Canonical returns the canonical lexical form of the numeric value.
func (n Number) Canonical() string {
	switch n.kind {
	case Float:
		return formatFloat(n.f)
	case Integer:
		r := new(apd.Decimal)
		r.Reduce(n.exact)
		return r.Text('f')
	default:
		return n.exact.Text('f')
	}
}

func formatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "INF"
	case math.IsInf(f, -1):
		return "-INF"
	case math.IsNaN(f):
		return "NaN"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEN") {
		s += ".0"
	}
	return s
}

// Datatype returns the narrowest xsd datatype for the number.
func (n Number) Datatype() string {
	switch n.kind {
	case Integer:
		return rdf.XSDInteger
	case Decimal:
		return rdf.XSDDecimal
	default:
		return rdf.XSDDouble
	}
}

// Float64 returns the value as a float64.
func (n Number) Float64() float64 {
	if n.kind == Float {
		return n.f
	}
	f, err := n.exact.Float64()
	if err != nil {
		return math.NaN()
	}
	return f
}

// Int64 returns the value as an int64 when it is integral and in range.
func (n Number) Int64() (int64, bool) {
	if n.kind == Float {
		if n.f != math.Trunc(n.f) || n.f > math.MaxInt64 || n.f < math.MinInt64 {
			return 0, false
		}
		return int64(n.f), true
	}
	r := new(apd.Decimal)
	r.Reduce(n.exact)
	if r.Exponent < 0 {
		return 0, false
	}
	i, err := r.Int64()
	if err != nil {
		return 0, false
	}
	return i, true
}

// IsZero reports whether the number is zero.
func (n Number) IsZero() bool {
	if n.kind == Float {
		return n.f == 0
	}
	return n.exact.IsZero()
}

func (n Number) decimal() *apd.Decimal {
	if n.kind != Float {
		return n.exact
	}
	d := new(apd.Decimal)
	if _, err := d.SetFloat64(n.f); err != nil {
		return apd.New(0, 0)
	}
	return d
}

// Compare returns -1, 0 or 1.
func Compare(a, b Number) int {
	if a.kind == Float || b.kind == Float {
		af, bf := a.Float64(), b.Float64()
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	return a.exact.Cmp(b.exact)
}

// Arith is a binary arithmetic operator.
type Arith int

const (
	Add Arith = iota
	Sub
	Mul
	Div
	Mod
)

// Calculate applies op. Mixed exact/float arithmetic is carried out in
// floating point; exact arithmetic stays exact. Division by zero yields an
// Error value.
func Calculate(op Arith, a, b Number) Value {
	if (op == Div || op == Mod) && b.IsZero() {
		return Errorf("division by zero")
	}
	if a.kind == Float || b.kind == Float {
		x, y := a.Float64(), b.Float64()
		switch op {
		case Add:
			return FloatOf(x + y)
		case Sub:
			return FloatOf(x - y)
		case Mul:
			return FloatOf(x * y)
		case Div:
			return FloatOf(x / y)
		default:
			return FloatOf(math.Mod(x, y))
		}
	}
	r := new(apd.Decimal)
	var err error
	switch op {
	case Add:
		_, err = decimalContext.Add(r, a.exact, b.exact)
	case Sub:
		_, err = decimalContext.Sub(r, a.exact, b.exact)
	case Mul:
		_, err = decimalContext.Mul(r, a.exact, b.exact)
	case Div:
		_, err = decimalContext.Quo(r, a.exact, b.exact)
	default:
		_, err = decimalContext.Rem(r, a.exact, b.exact)
	}
	if err != nil {
		return Errorf("arithmetic failed: %v", err)
	}
	if op == Div {
		return DecimalOf(r)
	}
	if a.kind == Integer && b.kind == Integer {
		return Number{kind: Integer, exact: r}
	}
	return Number{kind: Decimal, exact: r}
}

// Negate returns -n.
func Negate(n Number) Number {
	if n.kind == Float {
		return FloatOf(-n.f)
	}
	r := new(apd.Decimal)
	r.Neg(n.exact)
	return Number{kind: n.kind, exact: r}
}

// Round rounds n half-up to the given number of decimal places.
func Round(n Number, places int32) Number {
	if n.kind == Float {
		p := math.Pow(10, float64(places))
		return FloatOf(math.Round(n.f*p) / p)
	}
	r := new(apd.Decimal)
	if _, err := decimalContext.Quantize(r, n.exact, -places); err != nil {
		return n
	}
	if places <= 0 {
		return DecimalOf(r)
	}
	return Number{kind: Decimal, exact: r}
}
