package value

import "github.com/epimorphics/dclib-sub000/internal/rdf"

// AsNode converts a scalar to a literal graph node. Node values pass
// through; strings become plain or language-tagged literals; numbers become
// canonical literals of the narrowest xsd numeric datatype ("0042" is
// "42"^^xsd:integer, while String still gives "0042"); booleans and
// dates get their xsd datatype. It reports false for Null, Array, Error and
// Function.
func AsNode(v Value) (rdf.Node, bool) {
	switch t := v.(type) {
	case Node:
		return t.N, true
	case String:
		if t.Lang != "" {
			return rdf.LangLiteral(t.S, t.Lang), true
		}
		return rdf.PlainLiteral(t.S), true
	case Number:
		return rdf.TypedLiteral(t.Canonical(), t.Datatype()), true
	case Bool:
		return rdf.TypedLiteral(t.String(), rdf.XSDBoolean), true
	case Date:
		return rdf.TypedLiteral(t.String(), t.Datatype), true
	default:
		return nil, false
	}
}

// FromNode converts a graph node back into a value: literals with a numeric
// or boolean datatype become Number or Bool, other literals String, and
// URIs and blank nodes stay Nodes.
func FromNode(n rdf.Node) Value {
	lit, ok := n.(rdf.Literal)
	if !ok {
		return NodeOf(n)
	}
	switch lit.EffectiveDatatype() {
	case rdf.XSDInteger, rdf.XSDDecimal, rdf.XSDDouble:
		if num, ok := ParseNumber(lit.Lexical); ok {
			return num
		}
	case rdf.XSDBoolean:
		return Bool(lit.Lexical == "true" || lit.Lexical == "1")
	case rdf.XSDString:
		return Str(lit.Lexical)
	case rdf.RDFLangString:
		return String{S: lit.Lexical, Lang: lit.Language}
	}
	return NodeOf(n)
}
