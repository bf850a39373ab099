package rdf

import (
	"regexp"
	"strings"
)

// NodeKind identifies the kind of graph node.
type NodeKind int

const (
	KindURI NodeKind = iota
	KindBlank
	KindLiteral
)

// String returns a short kind name for diagnostics.
func (k NodeKind) String() string {
	switch k {
	case KindURI:
		return "uri"
	case KindBlank:
		return "blank"
	case KindLiteral:
		return "literal"
	default:
		return "unknown"
	}
}

// Node is a graph node: a URI, a blank node or a literal.
//
// All implementations are comparable value types, so two nodes can be
// compared with ==.
type Node interface {
	Kind() NodeKind
	// Value is the IRI, blank node label or literal lexical form.
	Value() string
	// String is the N-Triples serialization of the node.
	String() string
}

// URI is an IRI reference.
type URI struct {
	IRI string
}

func (u URI) Kind() NodeKind { return KindURI }
func (u URI) Value() string  { return u.IRI }
func (u URI) String() string { return "<" + escapeIRI(u.IRI) + ">" }

// LocalName returns the part of the IRI after the last '/', '#' or ':'.
func (u URI) LocalName() string {
	if i := strings.LastIndexAny(u.IRI, "/#:"); i >= 0 && i < len(u.IRI)-1 {
		return u.IRI[i+1:]
	}
	return u.IRI
}

// NewURI creates a URI node.
func NewURI(iri string) URI {
	return URI{IRI: iri}
}

// Blank is a blank node with a run-local label.
type Blank struct {
	ID string
}

func (b Blank) Kind() NodeKind { return KindBlank }
func (b Blank) Value() string  { return b.ID }
func (b Blank) String() string { return "_:" + b.ID }

// Literal is a typed or language-tagged literal.
// An empty Datatype and Language is a plain xsd:string literal.
type Literal struct {
	Lexical  string
	Language string
	Datatype string
}

func (l Literal) Kind() NodeKind { return KindLiteral }
func (l Literal) Value() string  { return l.Lexical }
func (l Literal) String() string {
	quoted := `"` + escapeLiteral(l.Lexical) + `"`
	if l.Language != "" {
		return quoted + "@" + l.Language
	}
	if l.Datatype != "" && l.Datatype != XSDString {
		return quoted + "^^<" + escapeIRI(l.Datatype) + ">"
	}
	return quoted
}

// PlainLiteral creates an untyped string literal.
func PlainLiteral(lexical string) Literal {
	return Literal{Lexical: lexical}
}

// LangLiteral creates a language-tagged literal.
func LangLiteral(lexical, lang string) Literal {
	return Literal{Lexical: lexical, Language: lang}
}

// TypedLiteral creates a literal with an explicit datatype.
// xsd:string is normalized to the plain form so that equal literals compare equal.
func TypedLiteral(lexical, datatype string) Literal {
	if datatype == XSDString {
		datatype = ""
	}
	return Literal{Lexical: lexical, Datatype: datatype}
}

// EffectiveDatatype returns the datatype IRI of the literal, defaulting to
// xsd:string (or rdf:langString for tagged literals).
func (l Literal) EffectiveDatatype() string {
	switch {
	case l.Language != "":
		return RDFLangString
	case l.Datatype == "":
		return XSDString
	default:
		return l.Datatype
	}
}

var (
	schemeRE       = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.\-]*:`)
	forbiddenIRIRE = regexp.MustCompile("[\\s<>\"{}|^`\\\\]")
	blankLabelRE   = regexp.MustCompile(`^_:[A-Za-z0-9_][A-Za-z0-9_.\-]*$`)
)

// IsAbsoluteIRI reports whether s is a well-formed absolute IRI: a scheme
// followed by characters legal in an N-Triples IRIREF.
func IsAbsoluteIRI(s string) bool {
	return schemeRE.MatchString(s) && !forbiddenIRIRE.MatchString(s)
}

// IsBlankLabel reports whether s has the "_:label" blank node syntax.
func IsBlankLabel(s string) bool {
	return blankLabelRE.MatchString(s)
}

func escapeLiteral(s string) string {
	if !strings.ContainsAny(s, "\\\"\n\r\t") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 8)
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func escapeIRI(s string) string {
	if !strings.ContainsAny(s, "<>\"\\ ") {
		return s
	}
	r := strings.NewReplacer(" ", "%20", "<", "%3C", ">", "%3E", "\"", "%22", "\\", "%5C")
	return r.Replace(s)
}
