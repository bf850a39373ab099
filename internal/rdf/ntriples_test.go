package rdf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTerm(t *testing.T) {
	tests := []struct {
		in   string
		want Node
	}{
		{"<http://example.com/a>", NewURI("http://example.com/a")},
		{"_:b7", Blank{ID: "b7"}},
		{`"plain"`, PlainLiteral("plain")},
		{`""`, PlainLiteral("")},
		{`"chat"@fr`, LangLiteral("chat", "fr")},
		{`"42"^^<http://www.w3.org/2001/XMLSchema#integer>`, TypedLiteral("42", XSDInteger)},
		{`"x"^^<http://www.w3.org/2001/XMLSchema#string>`, PlainLiteral("x")},
		{`"a \"quoted\"\nline\\"`, PlainLiteral("a \"quoted\"\nline\\")},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTerm(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseTerm_RoundTrip(t *testing.T) {
	nodes := []Node{
		NewURI("http://example.com/x#y"),
		Blank{ID: "b00000000000000000000000000000002"},
		PlainLiteral("tab\there"),
		LangLiteral("colour", "en-GB"),
		TypedLiteral("2024-01-02T03:04:05Z", XSDDateTime),
	}
	for _, n := range nodes {
		t.Run(n.String(), func(t *testing.T) {
			got, err := ParseTerm(n.String())
			require.NoError(t, err)
			assert.Equal(t, n, got)
		})
	}
}

func TestParseTerm_Errors(t *testing.T) {
	tests := []struct {
		in      string
		wantErr string
	}{
		{"skos:Concept", "not an N-Triples term"},
		{`"open`, "unterminated literal"},
		{`"bad\q"`, `unknown escape \q`},
		{`"x"junk`, "malformed literal suffix"},
		{`"x\`, "dangling escape"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			_, err := ParseTerm(tt.in)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseTriple(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Triple
	}{
		{
			name: "uri object",
			line: "<http://ex/s> <http://ex/p> <http://ex/o> .",
			want: Triple{S: NewURI("http://ex/s"), P: NewURI("http://ex/p"), O: NewURI("http://ex/o")},
		},
		{
			name: "literal with spaces and a full stop",
			line: `<http://ex/s> <http://ex/p> "The end." .`,
			want: Triple{S: NewURI("http://ex/s"), P: NewURI("http://ex/p"), O: PlainLiteral("The end.")},
		},
		{
			name: "terminator optional",
			line: `_:b1 <http://ex/p> "1"^^<http://www.w3.org/2001/XMLSchema#integer>`,
			want: Triple{S: Blank{ID: "b1"}, P: NewURI("http://ex/p"), O: TypedLiteral("1", XSDInteger)},
		},
		{
			name: "surrounding space",
			line: "  <http://ex/s>   <http://ex/p> _:o .  ",
			want: Triple{S: NewURI("http://ex/s"), P: NewURI("http://ex/p"), O: Blank{ID: "o"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTriple(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.String(), got.String())
		})
	}
}

func TestParseTriple_Errors(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		wantErr string
	}{
		{"too short", "<http://ex/s>", "not an N-Triples statement"},
		{"two terms", "<http://ex/s> <http://ex/p>", "not an N-Triples statement"},
		{"literal subject", `"s" <http://ex/p> <http://ex/o> .`, "subject: literal"},
		{"blank predicate", "<http://ex/s> _:p <http://ex/o> .", "is not a URI"},
		{"bad object", "<http://ex/s> <http://ex/p> ex:o .", "object:"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTriple(tt.line)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
