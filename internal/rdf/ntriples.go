package rdf

import (
	"fmt"
	"strings"
)

// ParseTerm parses a single N-Triples term as produced by Node.String.
func ParseTerm(s string) (Node, error) {
	switch {
	case strings.HasPrefix(s, "<") && strings.HasSuffix(s, ">"):
		return URI{IRI: s[1 : len(s)-1]}, nil
	case strings.HasPrefix(s, "_:"):
		return Blank{ID: s[2:]}, nil
	case strings.HasPrefix(s, `"`):
		return parseLiteral(s)
	default:
		return nil, fmt.Errorf("not an N-Triples term: %q", s)
	}
}

func parseLiteral(s string) (Node, error) {
	var b strings.Builder
	i := 1
	closed := false
	for i < len(s) {
		c := s[i]
		if c == '\\' {
			if i+1 >= len(s) {
				return nil, fmt.Errorf("dangling escape in literal %q", s)
			}
			switch s[i+1] {
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			case '"', '\\':
				b.WriteByte(s[i+1])
			default:
				return nil, fmt.Errorf("unknown escape \\%c in literal %q", s[i+1], s)
			}
			i += 2
			continue
		}
		if c == '"' {
			closed = true
			i++
			break
		}
		b.WriteByte(c)
		i++
	}
	if !closed {
		return nil, fmt.Errorf("unterminated literal %q", s)
	}
	rest := s[i:]
	switch {
	case rest == "":
		return PlainLiteral(b.String()), nil
	case strings.HasPrefix(rest, "@"):
		return LangLiteral(b.String(), rest[1:]), nil
	case strings.HasPrefix(rest, "^^<") && strings.HasSuffix(rest, ">"):
		return TypedLiteral(b.String(), rest[3:len(rest)-1]), nil
	default:
		return nil, fmt.Errorf("malformed literal suffix %q", rest)
	}
}

// ParseTriple parses one N-Triples statement line as written by
// Triple.String. The trailing " ." is optional.
func ParseTriple(line string) (Triple, error) {
	line = strings.TrimSpace(line)
	line = strings.TrimSpace(strings.TrimSuffix(line, " ."))

	s, rest, ok := strings.Cut(line, " ")
	if !ok {
		return Triple{}, fmt.Errorf("not an N-Triples statement: %q", line)
	}
	p, o, ok := strings.Cut(strings.TrimSpace(rest), " ")
	if !ok {
		return Triple{}, fmt.Errorf("not an N-Triples statement: %q", line)
	}

	sn, err := ParseTerm(s)
	if err != nil {
		return Triple{}, fmt.Errorf("subject: %w", err)
	}
	if sn.Kind() == KindLiteral {
		return Triple{}, fmt.Errorf("subject: literal %s", s)
	}
	pn, err := ParseTerm(p)
	if err != nil {
		return Triple{}, fmt.Errorf("predicate: %w", err)
	}
	pred, ok := pn.(URI)
	if !ok {
		return Triple{}, fmt.Errorf("predicate: %s is not a URI", p)
	}
	on, err := ParseTerm(strings.TrimSpace(o))
	if err != nil {
		return Triple{}, fmt.Errorf("object: %w", err)
	}
	return Triple{S: sn, P: pred, O: on}, nil
}
