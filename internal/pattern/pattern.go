// Package pattern compiles and evaluates the interpolated strings used in
// templates, such as "http://example.com/{id.toSegment()}" or
// "<{$base}{=n = name.trim(); n}>".
package pattern

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/epimorphics/dclib-sub000/internal/expr"
	"github.com/epimorphics/dclib-sub000/internal/rdf"
	"github.com/epimorphics/dclib-sub000/internal/value"
)

// ComponentKind identifies the kind of a pattern component.
type ComponentKind int

const (
	// Text is a literal fragment.
	Text ComponentKind = iota
	// Expression is a {expr} block.
	Expression
	// Script is a {= statements} block.
	Script
)

// Component is one piece of a compiled pattern.
type Component struct {
	Kind ComponentKind
	Text string // literal text, or the block source
	Prog *expr.Program
}

// Issue records a block that could not be compiled. The block is left out
// of the pattern.
type Issue struct {
	Offset int
	Source string
	Err    error
}

func (i Issue) String() string {
	return fmt.Sprintf("offset %d: %q: %v", i.Offset, i.Source, i.Err)
}

// Pattern is an immutable compiled pattern.
type Pattern struct {
	Source     string
	Components []Component

	// IsURI is set for "<...>" patterns.
	IsURI bool
	// IsInverse is set for "^<...>" patterns.
	IsInverse bool
	// IsConstant is set when the pattern is a single literal fragment.
	IsConstant bool

	// Issues lists the blocks that were dropped while compiling.
	Issues []Issue

	constant string
}

// Option configures compilation.
type Option func(*compiler)

// WithPrefixes expands constant URI patterns with pm.
func WithPrefixes(pm *rdf.PrefixMap) Option {
	return func(c *compiler) { c.prefixes = pm }
}

// WithLogger sets the logger that receives compile warnings.
func WithLogger(l *slog.Logger) Option {
	return func(c *compiler) { c.logger = l }
}

// WithCache compiles blocks through a specific expression cache.
func WithCache(cache *expr.Cache) Option {
	return func(c *compiler) { c.cache = cache }
}

type compiler struct {
	prefixes *rdf.PrefixMap
	logger   *slog.Logger
	cache    *expr.Cache
}

// Compile parses src.
//
// Outside braces characters are literal text. "{" opens an expression
// block and "{=" a script block; braces nest inside a block, and a
// backslash makes the next character literal everywhere. A block that does
// not compile, or is never closed, is logged and omitted; Compile itself
// never fails.
func Compile(src string, opts ...Option) *Pattern {
	c := &compiler{logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}

	p := &Pattern{Source: src}
	body := src
	switch {
	case strings.HasPrefix(src, "^<") && strings.HasSuffix(src, ">") && len(src) >= 3:
		p.IsURI, p.IsInverse = true, true
		body = src[2 : len(src)-1]
	case strings.HasPrefix(src, "<") && strings.HasSuffix(src, ">") && len(src) >= 2:
		p.IsURI = true
		body = src[1 : len(src)-1]
	}

	c.scan(p, body)

	switch {
	case len(p.Components) == 0:
		p.IsConstant = true
	case len(p.Components) == 1 && p.Components[0].Kind == Text:
		p.IsConstant = true
		p.constant = p.Components[0].Text
	}
	if p.IsConstant && p.IsURI {
		p.constant = c.prefixes.Expand(p.constant)
		p.Components = []Component{{Kind: Text, Text: p.constant}}
	}
	return p
}

// MustCompile is Compile for patterns known to be well formed; it panics
// when any block was dropped.
func MustCompile(src string, opts ...Option) *Pattern {
	p := Compile(src, opts...)
	if len(p.Issues) > 0 {
		panic(fmt.Sprintf("pattern: %s", p.Issues[0]))
	}
	return p
}

func (c *compiler) scan(p *Pattern, body string) {
	var text strings.Builder
	var block strings.Builder
	depth := 0
	escaped := false
	blockStart := 0

	for i := 0; i < len(body); i++ {
		ch := body[i]
		if escaped {
			if depth > 0 {
				// Keep the escape for the expression lexer.
				block.WriteByte('\\')
				block.WriteByte(ch)
			} else {
				text.WriteByte(ch)
			}
			escaped = false
			continue
		}
		switch {
		case ch == '\\':
			escaped = true
		case ch == '{':
			if depth == 0 {
				if text.Len() > 0 {
					p.Components = append(p.Components, Component{Kind: Text, Text: text.String()})
					text.Reset()
				}
				blockStart = i
			} else {
				block.WriteByte(ch)
			}
			depth++
		case ch == '}' && depth > 0:
			depth--
			if depth == 0 {
				c.addBlock(p, blockStart, block.String())
				block.Reset()
			} else {
				block.WriteByte(ch)
			}
		case depth > 0:
			block.WriteByte(ch)
		default:
			text.WriteByte(ch)
		}
	}
	if escaped {
		text.WriteByte('\\')
	}
	if depth > 0 {
		c.drop(p, blockStart, body[blockStart:], fmt.Errorf("unclosed block"))
	}
	if text.Len() > 0 {
		p.Components = append(p.Components, Component{Kind: Text, Text: text.String()})
	}
}

func (c *compiler) addBlock(p *Pattern, offset int, src string) {
	kind := Expression
	if strings.HasPrefix(src, "=") {
		kind = Script
		src = src[1:]
	}

	var prog *expr.Program
	var err error
	if c.cache != nil {
		prog, err = c.cache.Compile(src, kind == Script)
	} else {
		prog, err = expr.Compile(src, kind == Script)
	}
	if err != nil {
		c.drop(p, offset, src, err)
		return
	}
	p.Components = append(p.Components, Component{Kind: kind, Text: src, Prog: prog})
}

func (c *compiler) drop(p *Pattern, offset int, src string, err error) {
	issue := Issue{Offset: offset, Source: src, Err: err}
	p.Issues = append(p.Issues, issue)
	c.logger.Warn("dropping malformed pattern block",
		"pattern", p.Source,
		"offset", offset,
		"block", src,
		"error", err)
}

// Names returns the binding names the pattern reads, in first-use order.
func (p *Pattern) Names() []string {
	var out []string
	seen := make(map[string]bool)
	for _, c := range p.Components {
		if c.Prog == nil {
			continue
		}
		for _, n := range c.Prog.Names() {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	return out
}

// Constant returns the literal text of a constant pattern (prefix-expanded
// for URI patterns).
func (p *Pattern) Constant() (string, bool) {
	return p.constant, p.IsConstant
}

func (p *Pattern) String() string {
	return p.Source
}

// constantValue returns the value-converted constant.
func (p *Pattern) constantValue() value.Value {
	return value.FromLexical(p.constant)
}
