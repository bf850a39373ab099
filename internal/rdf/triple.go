package rdf

import (
	"bufio"
	"io"
	"sync"
)

// Triple is a single emitted statement.
type Triple struct {
	S Node
	P URI
	O Node
}

// String returns the N-Triples line for the triple, without a newline.
func (t Triple) String() string {
	return t.S.String() + " " + t.P.String() + " " + t.O.String() + " ."
}

// Sink accepts statements in emission order.
//
// Sinks are append-only. They must accept interleaved emission from
// preamble templates, per-row templates and lookup enrichment.
type Sink interface {
	Emit(t Triple) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(t Triple) error

func (f SinkFunc) Emit(t Triple) error { return f(t) }

// Graph is an in-memory Sink preserving emission order.
type Graph struct {
	mu      sync.Mutex
	triples []Triple
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{}
}

// Emit appends t.
func (g *Graph) Emit(t Triple) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.triples = append(g.triples, t)
	return nil
}

// Triples returns a copy of the emitted statements.
func (g *Graph) Triples() []Triple {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Triple, len(g.triples))
	copy(out, g.triples)
	return out
}

// Len returns the number of statements emitted so far.
func (g *Graph) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.triples)
}

// Match returns the statements matching the non-nil positions.
func (g *Graph) Match(s Node, p *URI, o Node) []Triple {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []Triple
	for _, t := range g.triples {
		if s != nil && t.S != s {
			continue
		}
		if p != nil && t.P != *p {
			continue
		}
		if o != nil && t.O != o {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Writer is a Sink serializing statements as N-Triples.
type Writer struct {
	w *bufio.Writer
}

// NewWriter wraps w. Call Flush when done.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Emit writes one N-Triples line.
func (w *Writer) Emit(t Triple) error {
	if _, err := w.w.WriteString(t.String()); err != nil {
		return err
	}
	return w.w.WriteByte('\n')
}

// Flush flushes buffered output.
func (w *Writer) Flush() error {
	return w.w.Flush()
}

// Tee fans every statement out to all sinks, stopping at the first error.
func Tee(sinks ...Sink) Sink {
	return SinkFunc(func(t Triple) error {
		for _, s := range sinks {
			if err := s.Emit(t); err != nil {
				return err
			}
		}
		return nil
	})
}
