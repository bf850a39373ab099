package lookup

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/epimorphics/dclib-sub000/internal/rdf"
)

// ErrUnknownSource is returned when a lookup names a source that was never
// registered.
var ErrUnknownSource = errors.New("unknown lookup source")

// Entry is one original key of a source and the nodes it maps to.
type Entry struct {
	// Key is the key as registered, before normalization.
	Key string

	// Nodes are the values registered for Key, in registration order.
	Nodes []rdf.Node

	// Row holds the source record the entry came from, when the source is
	// tabular. Enrichment reads it.
	Row map[string]string

	seq int
}

// EnrichFunc emits statements describing node, the value of a matched entry.
type EnrichFunc func(node rdf.Node, entry *Entry, sink rdf.Sink) error

// Source is a normalized-key index. Build it with Add, then treat it as
// immutable; lookups never mutate it.
type Source struct {
	Name string

	buckets map[string][]*Entry
	byKey   map[string]*Entry
	enrich  EnrichFunc
	n       int
}

// Option configures a Source.
type Option func(*Source)

// WithEnrich installs an enrichment callback.
func WithEnrich(fn EnrichFunc) Option {
	return func(s *Source) { s.enrich = fn }
}

// NewSource creates an empty source.
func NewSource(name string, opts ...Option) *Source {
	s := &Source{
		Name:    name,
		buckets: make(map[string][]*Entry),
		byKey:   make(map[string]*Entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add registers node under key. Registering the same original key again
// appends to its node list. row may be nil.
func (s *Source) Add(key string, node rdf.Node, row map[string]string) {
	if e, ok := s.byKey[key]; ok {
		e.Nodes = append(e.Nodes, node)
		return
	}

	e := &Entry{Key: key, Nodes: []rdf.Node{node}, Row: row, seq: s.n}
	s.n++
	s.byKey[key] = e

	norm := Normalize(key)
	s.buckets[norm] = append(s.buckets[norm], e)
}

// Len returns the number of distinct original keys.
func (s *Source) Len() int {
	return s.n
}

// HasEnrich reports whether matches trigger enrichment.
func (s *Source) HasEnrich() bool {
	return s.enrich != nil
}

// Lookup finds the entry for key. The query is normalized; among entries
// sharing the normalized form, the one whose original key is closest to
// the raw query by edit distance wins, earliest registration breaking ties.
func (s *Source) Lookup(key string) (*Entry, bool) {
	bucket := s.buckets[Normalize(key)]
	switch len(bucket) {
	case 0:
		return nil, false
	case 1:
		return bucket[0], true
	}

	best := bucket[0]
	bestDist := Levenshtein(key, best.Key)
	for _, e := range bucket[1:] {
		d := Levenshtein(key, e.Key)
		if d < bestDist || (d == bestDist && e.seq < best.seq) {
			best, bestDist = e, d
		}
	}
	return best, true
}

// Candidates returns every entry in key's normalized bucket, in
// registration order.
func (s *Source) Candidates(key string) []*Entry {
	bucket := s.buckets[Normalize(key)]
	out := make([]*Entry, len(bucket))
	copy(out, bucket)
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// Enrich runs the enrichment callback for every node of e.
func (s *Source) Enrich(e *Entry, sink rdf.Sink) error {
	if s.enrich == nil || sink == nil {
		return nil
	}
	for _, n := range e.Nodes {
		if err := s.enrich(n, e, sink); err != nil {
			return fmt.Errorf("enrich %s from %s: %w", n, s.Name, err)
		}
	}
	return nil
}

// Registry holds the sources declared for a conversion.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]*Source
	order   []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sources: make(map[string]*Source)}
}

// Register adds or replaces a source.
func (r *Registry) Register(s *Source) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sources[s.Name]; !ok {
		r.order = append(r.order, s.Name)
	}
	r.sources[s.Name] = s
}

// Source returns the named source.
func (r *Registry) Source(name string) (*Source, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sources[name]
	return s, ok
}

// Names returns source names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Resolver binds the registry to the output of one run. It implements
// value.Mapper. Each matched node is enriched at most once per resolver.
//
// A Resolver belongs to a single run and is not safe for concurrent use.
type Resolver struct {
	reg      *Registry
	sink     rdf.Sink
	enriched map[string]bool
}

// Resolver creates a run-scoped resolver emitting enrichment into sink.
// sink may be nil to disable enrichment.
func (r *Registry) Resolver(sink rdf.Sink) *Resolver {
	return &Resolver{reg: r, sink: sink, enriched: make(map[string]bool)}
}

// MapKey looks key up in the named source.
func (res *Resolver) MapKey(source, key string) ([]rdf.Node, bool, error) {
	s, ok := res.reg.Source(source)
	if !ok {
		return nil, false, fmt.Errorf("%w: %s", ErrUnknownSource, source)
	}

	e, found := s.Lookup(key)
	if !found {
		return nil, false, nil
	}

	if s.HasEnrich() && res.sink != nil {
		id := s.Name + "\x00" + e.Key
		if !res.enriched[id] {
			res.enriched[id] = true
			if err := s.Enrich(e, res.sink); err != nil {
				return nil, false, err
			}
		}
	}

	nodes := make([]rdf.Node, len(e.Nodes))
	copy(nodes, e.Nodes)
	return nodes, true, nil
}
