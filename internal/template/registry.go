package template

import (
	"fmt"
	"sync"
)

// Registry maps names to templates and remembers the top-level templates
// of the loaded documents in load order.
//
// References are resolved against the registry at call time, so templates
// may refer to names registered later.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Template
	names  []string
	roots  []Template
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Template)}
}

// Register adds t under name. A name may only be registered once.
func (r *Registry) Register(name string, t Template) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[name]; ok {
		return fmt.Errorf("template %q already registered", name)
	}
	r.byName[name] = t
	r.names = append(r.names, name)
	return nil
}

// AddRoot records a top-level template.
func (r *Registry) AddRoot(t Template) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roots = append(r.roots, t)
}

// Lookup returns the template registered under name.
func (r *Registry) Lookup(name string) (Template, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byName[name]
	return t, ok
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.names...)
}

// Roots returns the top-level templates in load order.
func (r *Registry) Roots() []Template {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Template(nil), r.roots...)
}

// Select picks the root template for a file with the given columns: the
// first top-level template whose required names are all columns. Names
// starting with '$' are run bindings rather than columns and are ignored.
func (r *Registry) Select(columns []string) (Template, bool) {
	have := make(map[string]bool, len(columns))
	for _, c := range columns {
		have[c] = true
	}
	for _, t := range r.Roots() {
		ok := true
		for _, req := range t.Head().Required {
			if len(req) > 0 && req[0] == '$' {
				continue
			}
			if !have[req] {
				ok = false
				break
			}
		}
		if ok {
			return t, true
		}
	}
	return nil, false
}

// Root resolves the template to run: the named one when name is set,
// otherwise the automatic selection for columns.
func (r *Registry) Root(name string, columns []string) (Template, error) {
	if name != "" {
		t, ok := r.Lookup(name)
		if !ok {
			return nil, &UnresolvedRefError{Name: name}
		}
		return t, nil
	}
	t, ok := r.Select(columns)
	if !ok {
		return nil, fmt.Errorf("no template applies to columns %v", columns)
	}
	return t, nil
}
