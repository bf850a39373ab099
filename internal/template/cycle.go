package template

import (
	"fmt"
	"strings"
)

// ReferenceWarning reports a questionable reference between templates.
//
// Cycles are warnings, not errors, because they may be intentional: a
// template can delegate to itself while the required names of the rows
// it sees keep the recursion finite. The dispatcher's depth limit stops
// the ones that are not.
type ReferenceWarning struct {
	Path    []string `json:"path"`
	Message string   `json:"message"`
	Level   string   `json:"level"` // "warning" or "error"
}

// AnalyzeReferences checks the references between the named templates of
// reg. It reports each reference to a name that is not registered and
// each cycle of references. A registry without cycles or dangling names
// returns an empty list.
func AnalyzeReferences(reg *Registry) []ReferenceWarning {
	names := reg.Names()
	graph := make(refGraph, len(names))
	for _, name := range names {
		t, _ := reg.Lookup(name)
		graph[name] = collectRefs(t, nil)
	}

	warnings := []ReferenceWarning{}
	for _, t := range reg.Roots() {
		if t.Head().Name != "" {
			continue
		}
		for _, target := range collectRefs(t, nil) {
			if _, ok := reg.Lookup(target); !ok {
				warnings = append(warnings, unresolvedWarning(Describe(t), target))
			}
		}
	}
	for _, name := range names {
		for _, target := range graph[name] {
			if _, ok := graph[target]; !ok {
				warnings = append(warnings, unresolvedWarning(name, target))
			}
		}
	}

	for _, scc := range tarjanSCC(names, graph) {
		if len(scc) > 1 || hasSelfLoop(scc[0], graph) {
			warnings = append(warnings, cycleWarning(scc, graph))
		}
	}
	return warnings
}

// refGraph maps a template name to the names it refers to.
type refGraph map[string][]string

// collectRefs appends the reference targets reachable from t without
// passing through another reference.
func collectRefs(t Template, out []string) []string {
	switch t := t.(type) {
	case *Ref:
		return appendUnique(out, t.Target)
	case *Composite:
		for _, c := range t.OneOffs {
			out = collectRefs(c, out)
		}
		for _, c := range t.Templates {
			out = collectRefs(c, out)
		}
	case *Let:
		out = collectRefs(t.Body, out)
	}
	return out
}

func appendUnique(out []string, s string) []string {
	for _, o := range out {
		if o == s {
			return out
		}
	}
	return append(out, s)
}

func unresolvedWarning(from, target string) ReferenceWarning {
	return ReferenceWarning{
		Path:    []string{from, target},
		Message: fmt.Sprintf("%s refers to unknown template %q", from, target),
		Level:   "error",
	}
}

func hasSelfLoop(node string, graph refGraph) bool {
	for _, n := range graph[node] {
		if n == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds the strongly connected components of graph, visiting
// nodes in the given order so the result is stable.
func tarjanSCC(nodes []string, graph refGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, known := graph[w]; !known {
				continue
			}
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, n := range nodes {
		if _, visited := indices[n]; !visited {
			strongConnect(n)
		}
	}
	return sccs
}

func cycleWarning(scc []string, graph refGraph) ReferenceWarning {
	if len(scc) == 1 {
		return ReferenceWarning{
			Path:    []string{scc[0], scc[0]},
			Message: fmt.Sprintf("template %s refers to itself", scc[0]),
			Level:   "warning",
		}
	}
	path := cyclePath(scc, graph)
	return ReferenceWarning{
		Path:    path,
		Message: "reference cycle: " + strings.Join(path, " → "),
		Level:   "warning",
	}
}

// cyclePath walks from the last member of scc (the first one Tarjan
// visited) along edges inside the component until it returns to the start.
func cyclePath(scc []string, graph refGraph) []string {
	members := make(map[string]bool, len(scc))
	for _, n := range scc {
		members[n] = true
	}
	start := scc[len(scc)-1]
	path := []string{start}
	visited := map[string]bool{}
	for cur := start; ; {
		visited[cur] = true
		next := ""
		for _, n := range graph[cur] {
			if members[n] && (!visited[n] || n == start) {
				next = n
				break
			}
		}
		if next == "" {
			break
		}
		path = append(path, next)
		if next == start {
			break
		}
		cur = next
	}
	return path
}
