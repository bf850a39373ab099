package value

import "github.com/epimorphics/dclib-sub000/internal/rdf"

// Mapper resolves keys through named lookup sources. found is false on a
// miss; err is reserved for unknown sources and source failures.
type Mapper interface {
	MapKey(source, key string) (nodes []rdf.Node, found bool, err error)
}

// Map resolves the string form of v through the named source.
//
// On a miss a required lookup yields a fatal Error value describing the
// key; an optional one signals no result so the property is treated as
// absent.
func Map(v Value, m Mapper, source string, required bool) (Value, error) {
	return Lift(v, func(x Value) (Value, error) {
		if x.IsNull() {
			return nil, NoResult("null lookup key")
		}
		if n, ok := x.(Node); ok && n.N.Kind() != rdf.KindLiteral {
			return n, nil
		}
		nodes, found, err := m.MapKey(source, x.String())
		if err != nil {
			return Fatalf("lookup in %s failed: %v", source, err), nil
		}
		if !found {
			if required {
				return Fatalf("no match for %q in lookup source %s", x.String(), source), nil
			}
			return nil, NoResult("no match for %q in %s", x.String(), source)
		}
		return nodesValue(nodes), nil
	})
}

// MapAny tries each source in order and falls back to def (which may be
// nil, meaning no result) when none matches.
func MapAny(v Value, m Mapper, sources []string, def Value) (Value, error) {
	return Lift(v, func(x Value) (Value, error) {
		if x.IsNull() {
			return nil, NoResult("null lookup key")
		}
		for _, src := range sources {
			nodes, found, err := m.MapKey(src, x.String())
			if err != nil {
				return Fatalf("lookup in %s failed: %v", src, err), nil
			}
			if found {
				return nodesValue(nodes), nil
			}
		}
		if def == nil || def.IsNull() {
			return nil, NoResult("no match for %q in %v", x.String(), sources)
		}
		return def, nil
	})
}

func nodesValue(nodes []rdf.Node) Value {
	if len(nodes) == 1 {
		return NodeOf(nodes[0])
	}
	vals := make([]Value, len(nodes))
	for i, n := range nodes {
		vals[i] = NodeOf(n)
	}
	return NewArray(vals...)
}
