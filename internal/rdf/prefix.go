package rdf

import (
	"sort"
	"strings"
)

// PrefixMap maps CURIE prefixes to namespace IRIs.
//
// A PrefixMap is filled while templates load and is read-only afterwards.
type PrefixMap struct {
	ns map[string]string
}

// DefaultPrefixes are registered in every new PrefixMap.
var DefaultPrefixes = map[string]string{
	"rdf":  NSRDF,
	"rdfs": NSRDFS,
	"xsd":  NSXSD,
	"owl":  NSOWL,
	"skos": NSSKOS,
	"dct":  NSDCT,
	"dcat": NSDCAT,
	"foaf": NSFOAF,
	"qb":   NSQB,
}

// NewPrefixMap returns a map holding the default prefixes.
func NewPrefixMap() *PrefixMap {
	pm := &PrefixMap{ns: make(map[string]string, len(DefaultPrefixes))}
	for p, ns := range DefaultPrefixes {
		pm.ns[p] = ns
	}
	return pm
}

// Set registers (or replaces) a prefix.
func (pm *PrefixMap) Set(prefix, namespace string) {
	pm.ns[prefix] = namespace
}

// Namespace returns the namespace bound to prefix.
func (pm *PrefixMap) Namespace(prefix string) (string, bool) {
	ns, ok := pm.ns[prefix]
	return ns, ok
}

// Prefixes returns the registered prefixes in sorted order.
func (pm *PrefixMap) Prefixes() []string {
	out := make([]string, 0, len(pm.ns))
	for p := range pm.ns {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Expand resolves a CURIE such as "skos:Concept" to a full IRI.
// Strings whose prefix is unknown (including absolute IRIs like
// "http://...") are returned unchanged.
func (pm *PrefixMap) Expand(s string) string {
	if pm == nil {
		return s
	}
	i := strings.IndexByte(s, ':')
	if i < 0 {
		return s
	}
	local := s[i+1:]
	if strings.HasPrefix(local, "//") {
		return s
	}
	if ns, ok := pm.ns[s[:i]]; ok {
		return ns + local
	}
	return s
}

// Shorten rewrites iri as a CURIE using the longest matching namespace.
func (pm *PrefixMap) Shorten(iri string) string {
	best, bestNS := "", ""
	for p, ns := range pm.ns {
		if strings.HasPrefix(iri, ns) && len(ns) > len(bestNS) {
			best, bestNS = p, ns
		}
	}
	if bestNS == "" {
		return iri
	}
	return best + ":" + iri[len(bestNS):]
}
