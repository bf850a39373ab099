// Package queryir is a small intermediate representation for the graph
// queries lookup sources run against the statement store.
//
// A query is a basic graph pattern: a list of triple patterns whose terms
// are constants or variables, joined on shared variables, an optional
// filter, and an explicit projection:
//
//	Select{
//	  Patterns: []Pattern{
//	    {S: Var("s"), P: Const(skosNotation), O: Var("key")},
//	    {S: Var("s"), P: Const(rdfType), O: Const(skosConcept)},
//	  },
//	  Project: []string{"s", "key"},
//	}
//
// which corresponds to the SPARQL
//
//	SELECT DISTINCT ?s ?key WHERE {
//	  ?s skos:notation ?key .
//	  ?s a skos:Concept .
//	} ORDER BY ?s ?key
//
// Query, Term and Predicate are sealed interfaces using the marker method
// pattern, so backends (see internal/querysql) can switch exhaustively.
// Solutions are always returned in a deterministic order: by the projected
// variables, in projection order.
package queryir
