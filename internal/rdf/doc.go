// Package rdf holds the graph node model shared by the converter: URI,
// blank node and literal terms, triples, statement sinks, CURIE prefix
// expansion and N-Triples serialization.
package rdf
