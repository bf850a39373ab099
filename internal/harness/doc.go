// Package harness runs conversion scenarios: YAML files naming templates,
// an input table and the outcome the conversion must have.
//
// A scenario runs a real conversion with deterministic ids and a fixed
// clock, writing its statements to a fresh in-memory store, so the same
// scenario always produces byte-identical N-Triples. That output can be
// compared against a golden file with RunWithGolden.
//
// Scenario format:
//
//	name: concept-scheme
//	description: rows become SKOS concepts linked to their scheme
//	templates: [scheme.json]
//	csv: |
//	  notation,label
//	  A,Alpha
//	expect:
//	  status: succeeded
//	assertions:
//	  - type: contains
//	    triples:
//	      - <http://example.com/A> <http://www.w3.org/2000/01/rdf-schema#label> "Alpha" .
//	  - type: select
//	    patterns: ["?c a skos:Concept"]
//	    count: 1
//
// Graph lookup sources read from the same store; list the statements they
// need under graph: and they are stored before the conversion runs.
package harness
