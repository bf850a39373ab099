// Package store provides SQLite-backed storage for converted graphs.
//
// Each conversion run is recorded in the runs table and the statements it
// emits are appended to the triples table, terms in N-Triples form. A
// RunWriter is an rdf.Sink, so a run can stream straight into the store.
//
// The stored graph is the union of all runs. It can be read back per run
// (Triples), per subject (Describe) or with a queryir graph query
// (Select), which is how graph lookup sources find their keys.
//
// # Deterministic Results
//
// Every read is ordered: triples by emission sequence, runs by id, query
// solutions by their projected variables.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
