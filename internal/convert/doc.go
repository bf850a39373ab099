// Package convert runs a template over the rows of a delimited file.
//
// A Converter holds what is shared between runs: the template registry,
// prefixes, lookup sources and run options. Each call to NewRun creates a
// Run that owns its own state: the root environment, the blank node cache,
// the lookup enrichment memory and the per-row diagnostics.
//
// RUN LIFECYCLE:
//
//  1. The root environment is seeded with $base, $dataset, $file, $now,
//     the caller's bindings and the file's metadata rows.
//  2. The root template is resolved, by name or from the file's columns.
//  3. The preamble runs once: template globals are bound and one-off
//     templates emit. A failure here ends the run.
//  4. Each row gets a child environment holding $row and its cells, and
//     the root template is applied to it.
//
// Each row moves through the states Ready → Applying → Emitted, Skipped or
// Failed. Data problems are diagnostics attached to the row and do not stop
// the run; abort() stops it at the row where it is called.
//
// A Run is single-threaded. Statements reach the sink in row order, with
// lookup enrichment interleaved where the lookup happens.
package convert
