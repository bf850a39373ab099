// Package lookup implements the lookup index used by the map operators.
//
// A Source indexes keys in two stages. Keys are bucketed by their
// normalized form (see Normalize), which tolerates case, punctuation and
// stop-word noise. Within a bucket the entry whose original key is closest
// to the raw query by Levenshtein distance wins, so close literal matches
// are still preferred.
//
// A Registry holds the sources of a conversion; Registry.Resolver binds it
// to one run's output so that matches can emit enrichment statements.
package lookup
