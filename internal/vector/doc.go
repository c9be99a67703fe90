// Package vector implements semantic similarity search over stored
// embeddings. Search runs in two phases: a SQL pre-filter selects the
// most recent embedded observations up to a candidate bound, then an
// in-process cosine pass ranks them against the query vector.
package vector
