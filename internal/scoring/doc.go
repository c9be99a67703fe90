// Package scoring implements the deterministic multi-signal scoring math
// used to rank retrieval candidates.
//
// Every function here is pure: no I/O, no clock access (the reference
// time is a parameter), no package-level mutable state. Weight vectors
// are plain values injected by the caller so tests can substitute them
// without global mutation.
//
// # Signals
//
// Four base signals feed the composite score:
//   - Semantic: cosine similarity against the query embedding, [0,1]
//   - Lexical: min-max normalized BM25 rank across the batch, [0,1]
//   - Recency: exponential decay with a configurable half-life, [0,1]
//   - ProjectMatch: 1 for a case-insensitive project match, else 0
//
// # Composition
//
// The composite score is the weighted dot product of the signals:
//
//	score := scoring.CompositeScore(signals, scoring.SearchWeights())
//	score *= scoring.KnowledgeTypeBoost(item.Kind)
//	score *= scoring.StalenessPenalty(item.IsStale)
//
// Two standard weight vectors exist: SearchWeights when a query string
// was supplied (semantic and lexical dominate) and ContextWeights for
// query-less session-start retrieval (recency and project match
// dominate). Each sums to 1.0, so a candidate with every signal at 1
// scores exactly 1.0 before boosts.
//
// # Recency Decay
//
// RecencyScore follows exp(-ageHours * ln2 / halfLife): exactly 0.5 at
// one half-life elapsed, strictly decreasing with age, asymptotic to 0.
// Future or present timestamps score 1; invalid timestamps score 0.
package scoring
