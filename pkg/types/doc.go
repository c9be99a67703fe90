// Package types provides shared type definitions for the memloop MCP server.
//
// This package defines the domain types used across the memory layer:
// observations, summaries, scored retrieval candidates, and context
// assembly results.
//
// # Core Types
//
// Observation is a timestamped memory entry recorded by a coding agent:
//
//	obs := &types.Observation{
//	    Project: "demo",
//	    Kind:    types.KnowledgeDecision,
//	    Title:   "Use keyset pagination for list endpoints",
//	    Body:    "Offset pagination degrades past ~10k rows...",
//	}
//
// ScoredItem is the transient retrieval candidate produced per call:
//
//	item := types.ScoredItem{
//	    ID:    obs.ID,
//	    Score: 0.82,
//	    Signals: types.Signals{Semantic: 0.9, Lexical: 0.7, Recency: 0.8, ProjectMatch: 1},
//	}
//
// # Structured Knowledge
//
// A fixed subset of observation kinds (constraint, decision, heuristic,
// rejected) is treated as structured knowledge and boosted during
// ranking. Any other kind is stored and retrieved without a boost.
//
// # Timestamps
//
// Observations carry both an ISO-8601 creation string and the same
// instant as Unix milliseconds. The epoch value is the canonical sort and
// tie-break key; together with the ID it gives retrieval a deterministic
// total order.
package types
