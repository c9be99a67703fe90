package types

import (
	"strings"
	"time"
)

// Knowledge types that mark an observation as structured knowledge.
// They receive a multiplicative scoring boost during retrieval.
const (
	KnowledgeConstraint = "constraint"
	KnowledgeDecision   = "decision"
	KnowledgeHeuristic  = "heuristic"
	KnowledgeRejected   = "rejected"
)

// Observation is a single timestamped memory entry: something an agent
// did, decided, or learned while working on a project.
type Observation struct {
	// Identification
	ID      string
	Project string // Scoping key; retrieval is always project-relative
	Kind    string // Free-form type; see Knowledge* for the structured subset

	// Content
	Title         string
	Body          string
	Narrative     string
	Concepts      string
	FilesModified string

	// Timestamps. CreatedAtEpoch (Unix milliseconds) is the sort and
	// tie-break key; CreatedAt is the same instant as an ISO-8601 string.
	CreatedAt         string
	CreatedAtEpoch    int64
	LastAccessedEpoch int64

	// IsStale is set externally when files the observation referenced
	// changed after it was recorded.
	IsStale bool
}

// IsStructuredKnowledge reports whether the observation's kind is one of
// the four structured knowledge categories. The match is case-sensitive.
func (o *Observation) IsStructuredKnowledge() bool {
	switch o.Kind {
	case KnowledgeConstraint, KnowledgeDecision, KnowledgeHeuristic, KnowledgeRejected:
		return true
	}
	return false
}

// EmbeddingInput builds the text that gets embedded for this observation:
// title, body, narrative and concepts joined, empty parts skipped.
// Truncation to the provider's input cap happens at the embedding layer.
func (o *Observation) EmbeddingInput() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{o.Title, o.Body, o.Narrative, o.Concepts} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "\n")
}

// Validate checks the fields the memory layer requires.
func (o *Observation) Validate() error {
	if o.Project == "" {
		return ErrMissingProject
	}
	if o.Title == "" {
		return ErrMissingTitle
	}
	return nil
}

// Summary is a condensed session recap. Summaries are stored per project
// and injected into assembled context unconditionally; they are never
// ranked against observations.
type Summary struct {
	ID             string
	Project        string
	Content        string
	CreatedAtEpoch int64
}

// EpochMillis converts a time to the Unix-millisecond representation used
// throughout the store.
func EpochMillis(t time.Time) int64 {
	return t.UnixMilli()
}
