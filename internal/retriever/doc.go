// Package retriever unions lexical and semantic search candidates and
// ranks them with the composite scorer. The two candidate sources run
// concurrently and independently; losing one degrades the result set
// instead of failing the request. Ordering is a deterministic total
// order so identical corpora always produce identical rankings.
package retriever
