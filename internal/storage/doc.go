// Package storage provides the SQLite persistence layer: schema
// migrations, observation and summary records, the FTS5 lexical index,
// and the embeddings table backing vector search.
//
// The database runs in WAL mode with a single writer connection.
// Two drivers are supported via build tags: the pure-Go driver by
// default, or mattn/go-sqlite3 with -tags cgo_sqlite.
//
// Lexical search degrades rather than fails: a query the FTS engine
// cannot parse falls back to a recency-ordered substring scan.
package storage
