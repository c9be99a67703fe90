// Package embedder generates vector embeddings for observations through a
// swappable chain of backends.
//
// # Fallback Chain
//
// Backends are probed in a statically ordered list; the first one that
// loads becomes the active provider for the process:
//
//	ollama (local server) -> openai (API key required)
//
// If no probe succeeds the embedder is permanently unavailable for the
// process lifetime and every Embed call returns nil — a documented
// degradation, not an error: retrieval keeps working on the lexical,
// recency and project signals. A deterministic hash backend exists for
// tests and offline use but only joins the chain when selected
// explicitly via MEMLOOP_EMBEDDING_PROVIDER=hash.
//
// # Lazy Initialization
//
// Backend loading can be slow, so it is deferred until first use. The
// Lazy wrapper coordinates this with a shared do-once: concurrent first
// callers all await one in-flight probe sequence rather than triggering
// duplicate loads.
//
//	lazy, _ := embedder.NewLazyFromEnv(logger)
//	vec := lazy.Embed(ctx, "switched auth middleware to paseto")
//	if vec == nil {
//	    // unavailable or failed; semantic signal defaults to 0
//	}
//
// # Batching
//
// EmbedBatch prefers the backend's native batch call and falls back to
// serial per-item embedding on any failure, isolating failures per item:
// a bad input yields a nil entry, never an aborted batch.
//
// # Models and Dimensions
//
// Short model names resolve through a built-in table (default
// all-MiniLM-L6-v2, 384 dimensions). Unknown short names fall back to
// the default model. A namespaced identifier like
// "Xenova/all-MiniLM-L6-v2" is accepted verbatim; its dimensionality
// comes from MEMLOOP_EMBEDDING_DIMENSIONS or defaults to 384.
//
// # Caching
//
// Embeddings are cached in an LRU keyed by content SHA-256, shared
// across backends produced by the same factory call.
package embedder
