package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memloop/memloop-mcp/internal/embedder"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	// deterministic backend, no network
	t.Setenv(embedder.EnvProvider, embedder.ProviderHash)

	srv, err := NewServer(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = srv.embedder.Close()
		_ = srv.store.Close()
	})
	return srv
}

func makeReq(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

// resultJSON extracts and decodes the JSON text content of a tool result.
func resultJSON(t *testing.T, r *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	require.NotNil(t, r)
	require.NotEmpty(t, r.Content)
	tc, ok := r.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(tc.Text), &decoded))
	return decoded
}

func saveObservation(t *testing.T, srv *Server, args map[string]interface{}) string {
	t.Helper()
	result, err := srv.handleSaveObservation(context.Background(), makeReq(args))
	require.NoError(t, err)
	id, _ := resultJSON(t, result)["id"].(string)
	require.NotEmpty(t, id)
	return id
}

func TestSaveObservation(t *testing.T) {
	srv := newTestServer(t)

	result, err := srv.handleSaveObservation(context.Background(), makeReq(map[string]interface{}{
		"project": "memloop",
		"title":   "prefer WAL mode",
		"kind":    "decision",
		"body":    "single writer, concurrent readers",
	}))
	require.NoError(t, err)

	decoded := resultJSON(t, result)
	assert.NotEmpty(t, decoded["id"])
	assert.Equal(t, true, decoded["embedded"])
}

func TestSaveObservationValidation(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	_, err := srv.handleSaveObservation(ctx, makeReq(map[string]interface{}{"title": "no project"}))
	requireMCPError(t, err, ErrorCodeInvalidParams)

	_, err = srv.handleSaveObservation(ctx, makeReq(map[string]interface{}{"project": "p"}))
	requireMCPError(t, err, ErrorCodeInvalidParams)
}

func TestSaveSummary(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	result, err := srv.handleSaveSummary(ctx, makeReq(map[string]interface{}{
		"project": "memloop",
		"content": "implemented the scorer",
	}))
	require.NoError(t, err)
	assert.NotEmpty(t, resultJSON(t, result)["id"])

	_, err = srv.handleSaveSummary(ctx, makeReq(map[string]interface{}{"project": "memloop"}))
	requireMCPError(t, err, ErrorCodeInvalidParams)
}

func TestSearchMemory(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	saveObservation(t, srv, map[string]interface{}{
		"project": "memloop",
		"title":   "retry with backoff",
		"kind":    "heuristic",
		"body":    "transient embedding failures retry with exponential backoff",
	})
	saveObservation(t, srv, map[string]interface{}{
		"project": "memloop",
		"title":   "unrelated note",
		"body":    "something else entirely",
	})

	result, err := srv.handleSearchMemory(ctx, makeReq(map[string]interface{}{
		"query":   "backoff",
		"project": "memloop",
	}))
	require.NoError(t, err)

	decoded := resultJSON(t, result)
	results, ok := decoded["results"].([]interface{})
	require.True(t, ok)
	require.NotEmpty(t, results)

	top, ok := results[0].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "retry with backoff", top["title"])
	assert.Equal(t, "heuristic", top["kind"])
	assert.Greater(t, top["score"].(float64), 0.0)
}

func TestSearchMemoryValidation(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	_, err := srv.handleSearchMemory(ctx, makeReq(map[string]interface{}{}))
	requireMCPError(t, err, ErrorCodeEmptyQuery)

	_, err = srv.handleSearchMemory(ctx, makeReq(map[string]interface{}{
		"query": "x",
		"limit": float64(500),
	}))
	requireMCPError(t, err, ErrorCodeInvalidParams)
}

func TestLoadContext(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	saveObservation(t, srv, map[string]interface{}{
		"project": "memloop",
		"title":   "recent decision",
		"kind":    "decision",
		"body":    "use epoch milliseconds everywhere",
	})
	_, err := srv.handleSaveSummary(ctx, makeReq(map[string]interface{}{
		"project": "memloop",
		"content": "last session finished the schema",
	}))
	require.NoError(t, err)

	result, err := srv.handleLoadContext(ctx, makeReq(map[string]interface{}{
		"project":      "memloop",
		"token_budget": float64(2000),
	}))
	require.NoError(t, err)

	decoded := resultJSON(t, result)
	text, _ := decoded["context"].(string)
	assert.Contains(t, text, "last session finished the schema")
	assert.Contains(t, text, "recent decision")
	assert.Equal(t, float64(1), decoded["items_included"])
	assert.Equal(t, float64(2000), decoded["tokens_budget"])
}

func TestLoadContextRequiresProject(t *testing.T) {
	srv := newTestServer(t)

	_, err := srv.handleLoadContext(context.Background(), makeReq(map[string]interface{}{}))
	requireMCPError(t, err, ErrorCodeInvalidParams)
}

func TestBackfillEmbeddings(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	// inline embedding succeeds with the hash backend, so nothing is
	// left for backfill
	saveObservation(t, srv, map[string]interface{}{
		"project": "memloop",
		"title":   "already embedded",
	})

	result, err := srv.handleBackfillEmbeddings(ctx, makeReq(map[string]interface{}{}))
	require.NoError(t, err)

	decoded := resultJSON(t, result)
	assert.Equal(t, float64(0), decoded["embedded"])
	assert.Equal(t, embedder.ProviderHash, decoded["backend"])

	_, err = srv.handleBackfillEmbeddings(ctx, makeReq(map[string]interface{}{
		"batch_size": float64(-1),
	}))
	requireMCPError(t, err, ErrorCodeInvalidParams)
}

func TestGetStatus(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	saveObservation(t, srv, map[string]interface{}{
		"project": "memloop",
		"title":   "counted",
	})

	result, err := srv.handleGetStatus(ctx, makeReq(nil))
	require.NoError(t, err)

	decoded := resultJSON(t, result)
	stats, ok := decoded["statistics"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(1), stats["observations"])
	assert.Equal(t, float64(1), stats["embeddings"])

	emb, ok := decoded["embedding"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, emb["available"])
	assert.Equal(t, embedder.ProviderHash, emb["backend"])
}

func requireMCPError(t *testing.T, err error, code int) {
	t.Helper()
	require.Error(t, err)
	var mcpErr *MCPError
	require.True(t, errors.As(err, &mcpErr), "expected MCPError, got %T", err)
	assert.Equal(t, code, mcpErr.Code)
}
