package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/memloop/memloop-mcp/internal/assembler"
	"github.com/memloop/memloop-mcp/internal/retriever"
	"github.com/memloop/memloop-mcp/internal/storage"
	"github.com/memloop/memloop-mcp/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams = -32602 // Invalid method parameters
	ErrorCodeInternalError = -32603 // Internal JSON-RPC error
	ErrorCodeEmptyQuery    = -32004 // Query parameter is empty
)

// handleSaveObservation handles the save_observation tool invocation
func (s *Server) handleSaveObservation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	project, ok := args["project"].(string)
	if !ok || project == "" {
		return nil, missingParam("project")
	}
	title, ok := args["title"].(string)
	if !ok || title == "" {
		return nil, missingParam("title")
	}

	obs := &types.Observation{
		Project:       project,
		Title:         title,
		Kind:          getStringDefault(args, "kind", ""),
		Body:          getStringDefault(args, "body", ""),
		Narrative:     getStringDefault(args, "narrative", ""),
		Concepts:      getStringDefault(args, "concepts", ""),
		FilesModified: getStringDefault(args, "files_modified", ""),
	}

	if err := s.store.InsertObservation(ctx, obs); err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to save observation", map[string]interface{}{
			"error": err.Error(),
		})
	}

	// Embed inline when a backend is up; otherwise the observation waits
	// for backfill_embeddings.
	embedded := false
	if vec := s.embedder.Embed(ctx, obs.EmbeddingInput()); vec != nil {
		if err := s.index.Store(ctx, obs.ID, vec, s.embedder.ModelName()); err == nil {
			embedded = true
		}
	}

	s.retriever.InvalidateCache()

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"id":       obs.ID,
		"embedded": embedded,
	})), nil
}

// handleSaveSummary handles the save_summary tool invocation
func (s *Server) handleSaveSummary(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	project, ok := args["project"].(string)
	if !ok || project == "" {
		return nil, missingParam("project")
	}
	content, ok := args["content"].(string)
	if !ok || content == "" {
		return nil, missingParam("content")
	}

	summary := &types.Summary{Project: project, Content: content}
	if err := s.store.InsertSummary(ctx, summary); err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to save summary", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"id": summary.ID,
	})), nil
}

// handleSearchMemory handles the search_memory tool invocation
func (s *Server) handleSearchMemory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	limit := getIntDefault(args, "limit", retriever.DefaultLimit)
	if limit < 1 || limit > retriever.MaxLimit {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	resp, err := s.retriever.Retrieve(ctx, retriever.Request{
		Project:        getStringDefault(args, "project", ""),
		Query:          query,
		Kind:           getStringDefault(args, "kind", ""),
		DateStartEpoch: getInt64Default(args, "date_start", 0),
		DateEndEpoch:   getInt64Default(args, "date_end", 0),
		Limit:          limit,
		UseCache:       true,
	})
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	results := make([]map[string]interface{}, 0, len(resp.Items))
	for _, item := range resp.Items {
		results = append(results, map[string]interface{}{
			"id":       item.ID,
			"title":    item.Title,
			"content":  item.Content,
			"kind":     item.Kind,
			"project":  item.Project,
			"is_stale": item.IsStale,
			"score":    item.Score,
			"signals": map[string]interface{}{
				"semantic":      item.Signals.Semantic,
				"lexical":       item.Signals.Lexical,
				"recency":       item.Signals.Recency,
				"project_match": item.Signals.ProjectMatch,
			},
		})
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"results":       results,
		"total":         resp.Total,
		"semantic_hits": resp.SemanticHits,
		"lexical_hits":  resp.LexicalHits,
		"cache_hit":     resp.CacheHit,
		"duration_ms":   resp.Duration.Milliseconds(),
	})), nil
}

// handleLoadContext handles the load_context tool invocation
func (s *Server) handleLoadContext(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	project, ok := args["project"].(string)
	if !ok || project == "" {
		return nil, missingParam("project")
	}

	tokenBudget := getIntDefault(args, "token_budget", 2000)
	limit := getIntDefault(args, "limit", 20)

	resp, err := s.retriever.Retrieve(ctx, retriever.Request{
		Project: project,
		Limit:   limit,
	})
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "context retrieval failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	summaries, err := s.store.RecentSummaries(ctx, project, assembler.MaxSummaries)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to load summaries", map[string]interface{}{
			"error": err.Error(),
		})
	}

	result := assembler.Build(resp.Items, summaries, project, tokenBudget)

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"context":        result.Text,
		"items_included": result.ItemsIncluded,
		"tokens_used":    result.TokensUsed,
		"tokens_budget":  result.TokensBudget,
		"candidates":     resp.Total,
	})), nil
}

// handleBackfillEmbeddings handles the backfill_embeddings tool invocation
func (s *Server) handleBackfillEmbeddings(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})

	batchSize := 100
	if args != nil {
		batchSize = getIntDefault(args, "batch_size", 100)
	}
	if batchSize < 1 {
		return nil, newMCPError(ErrorCodeInvalidParams, "batch_size must be positive", map[string]interface{}{
			"param": "batch_size",
			"value": batchSize,
		})
	}

	embedded, err := s.index.Backfill(ctx, batchSize)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "backfill failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	if embedded > 0 {
		s.retriever.InvalidateCache()
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"embedded": embedded,
		"backend":  s.embedder.BackendName(),
	})), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to read statistics", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"server": map[string]interface{}{
			"name":       ServerName,
			"version":    ServerVersion,
			"build_mode": storage.BuildMode,
			"driver":     storage.DriverName,
		},
		"statistics": map[string]interface{}{
			"observations": stats.Observations,
			"embeddings":   stats.Embeddings,
			"summaries":    stats.Summaries,
			"db_size_mb":   fmt.Sprintf("%.2f", stats.DBSizeMB),
		},
		"embedding": map[string]interface{}{
			"available": s.embedder.Available(),
			"backend":   s.embedder.BackendName(),
			"model":     s.embedder.ModelName(),
			"dimension": s.embedder.Dimension(),
		},
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

func missingParam(name string) error {
	return newMCPError(ErrorCodeInvalidParams, name+" parameter is required", map[string]interface{}{
		"param":  name,
		"reason": "missing or empty",
	})
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getInt64Default extracts an epoch parameter with a default value
func getInt64Default(args map[string]interface{}, key string, defaultValue int64) int64 {
	if val, ok := args[key].(float64); ok {
		return int64(val)
	}
	if val, ok := args[key].(int64); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}
