package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// saveObservationTool returns the tool definition for save_observation
func saveObservationTool() mcp.Tool {
	return mcp.Tool{
		Name:        "save_observation",
		Description: "Save a memory observation (a fact, decision, constraint, or note) for later retrieval",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"project": map[string]interface{}{
					"type":        "string",
					"description": "Project the observation belongs to",
				},
				"title": map[string]interface{}{
					"type":        "string",
					"description": "Short one-line summary of the observation",
				},
				"kind": map[string]interface{}{
					"type":        "string",
					"description": "Knowledge type. constraint/decision/heuristic/rejected are boosted in ranking; any other string is allowed",
				},
				"body": map[string]interface{}{
					"type":        "string",
					"description": "Full observation text",
				},
				"narrative": map[string]interface{}{
					"type":        "string",
					"description": "Optional surrounding narrative or rationale",
				},
				"concepts": map[string]interface{}{
					"type":        "string",
					"description": "Space-separated concept keywords to aid keyword search",
				},
				"files_modified": map[string]interface{}{
					"type":        "string",
					"description": "Comma-separated file paths this observation refers to",
				},
			},
			Required: []string{"project", "title"},
		},
	}
}

// saveSummaryTool returns the tool definition for save_summary
func saveSummaryTool() mcp.Tool {
	return mcp.Tool{
		Name:        "save_summary",
		Description: "Save a session summary; recent summaries are always included when loading context",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"project": map[string]interface{}{
					"type":        "string",
					"description": "Project the session belonged to",
				},
				"content": map[string]interface{}{
					"type":        "string",
					"description": "Summary text",
				},
			},
			Required: []string{"project", "content"},
		},
	}
}

// searchMemoryTool returns the tool definition for search_memory
func searchMemoryTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_memory",
		Description: "Search saved memories with combined keyword and semantic ranking",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query (natural language or keywords)",
				},
				"project": map[string]interface{}{
					"type":        "string",
					"description": "Restrict results to a project",
				},
				"kind": map[string]interface{}{
					"type":        "string",
					"description": "Restrict results to a knowledge type",
				},
				"date_start": map[string]interface{}{
					"type":        "integer",
					"description": "Only observations created at or after this epoch-milliseconds timestamp",
				},
				"date_end": map[string]interface{}{
					"type":        "integer",
					"description": "Only observations created at or before this epoch-milliseconds timestamp",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
			},
			Required: []string{"query"},
		},
	}
}

// loadContextTool returns the tool definition for load_context
func loadContextTool() mcp.Tool {
	return mcp.Tool{
		Name:        "load_context",
		Description: "Assemble a token-budgeted context block from recent memories and session summaries, for session start",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"project": map[string]interface{}{
					"type":        "string",
					"description": "Project to load context for",
				},
				"token_budget": map[string]interface{}{
					"type":        "integer",
					"description": "Approximate token budget for the assembled block",
					"default":     2000,
					"minimum":     1,
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum candidate observations to rank (1-100)",
					"default":     20,
				},
			},
			Required: []string{"project"},
		},
	}
}

// backfillEmbeddingsTool returns the tool definition for backfill_embeddings
func backfillEmbeddingsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "backfill_embeddings",
		Description: "Embed observations saved while no embedding backend was reachable",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"batch_size": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum observations to embed in this run",
					"default":     100,
					"minimum":     1,
				},
			},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report memory store statistics and embedding backend availability",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
