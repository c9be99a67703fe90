// Package mcp exposes the memory engine over the Model Context
// Protocol: tool definitions, parameter validation, and handlers that
// bridge MCP requests to the storage, retrieval and assembly layers.
package mcp
