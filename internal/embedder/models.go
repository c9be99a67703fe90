package embedder

import "strings"

// Default model configuration
const (
	DefaultModel     = "all-MiniLM-L6-v2"
	DefaultDimension = 384
)

// modelDimensions maps known short model names to their vector
// dimensionality.
var modelDimensions = map[string]int{
	"all-MiniLM-L6-v2":       384,
	"all-mpnet-base-v2":      768,
	"nomic-embed-text":       768,
	"mxbai-embed-large":      1024,
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// ResolveModel resolves a configured model name to the (model, dimension)
// pair used across the process.
//
// Rules:
//   - empty name: the default model and dimension
//   - a namespaced identifier (contains "/", e.g. "Xenova/all-MiniLM-L6-v2")
//     is accepted verbatim; its dimension comes from dimOverride when
//     positive, otherwise the default dimension
//   - a known short name: its table dimension (dimOverride wins if set)
//   - an unknown short name: falls back to the default model and dimension
func ResolveModel(name string, dimOverride int) (string, int) {
	if name == "" {
		return DefaultModel, DefaultDimension
	}
	if strings.Contains(name, "/") {
		if dimOverride > 0 {
			return name, dimOverride
		}
		return name, DefaultDimension
	}
	if dims, ok := modelDimensions[name]; ok {
		if dimOverride > 0 {
			return name, dimOverride
		}
		return name, dims
	}
	return DefaultModel, DefaultDimension
}
