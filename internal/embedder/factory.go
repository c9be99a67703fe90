package embedder

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Environment variables
const (
	EnvProvider     = "MEMLOOP_EMBEDDING_PROVIDER"
	EnvModel        = "MEMLOOP_EMBEDDING_MODEL"
	EnvDimensions   = "MEMLOOP_EMBEDDING_DIMENSIONS"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
	EnvOllamaHost   = "OLLAMA_HOST"
)

// Probe is one capability-probe attempt in the ordered fallback chain.
// Load either returns a working backend or an error that moves the chain
// to the next probe.
type Probe struct {
	Name string
	Load func(ctx context.Context) (Provider, error)
}

// ChainFromEnv builds the ordered probe chain from environment
// configuration. With MEMLOOP_EMBEDDING_PROVIDER set, the chain is that
// single backend (ollama, openai, or hash). Otherwise the chain is
// ollama then openai; the hash backend is opt-in only, so a machine with
// neither a local model server nor an API key ends up genuinely
// unavailable rather than silently degraded.
func ChainFromEnv(cache *Cache) ([]Probe, string, int, error) {
	model, dims := ResolveModel(os.Getenv(EnvModel), dimOverrideFromEnv())

	if explicit := strings.ToLower(os.Getenv(EnvProvider)); explicit != "" {
		switch explicit {
		case ProviderOllama:
			return []Probe{ollamaProbe(model, dims, cache)}, model, dims, nil
		case ProviderOpenAI:
			return []Probe{openaiProbe(model, dims, cache)}, model, dims, nil
		case ProviderHash:
			return []Probe{hashProbe(dims, cache)}, model, dims, nil
		default:
			return nil, "", 0, fmt.Errorf("%w: %s", ErrUnknownProvider, explicit)
		}
	}

	chain := []Probe{
		ollamaProbe(model, dims, cache),
		openaiProbe(model, dims, cache),
	}
	return chain, model, dims, nil
}

func ollamaProbe(model string, dims int, cache *Cache) Probe {
	return Probe{
		Name: ProviderOllama,
		Load: func(ctx context.Context) (Provider, error) {
			return NewOllamaProvider(ctx, os.Getenv(EnvOllamaHost), model, dims, cache)
		},
	}
}

func openaiProbe(model string, dims int, cache *Cache) Probe {
	return Probe{
		Name: ProviderOpenAI,
		Load: func(ctx context.Context) (Provider, error) {
			return NewOpenAIProvider(os.Getenv(EnvOpenAIAPIKey), model, dims, cache)
		},
	}
}

func hashProbe(dims int, cache *Cache) Probe {
	return Probe{
		Name: ProviderHash,
		Load: func(ctx context.Context) (Provider, error) {
			return NewHashProvider(dims, cache)
		},
	}
}

// dimOverrideFromEnv parses the explicit dimension override. Absent or
// invalid values yield 0 (no override).
func dimOverrideFromEnv() int {
	raw := os.Getenv(EnvDimensions)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0
	}
	return n
}
