package embedder

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Backend names
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderHash   = "hash"

	DefaultOllamaHost = "http://localhost:11434"

	// Retry configuration
	MaxRetries        = 3
	InitialBackoffMs  = 100
	MaxBackoffMs      = 5000
	BackoffMultiplier = 2.0
)

// OllamaProvider embeds through a local Ollama server.
type OllamaProvider struct {
	baseURL    string
	model      string
	dims       int
	httpClient *http.Client
	cache      *Cache
}

// NewOllamaProvider creates an Ollama-backed provider and verifies the
// server is reachable. An unreachable server is a probe failure, letting
// the fallback chain move on.
func NewOllamaProvider(ctx context.Context, baseURL, model string, dims int, cache *Cache) (*OllamaProvider, error) {
	if baseURL == "" {
		baseURL = DefaultOllamaHost
	}
	baseURL = strings.TrimRight(baseURL, "/")

	p := &OllamaProvider{
		baseURL: baseURL,
		model:   model,
		dims:    dims,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		cache: cache,
	}

	if err := p.ping(ctx); err != nil {
		return nil, fmt.Errorf("%w: ollama unreachable at %s: %v", ErrNoProviderLoaded, baseURL, err)
	}
	return p, nil
}

// ping probes the Ollama tags endpoint with a short deadline.
func (p *OllamaProvider) ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

func (p *OllamaProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	hash := ComputeHash(text)
	if p.cache != nil {
		if vec, ok := p.cache.Get(hash); ok {
			return vec, nil
		}
	}

	config := DefaultRetryConfig()
	vec, err := retryWithBackoff(ctx, config, func() ([]float32, error) {
		return p.callAPI(ctx, text)
	})
	if err != nil {
		return nil, fmt.Errorf("%w after %d retries: %v", ErrProviderFailed, MaxRetries, err)
	}

	if p.cache != nil {
		p.cache.Set(hash, vec)
	}
	return vec, nil
}

// EmbedBatch embeds texts one at a time. The Ollama embeddings endpoint
// takes a single prompt per call, so any item failure fails the batch;
// per-item isolation lives in the Lazy wrapper's serial fallback.
func (p *OllamaProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ValidateBatch(texts); err != nil {
		return nil, err
	}

	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := p.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		vecs[i] = vec
	}
	return vecs, nil
}

func (p *OllamaProvider) callAPI(ctx context.Context, text string) ([]float32, error) {
	reqBody := map[string]interface{}{
		"model":  p.model,
		"prompt": text,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("api error %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var apiResp struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(apiResp.Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding returned")
	}

	return apiResp.Embedding, nil
}

func (p *OllamaProvider) Dimension() int { return p.dims }
func (p *OllamaProvider) Name() string   { return ProviderOllama }
func (p *OllamaProvider) Model() string  { return p.model }

func (p *OllamaProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

// OpenAIProvider embeds through the OpenAI embeddings API.
type OpenAIProvider struct {
	client *openai.Client
	model  string
	dims   int
	cache  *Cache
}

// NewOpenAIProvider creates an OpenAI-backed provider. A missing API key
// is a probe failure.
func NewOpenAIProvider(apiKey, model string, dims int, cache *Cache) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s not set", ErrNoProviderLoaded, EnvOpenAIAPIKey)
	}
	return &OpenAIProvider{
		client: openai.NewClient(apiKey),
		model:  model,
		dims:   dims,
		cache:  cache,
	}, nil
}

func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	hash := ComputeHash(text)
	if p.cache != nil {
		if vec, ok := p.cache.Get(hash); ok {
			return vec, nil
		}
	}

	vecs, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 || vecs[0] == nil {
		return nil, fmt.Errorf("%w: no embeddings returned", ErrProviderFailed)
	}
	return vecs[0], nil
}

func (p *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ValidateBatch(texts); err != nil {
		return nil, err
	}

	config := DefaultRetryConfig()
	vecs, err := retryWithBackoff(ctx, config, func() ([][]float32, error) {
		return p.callAPI(ctx, texts)
	})
	if err != nil {
		return nil, fmt.Errorf("%w after %d retries: %v", ErrProviderFailed, MaxRetries, err)
	}

	if p.cache != nil {
		for i, vec := range vecs {
			if vec != nil {
				p.cache.Set(ComputeHash(texts[i]), vec)
			}
		}
	}
	return vecs, nil
}

func (p *OpenAIProvider) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: texts,
		Model: openai.EmbeddingModel(p.model),
	})
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	vecs := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vecs) {
			continue
		}
		vecs[d.Index] = d.Embedding
	}
	return vecs, nil
}

func (p *OpenAIProvider) Dimension() int { return p.dims }
func (p *OpenAIProvider) Name() string   { return ProviderOpenAI }
func (p *OpenAIProvider) Model() string  { return p.model }
func (p *OpenAIProvider) Close() error   { return nil }

// HashProvider is a deterministic offline backend: the vector is derived
// from the text's SHA-256 digest. Useful for tests and air-gapped runs;
// it is never part of the default probe chain.
type HashProvider struct {
	dims  int
	cache *Cache
}

// NewHashProvider creates the deterministic hash backend.
func NewHashProvider(dims int, cache *Cache) (*HashProvider, error) {
	if dims <= 0 {
		dims = DefaultDimension
	}
	return &HashProvider{dims: dims, cache: cache}, nil
}

func (p *HashProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	hash := ComputeHash(text)
	if p.cache != nil {
		if vec, ok := p.cache.Get(hash); ok {
			return vec, nil
		}
	}

	// Stretch the digest across the vector so every position is filled
	digest := sha256.Sum256([]byte(text))
	vec := make([]float32, p.dims)
	for i := range vec {
		vec[i] = float32(digest[i%len(digest)]) / 255.0
	}

	if p.cache != nil {
		p.cache.Set(hash, vec)
	}
	return vec, nil
}

func (p *HashProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ValidateBatch(texts); err != nil {
		return nil, err
	}
	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := p.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		vecs[i] = vec
	}
	return vecs, nil
}

func (p *HashProvider) Dimension() int { return p.dims }
func (p *HashProvider) Name() string   { return ProviderHash }
func (p *HashProvider) Model() string  { return "hash-" + fmt.Sprint(p.dims) }
func (p *HashProvider) Close() error   { return nil }
