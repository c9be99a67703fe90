package embedder

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveModel(t *testing.T) {
	tests := []struct {
		name     string
		model    string
		override int
		wantName string
		wantDims int
	}{
		{"empty name uses defaults", "", 0, DefaultModel, DefaultDimension},
		{"known short name", "nomic-embed-text", 0, "nomic-embed-text", 768},
		{"known short name with override", "nomic-embed-text", 512, "nomic-embed-text", 512},
		{"unknown short name falls back", "made-up-model", 0, DefaultModel, DefaultDimension},
		{"namespaced id accepted verbatim", "Xenova/all-MiniLM-L6-v2", 0, "Xenova/all-MiniLM-L6-v2", DefaultDimension},
		{"namespaced id with override", "acme/giant-embedder", 2048, "acme/giant-embedder", 2048},
		{"openai model", "text-embedding-3-small", 0, "text-embedding-3-small", 1536},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, dims := ResolveModel(tt.model, tt.override)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantDims, dims)
		})
	}
}

func TestTruncateInput(t *testing.T) {
	short := "hello"
	assert.Equal(t, short, TruncateInput(short))

	long := make([]byte, MaxInputChars*2)
	for i := range long {
		long[i] = 'a'
	}
	got := TruncateInput(string(long))
	assert.Len(t, got, MaxInputChars)
}

func TestCacheReturnsCopies(t *testing.T) {
	cache := NewCache(10)
	cache.Set("k", []float32{1, 2, 3})

	vec, ok := cache.Get("k")
	assert.True(t, ok)
	vec[0] = 99

	again, ok := cache.Get("k")
	assert.True(t, ok)
	assert.Equal(t, float32(1), again[0], "caller mutation must not pollute the cache")
}
