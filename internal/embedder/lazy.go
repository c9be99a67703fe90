package embedder

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Lazy wraps the probe chain behind do-once initialization and converts
// backend errors into the nil-on-failure contract the retrieval pipeline
// relies on: Embed and EmbedBatch never return errors, they return nil
// vectors.
//
// Initialization is coordinated through sync.Once so that concurrent
// first callers all await the same in-flight probe sequence instead of
// racing duplicate model loads. When every probe fails the wrapper is
// permanently unavailable for the process lifetime; it does not retry.
type Lazy struct {
	chain  []Probe
	model  string
	dims   int
	logger *zap.Logger

	once     sync.Once
	provider Provider
	ready    atomic.Bool
}

// NewLazy creates the lazy wrapper around an ordered probe chain.
func NewLazy(chain []Probe, model string, dims int, logger *zap.Logger) *Lazy {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dims <= 0 {
		dims = DefaultDimension
	}
	return &Lazy{chain: chain, model: model, dims: dims, logger: logger}
}

// NewLazyFromEnv builds the wrapper with the environment-configured chain
// and a shared embedding cache.
func NewLazyFromEnv(logger *zap.Logger) (*Lazy, error) {
	cache := NewCache(10000)
	chain, model, dims, err := ChainFromEnv(cache)
	if err != nil {
		return nil, err
	}
	return NewLazy(chain, model, dims, logger), nil
}

// Initialize probes the chain, first success wins. Idempotent and safe
// to call concurrently; every caller observes the same outcome.
func (l *Lazy) Initialize(ctx context.Context) {
	l.once.Do(func() {
		for _, probe := range l.chain {
			p, err := probe.Load(ctx)
			if err != nil {
				l.logger.Debug("embedding backend unavailable",
					zap.String("backend", probe.Name), zap.Error(err))
				continue
			}
			l.logger.Info("embedding backend loaded",
				zap.String("backend", p.Name()), zap.String("model", p.Model()))
			l.provider = p
			break
		}
		if l.provider == nil {
			l.logger.Warn("no embedding backend available, semantic signal disabled")
		}
		l.ready.Store(true)
	})
}

// Available reports whether initialization has completed and loaded a
// backend. It is false before the first Initialize finishes.
func (l *Lazy) Available() bool {
	return l.ready.Load() && l.provider != nil
}

// Embed returns the embedding for text, or nil when no backend is
// available, the text is empty, or the backend fails. It never returns
// an error. Input is truncated to MaxInputChars before encoding.
func (l *Lazy) Embed(ctx context.Context, text string) []float32 {
	l.Initialize(ctx)
	if l.provider == nil || text == "" {
		return nil
	}
	vec, err := l.provider.Embed(ctx, TruncateInput(text))
	if err != nil {
		l.logger.Warn("embedding failed", zap.Error(err))
		return nil
	}
	return vec
}

// EmbedBatch embeds texts, preferring the backend's native batch call.
// When the batch call fails it falls back to serial per-item embedding
// so one bad item never aborts the rest; failed items come back nil.
func (l *Lazy) EmbedBatch(ctx context.Context, texts []string) [][]float32 {
	l.Initialize(ctx)
	out := make([][]float32, len(texts))
	if l.provider == nil || len(texts) == 0 {
		return out
	}

	truncated := make([]string, len(texts))
	for i, t := range texts {
		truncated[i] = TruncateInput(t)
	}

	vecs, err := l.provider.EmbedBatch(ctx, truncated)
	if err == nil && len(vecs) == len(texts) {
		copy(out, vecs)
		return out
	}
	if err != nil {
		l.logger.Debug("native batch embed failed, falling back to serial", zap.Error(err))
	}

	for i, t := range truncated {
		vec, itemErr := l.provider.Embed(ctx, t)
		if itemErr != nil {
			l.logger.Warn("embedding failed for batch item",
				zap.Int("index", i), zap.Error(itemErr))
			continue
		}
		out[i] = vec
	}
	return out
}

// Dimension returns the configured dimensionality. This is resolved from
// the model table at construction, so it is valid before initialization.
func (l *Lazy) Dimension() int {
	return l.dims
}

// ModelName returns the configured model name.
func (l *Lazy) ModelName() string {
	return l.model
}

// BackendName returns the loaded backend's name, or "none".
func (l *Lazy) BackendName() string {
	if l.Available() {
		return l.provider.Name()
	}
	return "none"
}

// Close releases the loaded backend, if any.
func (l *Lazy) Close() error {
	if l.provider != nil {
		return l.provider.Close()
	}
	return nil
}
