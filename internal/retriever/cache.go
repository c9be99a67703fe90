package retriever

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const responseCacheSize = 1000

type cacheEntry struct {
	response  *Response
	expiresAt time.Time
}

// responseCache is an LRU of recent retrieval responses with per-entry
// TTL. Writes to the store purge it wholesale; entries do not track
// which observations they contain.
type responseCache struct {
	mu  sync.RWMutex
	lru *lru.Cache[[32]byte, *cacheEntry]
}

func newResponseCache() *responseCache {
	cache, err := lru.New[[32]byte, *cacheEntry](responseCacheSize)
	if err != nil {
		// only possible with a non-positive size
		panic(fmt.Sprintf("failed to create response cache: %v", err))
	}
	return &responseCache{lru: cache}
}

func (c *responseCache) get(key [32]byte, now time.Time) *Response {
	c.mu.RLock()
	entry, found := c.lru.Get(key)
	if !found {
		c.mu.RUnlock()
		return nil
	}
	if now.After(entry.expiresAt) {
		c.mu.RUnlock()
		c.mu.Lock()
		c.lru.Remove(key)
		c.mu.Unlock()
		return nil
	}
	response := entry.response.clone()
	c.mu.RUnlock()
	return response
}

func (c *responseCache) put(key [32]byte, response *Response, ttl time.Duration) {
	entry := &cacheEntry{response: response.clone(), expiresAt: time.Now().Add(ttl)}
	c.mu.Lock()
	c.lru.Add(key, entry)
	c.mu.Unlock()
}

func (c *responseCache) purge() {
	c.mu.Lock()
	c.lru.Purge()
	c.mu.Unlock()
}

// requestKey builds a deterministic hash over every field that affects
// the response.
func requestKey(req Request) [32]byte {
	var b strings.Builder
	b.WriteString(req.Project)
	b.WriteString("|")
	b.WriteString(req.Query)
	b.WriteString("|")
	b.WriteString(req.Kind)
	b.WriteString("|")
	fmt.Fprintf(&b, "%d|%d|%d", req.DateStartEpoch, req.DateEndEpoch, req.Limit)
	return sha256.Sum256([]byte(b.String()))
}
