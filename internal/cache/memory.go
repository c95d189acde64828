package cache

import (
	"context"
	"sync"
	"time"

	"github.com/gatepass/gatepass/internal/core"
)

var _ core.TokenCache = (*InMemoryTokenCache)(nil)

type cacheKey struct {
	identity string
	provider string
}

// InMemoryTokenCache stores issued tokens per (workload identity, provider).
// Writers racing for the same key simply overwrite each other; every writer
// holds an equally fresh token, so last write wins is safe.
type InMemoryTokenCache struct {
	mu     sync.RWMutex
	tokens map[cacheKey]core.Token

	// skew is subtracted from the remaining lifetime on reads so a token is
	// never returned moments before it expires.
	skew time.Duration
	now  func() time.Time
}

func NewInMemoryTokenCache(skew time.Duration) *InMemoryTokenCache {
	return &InMemoryTokenCache{
		tokens: make(map[cacheKey]core.Token),
		skew:   skew,
		now:    time.Now,
	}
}

func (c *InMemoryTokenCache) Get(_ context.Context, identity core.WorkloadIdentity, provider string) (core.Token, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tok, ok := c.tokens[cacheKey{identity: identity.Ref, provider: provider}]
	if !ok {
		return core.Token{}, false
	}
	if tok.Expired(c.now().Add(c.skew)) {
		return core.Token{}, false
	}
	return tok, true
}

func (c *InMemoryTokenCache) Put(_ context.Context, identity core.WorkloadIdentity, provider string, token core.Token) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tokens[cacheKey{identity: identity.Ref, provider: provider}] = token
}

func (c *InMemoryTokenCache) Entries(_ context.Context) []core.CacheEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	entries := make([]core.CacheEntry, 0, len(c.tokens))
	for key, tok := range c.tokens {
		if tok.Expired(now) {
			continue
		}
		entries = append(entries, core.CacheEntry{
			Identity:    core.WorkloadIdentity{Ref: key.identity},
			Provider:    key.provider,
			Fingerprint: tok.Fingerprint,
			ExpiresAt:   tok.ExpiresAt,
		})
	}
	return entries
}

// DeleteExpired drops expired entries and returns how many were removed.
func (c *InMemoryTokenCache) DeleteExpired(_ context.Context) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var deleted int64
	for key, tok := range c.tokens {
		if tok.Expired(now) {
			delete(c.tokens, key)
			deleted++
		}
	}
	return deleted
}

// SetNowFunc overrides the clock, for tests.
func (c *InMemoryTokenCache) SetNowFunc(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}
