package cache

import (
	"sync"
	"time"

	"github.com/m-mizutani/shikigami/pkg/domain/model/agent"
)

// DefaultPromptTTL is how long a live prompt config is served from cache
const DefaultPromptTTL = 5 * time.Minute

// PromptCache provides cached access to live prompt configs with TTL
type PromptCache struct {
	mu    sync.RWMutex
	cache map[string]*cachedPrompt
	gens  map[string]uint64
	ttl   time.Duration
	now   func() time.Time
}

type cachedPrompt struct {
	cfg       *agent.PromptConfig
	timestamp time.Time
}

// Option configures PromptCache
type Option func(*PromptCache)

// WithClock replaces the time source
func WithClock(now func() time.Time) Option {
	return func(c *PromptCache) {
		c.now = now
	}
}

// NewPromptCache creates a prompt cache with the given TTL
func NewPromptCache(ttl time.Duration, opts ...Option) *PromptCache {
	if ttl <= 0 {
		ttl = DefaultPromptTTL
	}

	c := &PromptCache{
		cache: make(map[string]*cachedPrompt),
		gens:  make(map[string]uint64),
		ttl:   ttl,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns a copy of the cached config if it has not expired
func (c *PromptCache) Get(agentID string) (*agent.PromptConfig, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cached, exists := c.cache[agentID]
	if !exists {
		return nil, false
	}

	if c.now().Sub(cached.timestamp) >= c.ttl {
		return nil, false
	}

	return cached.cfg.Copy(), true
}

// Generation returns the invalidation counter of agentID. A reader captures
// it before loading from the store and hands it back to Set.
func (c *PromptCache) Generation(agentID string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.gens[agentID]
}

// Set stores a copy of cfg unless agentID was invalidated after gen was
// taken. It reports whether the entry was stored.
func (c *PromptCache) Set(agentID string, cfg *agent.PromptConfig, gen uint64) bool {
	if cfg == nil {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gens[agentID] != gen {
		return false
	}

	c.cache[agentID] = &cachedPrompt{
		cfg:       cfg.Copy(),
		timestamp: c.now(),
	}
	return true
}

// Invalidate removes an agent from cache and advances its generation
func (c *PromptCache) Invalidate(agentID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.cache, agentID)
	c.gens[agentID]++
}
