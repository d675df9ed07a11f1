package router

import (
	"context"
	"sync"
	"time"

	"github.com/agentfabric/core/capability"
)

const cacheTTL = 60 * time.Second

type cacheKey struct {
	kind       capability.Kind
	versionReq string
}

// cachedMatch is the serializable projection of a CapabilityMatch: the
// agent pointer itself is never cached, only its ID, so a distributed
// backend (RedisCache) can store and rehydrate it against the live
// registry.
type cachedMatch struct {
	AgentID    string            `json:"agent_id"`
	Kind       capability.Kind   `json:"kind"`
	Version    string            `json:"version"`
	Parameters map[string]any    `json:"parameters,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Score      float64           `json:"score"`
}

func toCachedMatches(matches []CapabilityMatch) []cachedMatch {
	out := make([]cachedMatch, len(matches))
	for i, m := range matches {
		out[i] = cachedMatch{
			AgentID:    m.Agent.ID(),
			Kind:       m.Capability.Kind,
			Version:    m.Capability.Version,
			Parameters: m.Capability.Parameters,
			Metadata:   m.Capability.Metadata,
			Score:      m.Score,
		}
	}
	return out
}

// cacheBackend is the pluggable storage behind ScoreAgentsForCapability's
// 60s cache. The default is in-process; RedisCache offers a distributed
// alternative over github.com/redis/go-redis/v9, mirroring the teacher's
// pluggable-cache-with-TTL pattern.
type cacheBackend interface {
	get(ctx context.Context, key cacheKey) ([]cachedMatch, bool)
	set(ctx context.Context, key cacheKey, matches []cachedMatch)
	clear(ctx context.Context)
}

type cacheEntry struct {
	matches []cachedMatch
	expires time.Time
}

// memoryCache is a 60s TTL cache keyed by (kind, version_req), cleared
// wholesale by any registry mutation via CapabilityRouter's Observer
// implementation, or explicitly via ClearCache.
type memoryCache struct {
	mu      sync.Mutex
	entries map[cacheKey]cacheEntry
	ttl     time.Duration
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[cacheKey]cacheEntry), ttl: cacheTTL}
}

func (c *memoryCache) get(_ context.Context, key cacheKey) ([]cachedMatch, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok || time.Now().After(entry.expires) {
		return nil, false
	}
	return entry.matches, true
}

func (c *memoryCache) set(_ context.Context, key cacheKey, matches []cachedMatch) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{matches: matches, expires: time.Now().Add(c.ttl)}
}

func (c *memoryCache) clear(_ context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[cacheKey]cacheEntry)
}
