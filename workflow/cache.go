package workflow

import (
	"sync"
	"time"

	"github.com/agentfabric/core/agent"
	"github.com/agentfabric/core/capability"
	"github.com/agentfabric/core/registry"
)

// capabilityCache is the manager's own 60s-TTL capability-to-agents
// lookup, distinct from the router's routing cache: it backs step
// selection, not scoring, and is invalidated by the same registry
// mutations via the manager's registry.Observer implementation.
type capabilityCache struct {
	mu      sync.Mutex
	entries map[capability.Kind]cacheEntry
	ttl     time.Duration
}

type cacheEntry struct {
	agents  []*agent.Agent
	expires time.Time
}

func newCapabilityCache(ttl time.Duration) *capabilityCache {
	if ttl <= 0 {
		ttl = defaultCapabilityTTL
	}
	return &capabilityCache{entries: make(map[capability.Kind]cacheEntry), ttl: ttl}
}

func (c *capabilityCache) get(kind capability.Kind) ([]*agent.Agent, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[kind]
	if !ok || time.Now().After(entry.expires) {
		return nil, false
	}
	return entry.agents, true
}

func (c *capabilityCache) set(kind capability.Kind, agents []*agent.Agent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[kind] = cacheEntry{agents: agents, expires: time.Now().Add(c.ttl)}
}

func (c *capabilityCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[capability.Kind]cacheEntry)
}

// agentsForCapability returns cached candidates for kind, refreshing
// from reg on a cache miss.
func (c *capabilityCache) agentsForCapability(reg *registry.AgentRegistry, kind capability.Kind) []*agent.Agent {
	if cached, ok := c.get(kind); ok {
		return cached
	}
	agents, _ := reg.GetAgentsByCapability(kind)
	c.set(kind, agents)
	return agents
}
