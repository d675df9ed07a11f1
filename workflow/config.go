package workflow

import (
	"time"

	"github.com/agentfabric/core/capability"
)

// SelectionPolicy breaks ties among equally-eligible candidates for a
// capability, once the monitor/dependency/test-suffix rules have
// narrowed the field.
type SelectionPolicy string

const (
	// PreferOldest picks the lowest registration index — the default
	// for capability.KindResearch, where continuity of the same
	// researcher across steps is usually preferable.
	PreferOldest SelectionPolicy = "prefer_oldest"

	// PreferNewest picks the highest registration index — the default
	// for every other capability kind.
	PreferNewest SelectionPolicy = "prefer_newest"
)

const (
	defaultStepTimeout      = 5 * time.Second
	defaultCapabilityTTL    = 60 * time.Second
	defaultMaxAgentsPerKind = 1
)

// Config tunes a Manager's execution behavior.
type Config struct {
	// DefaultStepTimeout bounds a step's dispatch when the step itself
	// does not set a longer or shorter Timeout. Never propagated beyond
	// a single step — the manager does not carry a shrinking workflow
	// deadline across steps.
	DefaultStepTimeout time.Duration

	// CapabilityCacheTTL bounds how long a capability-to-agents lookup
	// is cached before the next execution re-queries the registry. This
	// cache is distinct from the router's own routing cache: it backs
	// selection, not scoring.
	CapabilityCacheTTL time.Duration

	// MaxAgentsPerCapability is a per-kind candidate cap. The manager
	// does not read it: selection considers every registered candidate
	// for a capability kind.
	MaxAgentsPerCapability int

	// AllowPhantomWorkers, when true, lets selection fall back to an
	// ephemeral generic_worker agent for a capability with zero
	// registered candidates, rather than failing the step outright.
	AllowPhantomWorkers bool

	// TieBreakByKind overrides the oldest/newest tie-break rule for a
	// specific capability kind. Kinds absent from this map use
	// PreferOldest for capability.KindResearch and PreferNewest for
	// everything else.
	TieBreakByKind map[capability.Kind]SelectionPolicy
}

// DefaultConfig returns the manager's literal defaults.
func DefaultConfig() *Config {
	return &Config{
		DefaultStepTimeout:     defaultStepTimeout,
		CapabilityCacheTTL:     defaultCapabilityTTL,
		MaxAgentsPerCapability: defaultMaxAgentsPerKind,
		AllowPhantomWorkers:    true,
		TieBreakByKind:         make(map[capability.Kind]SelectionPolicy),
	}
}
