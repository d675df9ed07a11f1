package router

import (
	"context"
	"sort"
	"time"

	"github.com/agentfabric/core/agent"
	"github.com/agentfabric/core/capability"
	"github.com/agentfabric/core/registry"
	"go.uber.org/zap"
)

const defaultMinScore = 0.5

// FindOption configures FindBestAgent and ScoreAgentsForCapability.
type FindOption struct {
	versionReq string
	minScore   float64
	prefs      *Preferences
}

// FindOptionFunc mutates a FindOption.
type FindOptionFunc func(*FindOption)

// WithVersionReq constrains candidates to a version requirement string,
// per the router's version grammar.
func WithVersionReq(req string) FindOptionFunc {
	return func(o *FindOption) { o.versionReq = req }
}

// WithMinScore overrides the default minimum score of 0.5.
func WithMinScore(min float64) FindOptionFunc {
	return func(o *FindOption) { o.minScore = min }
}

// WithPreferences attaches preferred/avoided agent ID lists.
func WithPreferences(prefs Preferences) FindOptionFunc {
	return func(o *FindOption) { o.prefs = &prefs }
}

func buildOptions(opts ...FindOptionFunc) *FindOption {
	o := &FindOption{minScore: defaultMinScore}
	for _, fn := range opts {
		fn(o)
	}
	return o
}

// CoverageReport is returned by GetCapabilityCoverage.
type CoverageReport struct {
	PerKind              map[capability.Kind]int
	SinglePointOfFailure []capability.Kind
	CoveragePercentage   float64
}

// CapabilityRouter scores and selects agents for a requested capability,
// caching scored candidates for 60s and invalidating that cache whenever
// the registry mutates (it implements registry.Observer).
type CapabilityRouter struct {
	reg      *registry.AgentRegistry
	cache    cacheBackend
	metrics  *Metrics
	recorder Recorder
	logger   *zap.Logger
}

// RouterOption configures a CapabilityRouter at construction time.
type RouterOption func(*CapabilityRouter)

// WithCacheBackend overrides the default in-process routing cache, e.g.
// with a RedisCache for a multi-process deployment.
func WithCacheBackend(backend cacheBackend) RouterOption {
	return func(r *CapabilityRouter) { r.cache = backend }
}

// New builds a CapabilityRouter over reg. recorder may be nil, in which
// case route outcomes are tracked only in the router's own Metrics.
func New(reg *registry.AgentRegistry, recorder Recorder, logger *zap.Logger, opts ...RouterOption) *CapabilityRouter {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &CapabilityRouter{
		reg:      reg,
		cache:    newMemoryCache(),
		metrics:  newMetrics(),
		recorder: recorder,
		logger:   logger.With(zap.String("component", "capability_router")),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OnAgentRegistered implements registry.Observer.
func (r *CapabilityRouter) OnAgentRegistered(string) { r.cache.clear(context.Background()) }

// OnAgentUnregistered implements registry.Observer.
func (r *CapabilityRouter) OnAgentUnregistered(string) { r.cache.clear(context.Background()) }

// OnCapabilityUpdated implements registry.Observer.
func (r *CapabilityRouter) OnCapabilityUpdated(string, []capability.Capability, []capability.Capability) {
	r.cache.clear(context.Background())
}

// ClearCache explicitly drops every cached scoring result.
func (r *CapabilityRouter) ClearCache() { r.cache.clear(context.Background()) }

// ScoreAgentsForCapability returns every registered agent capable of
// kind, scored and sorted descending, caching the result under
// (kind, version_req) for 60s.
func (r *CapabilityRouter) ScoreAgentsForCapability(kind capability.Kind, opts ...FindOptionFunc) ([]CapabilityMatch, error) {
	o := buildOptions(opts...)
	ctx := context.Background()

	key := cacheKey{kind: kind, versionReq: o.versionReq}
	if cached, ok := r.cache.get(ctx, key); ok {
		return r.rehydrate(cached), nil
	}

	var req *Requirement
	if o.versionReq != "" {
		parsed, err := ParseRequirement(o.versionReq)
		if err != nil {
			return nil, err
		}
		req = parsed
	}

	agents, _ := r.reg.GetAgentsByCapability(kind)
	matches := make([]CapabilityMatch, 0, len(agents))
	for _, a := range agents {
		c, ok := findMatchingCapability(a, kind)
		if !ok {
			continue
		}
		matches = append(matches, CapabilityMatch{
			Agent:      a,
			Capability: c,
			Score:      score(a, c, req, o.prefs),
		})
	}

	sortMatches(matches)
	r.cache.set(ctx, key, toCachedMatches(matches))
	return matches, nil
}

// rehydrate resolves cached (serializable) matches back into live
// CapabilityMatch values by looking each agent ID back up in the
// registry. Agents that have since been unregistered are dropped.
func (r *CapabilityRouter) rehydrate(cached []cachedMatch) []CapabilityMatch {
	out := make([]CapabilityMatch, 0, len(cached))
	for _, cm := range cached {
		a, ok := r.reg.GetAgent(cm.AgentID)
		if !ok {
			continue
		}
		out = append(out, CapabilityMatch{
			Agent: a,
			Capability: capability.Capability{
				Kind:       cm.Kind,
				Version:    cm.Version,
				Parameters: cm.Parameters,
				Metadata:   cm.Metadata,
			},
			Score: cm.Score,
		})
	}
	return out
}

func findMatchingCapability(a *agent.Agent, kind capability.Kind) (capability.Capability, bool) {
	for _, c := range a.Capabilities() {
		if c.Kind == kind {
			return c, true
		}
	}
	return capability.Capability{}, false
}

// sortMatches sorts descending by score, breaking ties by registration
// order (most recently registered first).
func sortMatches(matches []CapabilityMatch) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		iIdx, _ := matches[i].Agent.RegistrationIndex()
		jIdx, _ := matches[j].Agent.RegistrationIndex()
		return iIdx > jIdx
	})
}

// FindBestAgent returns the single highest-scoring agent for kind,
// filtering candidates below min_score (default 0.5).
func (r *CapabilityRouter) FindBestAgent(kind capability.Kind, opts ...FindOptionFunc) (*agent.Agent, error) {
	start := time.Now()
	o := buildOptions(opts...)

	matches, err := r.ScoreAgentsForCapability(kind, opts...)
	if err != nil {
		r.metrics.recordRoute(false, time.Since(start))
		return nil, err
	}

	r.metrics.recordCapabilityUsage(string(kind))
	r.recorder.RecordCapabilityUsage(string(kind))

	for _, m := range matches {
		if m.Score >= o.minScore {
			r.metrics.recordRoute(true, time.Since(start))
			r.metrics.recordAgentUtilization(m.Agent.ID())
			r.recorder.RecordRoute("success", time.Since(start))
			r.recorder.RecordAgentUtilization(m.Agent.ID())
			return m.Agent, nil
		}
	}

	r.metrics.recordRoute(false, time.Since(start))
	r.recorder.RecordRoute("failed", time.Since(start))
	return nil, ErrNoCapableAgent
}

// NegotiateCapabilities picks, for each kind, the best agent that is not
// senderID. Kinds with no eligible agent map to "".
func (r *CapabilityRouter) NegotiateCapabilities(senderID string, kinds []capability.Kind, versionReqs map[capability.Kind]string) map[capability.Kind]string {
	result := make(map[capability.Kind]string, len(kinds))
	for _, kind := range kinds {
		var opts []FindOptionFunc
		if req, ok := versionReqs[kind]; ok {
			opts = append(opts, WithVersionReq(req))
		}
		matches, err := r.ScoreAgentsForCapability(kind, opts...)
		if err != nil {
			result[kind] = ""
			continue
		}
		chosen := ""
		for _, m := range matches {
			if m.Agent.ID() != senderID {
				chosen = m.Agent.ID()
				break
			}
		}
		result[kind] = chosen
	}
	return result
}

// RouteWithFallback tries primaryKind, then each fallback kind in order,
// incrementing the router's fallback counter on the first fallback used.
func (r *CapabilityRouter) RouteWithFallback(ctx context.Context, msg *agent.Message, primaryKind capability.Kind, fallbacks []capability.Kind) (any, error) {
	if a, err := r.FindBestAgent(primaryKind); err == nil {
		result, procErr := a.ProcessMessage(ctx, msg)
		if procErr == nil {
			return result, nil
		}
		r.logger.Warn("primary capability agent failed, trying fallback", zap.Error(procErr))
	}

	for _, kind := range fallbacks {
		a, err := r.FindBestAgent(kind)
		if err != nil {
			continue
		}
		result, procErr := a.ProcessMessage(ctx, msg)
		if procErr != nil {
			continue
		}
		r.metrics.recordFallback()
		return result, nil
	}

	return nil, ErrNoCapableAgent
}

// GetCapabilityCoverage reports, for every known kind, how many agents
// advertise it, which kinds are single points of failure (exactly one
// agent), and the fraction of the known kind vocabulary with any
// coverage at all.
func (r *CapabilityRouter) GetCapabilityCoverage() CoverageReport {
	perKind := make(map[capability.Kind]int, len(capability.KnownKinds))
	var singlePoint []capability.Kind
	covered := 0

	for _, kind := range capability.KnownKinds {
		agents, _ := r.reg.GetAgentsByCapability(kind)
		perKind[kind] = len(agents)
		if len(agents) == 1 {
			singlePoint = append(singlePoint, kind)
		}
		if len(agents) > 0 {
			covered++
		}
	}

	coverage := 0.0
	if len(capability.KnownKinds) > 0 {
		coverage = float64(covered) / float64(len(capability.KnownKinds))
	}

	return CoverageReport{
		PerKind:              perKind,
		SinglePointOfFailure: singlePoint,
		CoveragePercentage:   coverage,
	}
}

// GetMetrics returns a point-in-time snapshot of the router's routing metrics.
func (r *CapabilityRouter) GetMetrics() Metrics {
	return r.metrics.Snapshot()
}
