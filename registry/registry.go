package registry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agentfabric/core/agent"
	"github.com/agentfabric/core/capability"
	"github.com/agentfabric/core/recovery"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Config tunes registry behavior.
type Config struct {
	// RecoveryDeadline bounds RecoverAgent, per spec.
	RecoveryDeadline time.Duration

	// EnableAutoDiscovery is the auto-discovery opt-in flag, false by
	// default. The registry stores it but does not read it: there is no
	// discovery scan, and agents enter the registry only through
	// RegisterAgent.
	EnableAutoDiscovery bool
}

// DefaultConfig returns the registry's literal defaults.
func DefaultConfig() *Config {
	return &Config{
		RecoveryDeadline:    30 * time.Second,
		EnableAutoDiscovery: false,
	}
}

// ValidationResult is returned by ValidateCapabilities.
type ValidationResult struct {
	Available    []capability.Kind
	Missing      []capability.Kind
	AgentsByKind map[capability.Kind][]string
}

// AgentRegistry is the coupled agents/capability-index state that
// registration, routing, and broadcast all funnel through. Each agent has
// its own lock; each capability kind has its own lock; a top-level lock
// guards the registry's structural maps (creation/deletion of per-agent
// and per-kind locks, the agents map itself). Lock acquisition order is
// always top-level, then per-agent, then per-kind, to avoid deadlock.
type AgentRegistry struct {
	mu sync.Mutex // top-level: guards agents, agentLocks, kindLocks, capabilityIndex structure

	agents     map[string]*agent.Agent
	agentLocks map[string]*sync.Mutex
	kindLocks  map[capability.Kind]*sync.Mutex

	// capabilityIndex maps a capability kind to the set of agent IDs
	// advertising it. stringIndex mirrors the same data keyed by the
	// kind's string form, satisfying lookups made with a bare string.
	capabilityIndex map[capability.Kind]map[string]struct{}
	stringIndex     map[string]map[string]struct{}

	registrationCounter atomic.Uint64

	observersMu sync.RWMutex
	observers   []Observer

	notifier Notifier
	recovery *recovery.Engine
	config   *Config
	logger   *zap.Logger
}

// New builds an empty AgentRegistry. notifier and recoveryEngine may be
// nil; a nil notifier is replaced with a no-op implementation and a nil
// recoveryEngine falls back to recovery.NewEngine(logger).
func New(cfg *Config, logger *zap.Logger, notifier Notifier, recoveryEngine *recovery.Engine) *AgentRegistry {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if recoveryEngine == nil {
		recoveryEngine = recovery.NewEngine(logger)
	}
	return &AgentRegistry{
		agents:          make(map[string]*agent.Agent),
		agentLocks:      make(map[string]*sync.Mutex),
		kindLocks:       make(map[capability.Kind]*sync.Mutex),
		capabilityIndex: make(map[capability.Kind]map[string]struct{}),
		stringIndex:     make(map[string]map[string]struct{}),
		notifier:        notifier,
		recovery:        recoveryEngine,
		config:          cfg,
		logger:          logger.With(zap.String("component", "agent_registry")),
	}
}

func (r *AgentRegistry) lockForAgent(id string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.agentLocks[id]
	if !ok {
		l = &sync.Mutex{}
		r.agentLocks[id] = l
	}
	return l
}

func (r *AgentRegistry) lockForKind(kind capability.Kind) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.kindLocks[kind]
	if !ok {
		l = &sync.Mutex{}
		r.kindLocks[kind] = l
	}
	return l
}

// AddObserver registers an observer for registry mutations.
func (r *AgentRegistry) AddObserver(o Observer) {
	r.observersMu.Lock()
	defer r.observersMu.Unlock()
	r.observers = append(r.observers, o)
}

// RemoveObserver deregisters a previously added observer.
func (r *AgentRegistry) RemoveObserver(o Observer) {
	r.observersMu.Lock()
	defer r.observersMu.Unlock()
	for i, existing := range r.observers {
		if existing == o {
			r.observers = append(r.observers[:i], r.observers[i+1:]...)
			return
		}
	}
}

func (r *AgentRegistry) notifyObservers(fn func(Observer)) {
	r.observersMu.RLock()
	observers := make([]Observer, len(r.observers))
	copy(observers, r.observers)
	r.observersMu.RUnlock()

	for _, o := range observers {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					r.logger.Warn("observer panicked", zap.Any("recover", rec))
				}
			}()
			fn(o)
		}()
	}
}

// RegisterAgent registers a. Idempotent for a duplicate ID — a second
// call silently returns nil. When caps is empty, capabilities are read
// from the agent itself (initializing it first if needed). On any
// failure the partial insertion is rolled back.
func (r *AgentRegistry) RegisterAgent(ctx context.Context, a *agent.Agent, caps ...capability.Capability) error {
	id := a.ID()

	r.mu.Lock()
	if _, exists := r.agents[id]; exists {
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	lock := r.lockForAgent(id)
	lock.Lock()
	defer lock.Unlock()

	r.mu.Lock()
	if _, exists := r.agents[id]; exists {
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	if err := a.Initialize(ctx); err != nil {
		return err
	}

	effective := caps
	if len(effective) == 0 {
		effective = a.Capabilities()
	}

	indexed := make([]capability.Capability, 0, len(effective))
	for _, c := range effective {
		if err := r.indexCapability(id, c); err != nil {
			r.rollbackIndex(id, indexed)
			return err
		}
		indexed = append(indexed, c)
	}

	idx := r.registrationCounter.Add(1)
	a.SetRegistrationIndex(idx)

	r.mu.Lock()
	r.agents[id] = a
	r.mu.Unlock()

	r.notifyObservers(func(o Observer) { o.OnAgentRegistered(id) })
	r.notifier.NotifyAgentRegistered(id)

	r.logger.Info("agent registered", zap.String("agent_id", id), zap.Uint64("registration_index", idx))
	return nil
}

func (r *AgentRegistry) indexCapability(agentID string, c capability.Capability) error {
	kindLock := r.lockForKind(c.Kind)
	kindLock.Lock()
	defer kindLock.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.capabilityIndex[c.Kind] == nil {
		r.capabilityIndex[c.Kind] = make(map[string]struct{})
	}
	r.capabilityIndex[c.Kind][agentID] = struct{}{}

	key := string(c.Kind)
	if r.stringIndex[key] == nil {
		r.stringIndex[key] = make(map[string]struct{})
	}
	r.stringIndex[key][agentID] = struct{}{}
	return nil
}

func (r *AgentRegistry) deindexCapability(agentID string, c capability.Capability) {
	kindLock := r.lockForKind(c.Kind)
	kindLock.Lock()
	defer kindLock.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	if bucket, ok := r.capabilityIndex[c.Kind]; ok {
		delete(bucket, agentID)
		if len(bucket) == 0 {
			delete(r.capabilityIndex, c.Kind)
		}
	}
	key := string(c.Kind)
	if bucket, ok := r.stringIndex[key]; ok {
		delete(bucket, agentID)
		if len(bucket) == 0 {
			delete(r.stringIndex, key)
		}
	}
}

func (r *AgentRegistry) rollbackIndex(agentID string, indexed []capability.Capability) {
	for _, c := range indexed {
		r.deindexCapability(agentID, c)
	}
}

// UnregisterAgent removes agentID from the registry. Unknown IDs are a
// no-op, logged at debug.
func (r *AgentRegistry) UnregisterAgent(ctx context.Context, agentID string) error {
	lock := r.lockForAgent(agentID)
	lock.Lock()
	defer lock.Unlock()

	r.mu.Lock()
	a, ok := r.agents[agentID]
	r.mu.Unlock()
	if !ok {
		r.logger.Debug("unregister of unknown agent ignored", zap.String("agent_id", agentID))
		return nil
	}

	for _, c := range a.Capabilities() {
		r.deindexCapability(agentID, c)
	}

	r.mu.Lock()
	delete(r.agents, agentID)
	r.mu.Unlock()

	r.notifyObservers(func(o Observer) { o.OnAgentUnregistered(agentID) })
	r.notifier.NotifyAgentUnregistered(agentID)

	r.logger.Info("agent unregistered", zap.String("agent_id", agentID))
	return nil
}

// GetAgent returns the registered agent, if any.
func (r *AgentRegistry) GetAgent(agentID string) (*agent.Agent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[agentID]
	return a, ok
}

// ListAgents returns a snapshot of every currently registered agent, in
// no particular order. Used by callers that must scan the whole
// population rather than look up a single ID or capability, e.g. the
// workflow manager's reverse-dependency fan-out.
func (r *AgentRegistry) ListAgents() []*agent.Agent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*agent.Agent, 0, len(r.agents))
	for _, a := range r.agents {
		out = append(out, a)
	}
	return out
}

// GetAgentsByCapability accepts a capability.Kind or its string form and
// returns the matching agents in insertion-stable (registration) order.
// Unknown strings yield an empty slice.
func (r *AgentRegistry) GetAgentsByCapability(key any) ([]*agent.Agent, error) {
	var kind capability.Kind
	switch v := key.(type) {
	case capability.Kind:
		kind = v
	case string:
		kind = capability.Kind(v)
	case capability.Capability:
		kind = v.Kind
	default:
		return nil, nil
	}

	kindLock := r.lockForKind(kind)
	kindLock.Lock()
	ids := make([]string, 0, len(r.capabilityIndex[kind]))
	for id := range r.capabilityIndex[kind] {
		ids = append(ids, id)
	}
	kindLock.Unlock()

	r.mu.Lock()
	agents := make([]*agent.Agent, 0, len(ids))
	for _, id := range ids {
		if a, ok := r.agents[id]; ok {
			agents = append(agents, a)
		}
	}
	r.mu.Unlock()

	sortByRegistrationIndex(agents)
	return agents, nil
}

func sortByRegistrationIndex(agents []*agent.Agent) {
	for i := 1; i < len(agents); i++ {
		for j := i; j > 0; j-- {
			iIdx, _ := agents[j].RegistrationIndex()
			jIdx, _ := agents[j-1].RegistrationIndex()
			if iIdx < jIdx {
				agents[j], agents[j-1] = agents[j-1], agents[j]
			} else {
				break
			}
		}
	}
}

// UpdateAgentCapabilities replaces agentID's capability set with newCaps,
// computing and notifying the added/removed delta.
func (r *AgentRegistry) UpdateAgentCapabilities(ctx context.Context, agentID string, newCaps []capability.Capability) error {
	lock := r.lockForAgent(agentID)
	lock.Lock()
	defer lock.Unlock()

	r.mu.Lock()
	a, ok := r.agents[agentID]
	r.mu.Unlock()
	if !ok {
		return ErrAgentNotFound
	}

	before := a.Capabilities()

	var added, removed []capability.Capability
	for _, c := range newCaps {
		if !containsCapability(before, c) {
			added = append(added, c)
		}
	}
	for _, c := range before {
		if !containsCapability(newCaps, c) {
			removed = append(removed, c)
		}
	}

	for _, c := range removed {
		if err := a.RemoveCapability(c); err != nil {
			return err
		}
		r.deindexCapability(agentID, c)
	}
	for _, c := range added {
		if err := a.AddCapability(c); err != nil {
			return err
		}
		if err := r.indexCapability(agentID, c); err != nil {
			return err
		}
	}

	r.notifyObservers(func(o Observer) { o.OnCapabilityUpdated(agentID, added, removed) })
	r.notifier.NotifyCapabilityChange(agentID, added, removed)
	return nil
}

func containsCapability(list []capability.Capability, target capability.Capability) bool {
	for _, c := range list {
		if c.Equal(target) {
			return true
		}
	}
	return false
}

// ValidateCapabilities reports, for each required kind, whether at least
// one agent advertises it.
func (r *AgentRegistry) ValidateCapabilities(required []capability.Kind) ValidationResult {
	result := ValidationResult{AgentsByKind: make(map[capability.Kind][]string)}
	for _, kind := range required {
		agents, _ := r.GetAgentsByCapability(kind)
		if len(agents) == 0 {
			result.Missing = append(result.Missing, kind)
			continue
		}
		result.Available = append(result.Available, kind)
		ids := make([]string, len(agents))
		for i, a := range agents {
			ids[i] = a.ID()
		}
		result.AgentsByKind[kind] = ids
	}
	return result
}

// RouteMessage dispatches msg to a single agent: when msg.Metadata sets
// required_capability, the first capable agent (excluding the sender) is
// chosen; otherwise the message is routed to msg.RecipientID directly.
func (r *AgentRegistry) RouteMessage(ctx context.Context, msg *agent.Message) (any, error) {
	if msg.Metadata != nil {
		if reqCap, ok := msg.Metadata["required_capability"]; ok {
			agents, _ := r.GetAgentsByCapability(reqCap)
			for _, a := range agents {
				if a.ID() == msg.SenderID {
					continue
				}
				return a.ProcessMessage(ctx, msg)
			}
			return nil, ErrRouteFailed
		}
	}

	r.mu.Lock()
	target, ok := r.agents[msg.RecipientID]
	r.mu.Unlock()
	if !ok {
		return nil, ErrRouteFailed
	}
	return target.ProcessMessage(ctx, msg)
}

// BroadcastMessage delivers msg to every registered agent except the
// sender, aggregating responses by agent ID. Per-agent failures are
// logged but never abort the broadcast.
func (r *AgentRegistry) BroadcastMessage(ctx context.Context, msg *agent.Message) map[string]any {
	r.mu.Lock()
	targets := make([]*agent.Agent, 0, len(r.agents))
	for id, a := range r.agents {
		if id == msg.SenderID {
			continue
		}
		targets = append(targets, a)
	}
	r.mu.Unlock()

	results := make(map[string]any, len(targets))
	var resultsMu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, a := range targets {
		a := a
		g.Go(func() error {
			res, err := a.ProcessMessage(gctx, msg)
			resultsMu.Lock()
			defer resultsMu.Unlock()
			if err != nil {
				r.logger.Warn("broadcast delivery failed", zap.String("agent_id", a.ID()), zap.Error(err))
				results[a.ID()] = err
				return nil
			}
			results[a.ID()] = res
			return nil
		})
	}
	// Per-agent errors are captured in results, never returned here, so
	// every goroutine always reports nil — Wait only joins them.
	_ = g.Wait()
	return results
}

// RecoverAgent resolves a recovery strategy for errorKind and runs it
// against agentID's agent, under a hard deadline. A timeout returns
// false. The outcome is reported to the workflow notifier regardless.
func (r *AgentRegistry) RecoverAgent(ctx context.Context, agentID string, errorKind recovery.ErrorKind) bool {
	r.mu.Lock()
	a, ok := r.agents[agentID]
	r.mu.Unlock()
	if !ok {
		return false
	}

	lock := r.lockForAgent(agentID)
	lock.Lock()
	defer lock.Unlock()

	deadline := r.config.RecoveryDeadline
	if deadline <= 0 {
		deadline = DefaultConfig().RecoveryDeadline
	}
	recoverCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	done := make(chan bool, 1)
	go func() {
		done <- r.recovery.Recover(recoverCtx, a, errorKind)
	}()

	var success bool
	select {
	case success = <-done:
	case <-recoverCtx.Done():
		success = false
	}

	r.notifier.NotifyAgentRecovery(agentID, string(errorKind), success)
	return success
}

// Shutdown releases every registered agent.
func (r *AgentRegistry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	agents := make([]*agent.Agent, 0, len(r.agents))
	for _, a := range r.agents {
		agents = append(agents, a)
	}
	r.mu.Unlock()

	for _, a := range agents {
		if err := a.Shutdown(ctx); err != nil {
			r.logger.Warn("agent shutdown failed", zap.String("agent_id", a.ID()), zap.Error(err))
		}
	}
	return nil
}
