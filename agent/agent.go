package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/agentfabric/core/capability"
	"go.uber.org/zap"
)

// ProcessFunc is the subclass-supplied handler invoked by ProcessMessage
// once bookkeeping (history, status, locking) has been taken care of.
type ProcessFunc func(ctx context.Context, msg *Message) (any, error)

// HistoryEntry records one processed message for observability — this is
// the "capability-history entry" described in spec §4.2.
type HistoryEntry struct {
	Message     *Message
	ProcessedAt time.Time
	Result      any
	Err         error
}

const defaultMaxHistory = 500

// Option configures an Agent at construction time.
type Option func(*Agent)

// WithKnowledgeGraph attaches an optional knowledge-graph collaborator.
func WithKnowledgeGraph(kg KnowledgeGraph) Option {
	return func(a *Agent) { a.kg = kg }
}

// WithDiary enables the domain-specific diary list some agents keep.
func WithDiary() Option {
	return func(a *Agent) { a.diary = make([]string, 0) }
}

// WithMaxHistory overrides the bounded message history length.
func WithMaxHistory(n int) Option {
	return func(a *Agent) { a.maxHistory = n }
}

// WithLogger attaches a logger; the zero value falls back to zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(a *Agent) { a.logger = logger }
}

// WithDependencies declares the agent IDs this agent depends on: once a
// step this agent completes, the workflow manager invokes each
// declared dependent exactly once, and once every agent this agent
// depends on has itself completed a step, this agent is invoked as a
// dependent in turn.
func WithDependencies(ids ...string) Option {
	return func(a *Agent) { a.dependencies = ids }
}

// Agent is the runtime every participant in the fabric shares: identity,
// a capability set, a status machine, a bounded message history, and the
// locks that make message processing and status transitions atomic.
type Agent struct {
	id        string
	agentType string

	caps *capability.Set

	statusMu sync.RWMutex
	status   Status

	// mu is the single per-agent coordination lock guarding message
	// processing and capability mutation, per spec §4.2/§5.
	mu         sync.Mutex
	history    []HistoryEntry
	maxHistory int

	initMu      sync.Mutex
	initialized bool

	kg    KnowledgeGraph
	diary []string

	dependencies []string

	processImpl ProcessFunc
	logger      *zap.Logger

	registrationIndex uint64
	regIndexSet       bool
	regIndexMu        sync.Mutex
}

// New constructs an Agent. processImpl may be nil, in which case
// ProcessMessage simply records history and echoes the message content.
func New(id, agentType string, processImpl ProcessFunc, opts ...Option) *Agent {
	a := &Agent{
		id:          id,
		agentType:   agentType,
		caps:        capability.NewSet(),
		status:      StatusIdle,
		maxHistory:  defaultMaxHistory,
		processImpl: processImpl,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.processImpl == nil {
		a.processImpl = func(_ context.Context, msg *Message) (any, error) {
			return msg.Content, nil
		}
	}
	a.logger = a.logger.With(zap.String("agent_id", id), zap.String("agent_type", agentType))
	return a
}

func (a *Agent) ID() string   { return a.id }
func (a *Agent) Type() string { return a.agentType }

// Dependencies returns the agent IDs this agent declared via
// WithDependencies, or nil if none were declared.
func (a *Agent) Dependencies() []string { return a.dependencies }

// Initialize is idempotent under the agent's init lock. It bootstraps the
// capability set and the knowledge-graph collaborator, if any. It fails
// only when the collaborator fails to initialize.
func (a *Agent) Initialize(ctx context.Context) error {
	a.initMu.Lock()
	defer a.initMu.Unlock()
	if a.initialized {
		return nil
	}

	a.caps.Init()

	if a.kg != nil {
		if err := a.kg.Initialize(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrInitializationFailed, err)
		}
	}

	a.initialized = true
	a.logger.Debug("agent initialized")
	return nil
}

func (a *Agent) isInitialized() bool {
	a.initMu.Lock()
	defer a.initMu.Unlock()
	return a.initialized
}

// AddCapability registers a capability under the agent's coordination lock.
func (a *Agent) AddCapability(c capability.Capability) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.isInitialized() {
		return ErrNotInitialized
	}
	return a.caps.Add(c)
}

// RemoveCapability removes a capability under the agent's coordination lock.
func (a *Agent) RemoveCapability(c capability.Capability) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.isInitialized() {
		return ErrNotInitialized
	}
	return a.caps.Remove(c)
}

// Capabilities returns a point-in-time snapshot of the agent's capability set.
func (a *Agent) Capabilities() []capability.Capability {
	return a.caps.Snapshot()
}

// CapabilitiesLive streams the current snapshot through a channel, closed
// once exhausted — the explicit iterator accessor called for in the design
// notes, kept separate from Capabilities so neither overloads the other.
func (a *Agent) CapabilitiesLive() <-chan capability.Capability {
	return a.caps.Live()
}

// HasCapability reports whether the agent advertises a match for key (a
// capability.Capability, capability.Kind, or string — see capability.Set.Has).
func (a *Agent) HasCapability(key any) bool {
	ok, _ := a.caps.Has(key)
	return ok
}

// ProcessMessage appends msg to history, transitions IDLE->BUSY, invokes
// the process implementation, and transitions back to IDLE on success or
// ERROR on failure. content containing should_fail:true triggers the
// ErrSimulatedFailure testability hook before the implementation runs.
func (a *Agent) ProcessMessage(ctx context.Context, msg *Message) (any, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.isInitialized() {
		return nil, ErrNotInitialized
	}

	a.setStatus(ctx, StatusBusy)

	if isSimulatedFailure(msg.Content) {
		a.recordHistory(msg, nil, ErrSimulatedFailure)
		a.setStatus(ctx, StatusError)
		return nil, ErrSimulatedFailure
	}

	result, err := a.processImpl(ctx, msg)
	a.recordHistory(msg, result, err)

	if err != nil {
		a.setStatus(ctx, StatusError)
		return nil, fmt.Errorf("%w: %v", ErrProcessingFailed, err)
	}

	a.setStatus(ctx, StatusIdle)
	return result, nil
}

func (a *Agent) recordHistory(msg *Message, result any, err error) {
	entry := HistoryEntry{Message: msg, ProcessedAt: time.Now(), Result: result, Err: err}
	a.history = append(a.history, entry)
	if len(a.history) > a.maxHistory {
		a.history = a.history[len(a.history)-a.maxHistory:]
	}
}

// History returns a snapshot of the bounded message history.
func (a *Agent) History() []HistoryEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]HistoryEntry, len(a.history))
	copy(out, a.history)
	return out
}

// Status returns the agent's current status.
func (a *Agent) Status() Status {
	a.statusMu.RLock()
	defer a.statusMu.RUnlock()
	return a.status
}

// UpdateStatus transitions the agent's status under the status lock. If a
// knowledge-graph collaborator is attached, the prior status triple is
// removed before the new one is added so the triple stays idempotent.
func (a *Agent) UpdateStatus(ctx context.Context, s Status) error {
	a.statusMu.Lock()
	defer a.statusMu.Unlock()
	return a.updateStatusLocked(ctx, s)
}

// setStatus is the internal variant used while mu is already held
// (ProcessMessage transitions); it takes the status lock itself.
func (a *Agent) setStatus(ctx context.Context, s Status) {
	a.statusMu.Lock()
	defer a.statusMu.Unlock()
	_ = a.updateStatusLocked(ctx, s)
}

func (a *Agent) updateStatusLocked(ctx context.Context, s Status) error {
	a.status = s
	if a.kg != nil {
		if err := a.kg.RemoveTriple(ctx, a.id, "hasStatus", nil); err != nil {
			a.logger.Warn("failed to clear prior status triple", zap.Error(err))
		}
		if err := a.kg.AddTriple(ctx, a.id, "hasStatus", string(s)); err != nil {
			a.logger.Warn("failed to record status triple", zap.Error(err))
		}
	}
	return nil
}

// GetStatus returns {status, capability snapshot, message count, last
// message time}.
func (a *Agent) GetStatus() StatusReport {
	a.mu.Lock()
	count := len(a.history)
	var last *int64
	if count > 0 {
		ns := a.history[count-1].ProcessedAt.UnixNano()
		last = &ns
	}
	a.mu.Unlock()

	return StatusReport{
		Status:          a.Status(),
		Capabilities:    a.Capabilities(),
		MessageCount:    count,
		LastMessageTime: last,
	}
}

// Shutdown clears history, marks the agent OFFLINE, and releases any
// knowledge-graph collaborator.
func (a *Agent) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	a.history = nil
	a.mu.Unlock()

	a.setStatus(ctx, StatusOffline)

	if a.kg != nil {
		if err := a.kg.Cleanup(ctx); err != nil {
			a.logger.Warn("knowledge graph cleanup failed", zap.Error(err))
		}
	}
	return nil
}

// RegistrationIndex returns the order in which the registry registered
// this agent, or 0 with ok=false if it has not been registered yet.
func (a *Agent) RegistrationIndex() (uint64, bool) {
	a.regIndexMu.Lock()
	defer a.regIndexMu.Unlock()
	return a.registrationIndex, a.regIndexSet
}

// SetRegistrationIndex is called exactly once by the registry at
// registration time.
func (a *Agent) SetRegistrationIndex(i uint64) {
	a.regIndexMu.Lock()
	defer a.regIndexMu.Unlock()
	if !a.regIndexSet {
		a.registrationIndex = i
		a.regIndexSet = true
	}
}

// AppendDiary appends a domain-specific diary entry, when diary tracking
// was enabled via WithDiary.
func (a *Agent) AppendDiary(entry string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.diary != nil {
		a.diary = append(a.diary, entry)
	}
}

// Diary returns a snapshot of the diary, or nil if diary tracking was not
// enabled.
func (a *Agent) Diary() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.diary == nil {
		return nil
	}
	out := make([]string, len(a.diary))
	copy(out, a.diary)
	return out
}
