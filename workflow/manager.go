package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/agentfabric/core/agent"
	"github.com/agentfabric/core/capability"
	"github.com/agentfabric/core/notifier"
	"github.com/agentfabric/core/registry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("github.com/agentfabric/core/workflow")

// Manager assembles and executes workflows over an AgentRegistry. It is
// itself a registry.Observer: registry mutations invalidate its
// capability cache and, for a newly registered or re-capable agent,
// trigger an opportunistic assembly scan over every PENDING workflow.
type Manager struct {
	mu            sync.Mutex // guards workflows/workflowLocks/stopFlags structure
	workflows     map[string]*Workflow
	workflowLocks map[string]*sync.Mutex
	stopFlags     map[string]*bool

	reg         *registry.AgentRegistry
	notif       *notifier.WorkflowNotifier
	persistence Persistence
	capCache    *capabilityCache
	metrics     *executionMetrics
	cfg         *Config
	logger      *zap.Logger
}

// New builds a Manager. notif and persistence may be nil: a nil notif
// disables workflow_assembled events, a nil persistence falls back to
// an in-memory MemoryStore. If reg is non-nil the manager registers
// itself as a registry.Observer.
func New(reg *registry.AgentRegistry, persistence Persistence, notif *notifier.WorkflowNotifier, cfg *Config, logger *zap.Logger) *Manager {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if persistence == nil {
		persistence = NewMemoryStore()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		workflows:     make(map[string]*Workflow),
		workflowLocks: make(map[string]*sync.Mutex),
		stopFlags:     make(map[string]*bool),
		reg:           reg,
		notif:         notif,
		persistence:   persistence,
		capCache:      newCapabilityCache(cfg.CapabilityCacheTTL),
		metrics:       newExecutionMetrics(),
		cfg:           cfg,
		logger:        logger.With(zap.String("component", "workflow_manager")),
	}
	if reg != nil {
		reg.AddObserver(m)
	}
	return m
}

func (m *Manager) lockFor(id string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.workflowLocks[id]
	if !ok {
		l = &sync.Mutex{}
		m.workflowLocks[id] = l
	}
	return l
}

func (m *Manager) persist(w *Workflow) {
	w.Version++
	w.UpdatedAt = time.Now()
	if err := m.persistence.SaveWorkflow(w); err != nil {
		m.logger.Warn("workflow persistence failed", zap.String("workflow_id", w.ID), zap.Error(err))
	}
}

// CreateWorkflow registers a new PENDING workflow, one step short of
// execution: a step is created per required capability only once
// AssembleWorkflow runs. If every required capability already has a
// registered agent, assembly is attempted immediately.
func (m *Manager) CreateWorkflow(ctx context.Context, name, description string, required []capability.Kind, metadata map[string]any) (*Workflow, error) {
	now := time.Now()
	w := &Workflow{
		ID:                   uuid.NewString(),
		Name:                 name,
		Description:          description,
		RequiredCapabilities: required,
		Status:               StatusPending,
		Metadata:             metadata,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	w.appendHistory("created", map[string]any{"required_capabilities": required})

	m.mu.Lock()
	m.workflows[w.ID] = w
	m.mu.Unlock()

	m.persist(w)

	if m.capabilitiesCovered(required) {
		if _, err := m.AssembleWorkflow(ctx, w.ID); err != nil {
			m.logger.Debug("opportunistic assembly deferred", zap.String("workflow_id", w.ID), zap.Error(err))
		}
	}

	return w, nil
}

// RegisterWorkflow stores a caller-constructed Workflow directly (an
// explicit ID and/or pre-built steps), bypassing ID generation. Used to
// seed a workflow whose shape a caller already knows, e.g. replayed from
// another system.
func (m *Manager) RegisterWorkflow(w *Workflow) error {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	if err := m.ValidateWorkflow(w); err != nil {
		return err
	}
	now := time.Now()
	if w.CreatedAt.IsZero() {
		w.CreatedAt = now
	}
	w.UpdatedAt = now
	if w.Status == "" {
		w.Status = StatusPending
	}

	m.mu.Lock()
	m.workflows[w.ID] = w
	m.mu.Unlock()

	m.persist(w)
	return nil
}

func (m *Manager) capabilitiesCovered(required []capability.Kind) bool {
	if m.reg == nil {
		return false
	}
	for _, kind := range required {
		if len(m.capCache.agentsForCapability(m.reg, kind)) == 0 {
			return false
		}
	}
	return true
}

// AssembleWorkflow creates one step per required capability (in
// declaration order) not yet present, validates capability coverage,
// pings the first capable agent per kind, and transitions PENDING to
// ASSEMBLED. Idempotent when already ASSEMBLED or later.
func (m *Manager) AssembleWorkflow(ctx context.Context, id string) (*Workflow, error) {
	lock := m.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	m.mu.Lock()
	w, ok := m.workflows[id]
	m.mu.Unlock()
	if !ok {
		return nil, ErrWorkflowNotFound
	}
	if w.Status != StatusPending {
		return w, nil
	}

	var missing []capability.Kind
	for _, kind := range w.RequiredCapabilities {
		agents := m.candidatesFor(kind)
		if len(agents) == 0 {
			missing = append(missing, kind)
			continue
		}
		if existing := stepForCapability(w, kind); existing == nil {
			w.Steps = append(w.Steps, &Step{
				ID:         fmt.Sprintf("%s-step-%d", w.ID, len(w.Steps)+1),
				Capability: kind,
				Status:     StepPending,
			})
		}
		if err := pingAgent(ctx, agents[0]); err != nil {
			m.logger.Warn("capable agent failed liveness ping", zap.String("agent_id", agents[0].ID()), zap.Error(err))
		}
	}

	if len(missing) > 0 {
		w.appendHistory("assembly_failed", map[string]any{"missing_capabilities": missing})
		m.persist(w)
		return w, fmt.Errorf("%w: %v", ErrMissingCapabilities, missing)
	}

	w.Status = StatusAssembled
	w.appendHistory("assembled", map[string]any{"step_count": len(w.Steps)})
	m.persist(w)

	if m.notif != nil {
		m.notif.NotifyWorkflowAssembled(w.ID, len(w.Steps))
	}
	return w, nil
}

func stepForCapability(w *Workflow, kind capability.Kind) *Step {
	for _, s := range w.Steps {
		if s.Capability == kind {
			return s
		}
	}
	return nil
}

func (m *Manager) candidatesFor(kind capability.Kind) []*agent.Agent {
	if m.reg == nil {
		return nil
	}
	return m.capCache.agentsForCapability(m.reg, kind)
}

// pingAgent verifies an assembled step's agent is not already dead by
// reading its status; it never mutates the agent.
func pingAgent(_ context.Context, a *agent.Agent) error {
	if a.Status() == agent.StatusOffline {
		return fmt.Errorf("agent %s is offline", a.ID())
	}
	return nil
}

// ExecuteWorkflow runs every step of an ASSEMBLED workflow in order,
// selecting an agent per step, dispatching under the step's timeout
// (the manager's default when unset), and recording the outcome. A
// failed or timed-out step does not abort the workflow: execution
// continues and the workflow's final status is derived from its steps.
func (m *Manager) ExecuteWorkflow(ctx context.Context, id string, initialData map[string]any) (*ExecutionResult, error) {
	ctx, span := tracer.Start(ctx, "workflow.execute", trace.WithAttributes(attribute.String("workflow.id", id)))
	defer span.End()

	lock := m.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	m.mu.Lock()
	w, ok := m.workflows[id]
	m.mu.Unlock()
	if !ok {
		return nil, ErrWorkflowNotFound
	}
	if (w.Status != StatusAssembled && w.Status != StatusRunning) || len(w.Steps) == 0 {
		return m.missingCapabilitiesResult(w), nil
	}

	w.Status = StatusRunning
	w.appendHistory("execution_started", nil)
	m.persist(w)
	m.setStopFlag(id, false)

	results := make(map[string]any, len(w.Steps))
	anyFailed := false

	for _, step := range w.Steps {
		if step.Status == StepCompleted {
			results[step.ID] = step.Result
			continue
		}
		if m.stopRequested(id) {
			break
		}

		chosen := m.assignAgent(step, w)
		if chosen == nil {
			step.Status = StepFailed
			step.Error = ErrNoCapableAgent.Error()
			anyFailed = true
			m.metrics.recordStep(id, step.Status)
			m.metrics.recordAlert(Alert{Kind: "step_failed", WorkflowID: id, StepID: step.ID, Detail: step.Error})
			continue
		}

		m.ensureAdvertised(ctx, chosen, step.Capability)

		start := time.Now()
		step.Status = StepRunning
		step.AssignedTo = chosen.ID()
		step.StartedAt = &start

		stepCtx, stepSpan := tracer.Start(ctx, "workflow.step",
			trace.WithAttributes(
				attribute.String("workflow.id", id),
				attribute.String("step.id", step.ID),
				attribute.String("step.capability", string(step.Capability)),
				attribute.String("step.agent_id", chosen.ID()),
			))

		timeout := step.Timeout
		if timeout <= 0 {
			timeout = m.cfg.DefaultStepTimeout
		}
		stepCtx, cancel := context.WithTimeout(stepCtx, timeout)

		content := stepContent(w, step, initialData)
		msg, err := agent.NewMessage("workflow:"+id, chosen.ID(), content)
		var result any
		if err == nil {
			result, err = chosen.ProcessMessage(stepCtx, msg)
		}
		cancel()

		end := time.Now()
		step.EndedAt = &end

		if err != nil {
			step.Status = StepFailed
			step.Error = err.Error()
			anyFailed = true
			m.metrics.recordAgentError(chosen.ID())
			m.metrics.recordAlert(Alert{Kind: "step_failed", WorkflowID: id, StepID: step.ID, Detail: err.Error()})
			stepSpan.SetStatus(codes.Error, err.Error())
		} else {
			step.Status = StepCompleted
			step.Result = result
			results[step.ID] = result
			if !step.triggered {
				step.triggered = true
				m.triggerDependents(ctx, id, w, chosen, content)
			}
		}
		stepSpan.End()
		m.metrics.recordStep(id, step.Status)
	}

	switch {
	case m.stopRequested(id):
		w.Status = StatusCancelled
		w.appendHistory("stopped", nil)
	case anyFailed:
		w.Status = StatusFailed
		w.appendHistory("execution_failed", nil)
		m.metrics.recordAlert(Alert{Kind: "workflow_failed", WorkflowID: id})
		span.SetStatus(codes.Error, "one or more steps failed")
	default:
		w.Status = StatusCompleted
		w.appendHistory("execution_completed", nil)
	}
	m.persist(w)

	res := &ExecutionResult{
		WorkflowID:     id,
		Status:         string(w.Status),
		WorkflowStatus: w.Status,
		Results:        results,
	}
	if anyFailed {
		res.Error = "one or more steps failed"
	}
	return res, nil
}

// missingCapabilitiesResult marks w FAILED and returns the literal
// missing_capabilities outcome for an ExecuteWorkflow call made before
// assembly completed, or against a workflow that assembled with no
// steps at all.
func (m *Manager) missingCapabilitiesResult(w *Workflow) *ExecutionResult {
	w.Status = StatusFailed
	w.appendHistory("execution_failed", map[string]any{"error": "missing_capabilities"})
	m.persist(w)
	return &ExecutionResult{
		WorkflowID:     w.ID,
		Status:         string(StatusFailed),
		WorkflowStatus: StatusFailed,
		Error:          "missing_capabilities",
	}
}

// stepContent builds a step's dispatch payload: the step's own
// capability tag and parameters, the workflow's initial data, and
// every earlier step's result merged in (so a later step can see an
// earlier one's output — e.g. a research step reading the anomaly
// flag a data-processing step computed).
func stepContent(w *Workflow, step *Step, initialData map[string]any) map[string]any {
	content := map[string]any{"capability": string(step.Capability)}
	for k, v := range initialData {
		content[k] = v
	}
	for _, s := range w.Steps {
		if s == step {
			break
		}
		if s.Status != StepCompleted {
			continue
		}
		if result, ok := s.Result.(map[string]any); ok {
			for k, v := range result {
				content[k] = v
			}
		}
	}
	for k, v := range step.Parameters {
		content[k] = v
	}
	return content
}

// triggerDependents fires producer's declared dependencies once, then
// scans the registered population for any agent whose own declared
// dependencies are now all satisfied by completed steps in w,
// invoking each such dependent exactly once for the life of the
// workflow (guarded by Workflow.triggeredDependents).
func (m *Manager) triggerDependents(ctx context.Context, workflowID string, w *Workflow, producer *agent.Agent, content map[string]any) {
	if m.reg == nil {
		return
	}

	for _, depID := range producer.Dependencies() {
		if dep, ok := m.reg.GetAgent(depID); ok {
			m.fireDependent(ctx, workflowID, dep, content)
		}
	}

	trigger := map[string]any{"trigger": "dependency"}
	for _, candidate := range m.reg.ListAgents() {
		deps := candidate.Dependencies()
		if len(deps) == 0 || w.dependentTriggered(candidate.ID()) {
			continue
		}
		if !stepsCompleteFor(w, deps) {
			continue
		}
		m.fireDependent(ctx, workflowID, candidate, trigger)
		w.markDependentTriggered(candidate.ID())
	}
}

// stepsCompleteFor reports whether every agent ID in deps was assigned
// a step that completed in w.
func stepsCompleteFor(w *Workflow, deps []string) bool {
	for _, depID := range deps {
		satisfied := false
		for _, s := range w.Steps {
			if s.AssignedTo == depID && s.Status == StepCompleted {
				satisfied = true
				break
			}
		}
		if !satisfied {
			return false
		}
	}
	return true
}

func (m *Manager) fireDependent(ctx context.Context, workflowID string, dep *agent.Agent, content map[string]any) {
	msg, err := agent.NewMessage("workflow:"+workflowID, dep.ID(), content)
	if err != nil {
		return
	}
	if _, err := dep.ProcessMessage(ctx, msg); err != nil {
		m.logger.Warn("dependent agent invocation failed", zap.String("agent_id", dep.ID()), zap.Error(err))
	}
}

// ensureAdvertised adds kind to chosen's advertised capabilities (via the
// registry, so the capability index stays consistent) when chosen does
// not already declare it — this happens only for the phantom-worker
// fallback and any agent selected despite a stale cache entry.
func (m *Manager) ensureAdvertised(ctx context.Context, chosen *agent.Agent, kind capability.Kind) {
	if chosen.HasCapability(kind) {
		return
	}
	if m.reg == nil {
		_ = chosen.AddCapability(capability.New(kind))
		return
	}
	newCaps := append(append([]capability.Capability(nil), chosen.Capabilities()...), capability.New(kind))
	if err := m.reg.UpdateAgentCapabilities(ctx, chosen.ID(), newCaps); err != nil {
		m.logger.Warn("failed to advertise capability for selected agent", zap.String("agent_id", chosen.ID()), zap.Error(err))
	}
}

// assignAgent resolves the candidate pool for step.Capability, applies
// the selection policy, and falls back to a phantom generic worker when
// configured and no real candidate exists.
func (m *Manager) assignAgent(step *Step, w *Workflow) *agent.Agent {
	candidates := m.candidatesFor(step.Capability)
	if chosen := selectAgent(candidates, step.Capability, step, w, m.cfg); chosen != nil {
		return chosen
	}
	if m.cfg.AllowPhantomWorkers {
		m.logger.Warn("no capable agent, assigning phantom worker",
			zap.String("workflow_id", w.ID), zap.String("step_id", step.ID), zap.String("capability", string(step.Capability)))
		return newPhantomWorker(fmt.Sprintf("%s-phantom-%s", w.ID, step.ID), step.Capability)
	}
	return nil
}

func (m *Manager) setStopFlag(id string, v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopFlags[id] = &v
}

func (m *Manager) stopRequested(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	flag, ok := m.stopFlags[id]
	return ok && flag != nil && *flag
}

// CancelWorkflow marks id CANCELLED unless it is already completed,
// failed or cancelled, stopping a running execution at its next step
// boundary.
func (m *Manager) CancelWorkflow(id string) error {
	m.mu.Lock()
	w, ok := m.workflows[id]
	m.mu.Unlock()
	if !ok {
		return ErrWorkflowNotFound
	}
	// A running ExecuteWorkflow holds the workflow lock until it returns,
	// so the stop flag is raised before waiting for that lock.
	m.setStopFlag(id, true)

	lock := m.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	if w.Status == StatusCompleted || w.Status == StatusFailed || w.Status == StatusCancelled {
		return nil
	}
	w.Status = StatusCancelled
	w.appendHistory("cancelled", nil)
	m.persist(w)
	return nil
}

// StopWorkflow requests that a RUNNING workflow halt at its next step
// boundary; it is an error to stop a workflow that is not running.
func (m *Manager) StopWorkflow(id string) error {
	m.mu.Lock()
	w, ok := m.workflows[id]
	m.mu.Unlock()
	if !ok {
		return ErrWorkflowNotFound
	}
	if w.Status != StatusRunning {
		return ErrNotRunning
	}
	m.setStopFlag(id, true)
	return nil
}

// GetWorkflow returns the live, in-memory Workflow.
func (m *Manager) GetWorkflow(id string) (*Workflow, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workflows[id]
	return w, ok
}

// GetWorkflowStatus is a convenience accessor over GetWorkflow.
func (m *Manager) GetWorkflowStatus(id string) (Status, bool) {
	w, ok := m.GetWorkflow(id)
	if !ok {
		return "", false
	}
	return w.Status, true
}

// GetWorkflowMetrics returns recorded step-status counts for id,
// optionally filtered to a single metricType (e.g. "completed").
func (m *Manager) GetWorkflowMetrics(id string, metricType string) map[string]any {
	return m.metrics.forWorkflow(id, metricType)
}

// GetActiveAlerts returns every recorded workflow_failed/step_failed alert.
func (m *Manager) GetActiveAlerts() []Alert {
	return m.metrics.activeAlerts()
}

// GetSystemHealth summarizes the manager's current workflow population.
func (m *Manager) GetSystemHealth() SystemHealth {
	m.mu.Lock()
	counts := make(map[Status]int)
	total := 0
	for _, w := range m.workflows {
		counts[w.Status]++
		total++
	}
	m.mu.Unlock()

	return SystemHealth{
		TotalWorkflows:   total,
		CountByStatus:    counts,
		ActiveAlertCount: len(m.metrics.activeAlerts()),
		AgentErrorCounts: m.metrics.agentErrorSnapshot(),
	}
}

// ValidateWorkflow checks that w's step dependency graph is acyclic and
// that every required capability has at least one registered candidate.
func (m *Manager) ValidateWorkflow(w *Workflow) error {
	if err := checkAcyclic(w.Steps); err != nil {
		return err
	}
	var missing []capability.Kind
	for _, kind := range w.RequiredCapabilities {
		if len(m.candidatesFor(kind)) == 0 {
			missing = append(missing, kind)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %v", ErrMissingCapabilities, missing)
	}
	return nil
}

func checkAcyclic(steps []*Step) error {
	state := make(map[string]int) // 0=unvisited, 1=visiting, 2=done
	byID := make(map[string]*Step, len(steps))
	for _, s := range steps {
		byID[s.ID] = s
	}

	var visit func(id string) error
	visit = func(id string) error {
		switch state[id] {
		case 1:
			return ErrCyclicDependencies
		case 2:
			return nil
		}
		state[id] = 1
		if s, ok := byID[id]; ok {
			for _, dep := range s.Dependencies {
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		state[id] = 2
		return nil
	}

	for _, s := range steps {
		if err := visit(s.ID); err != nil {
			return err
		}
	}
	return nil
}

// --- registry.Observer ---

// OnAgentRegistered invalidates the capability cache and attempts
// assembly of every PENDING workflow, in case agentID's registration
// just completed one's capability coverage.
func (m *Manager) OnAgentRegistered(agentID string) {
	m.capCache.clear()
	m.scanPendingForAssembly()
}

// OnAgentUnregistered invalidates the capability cache and resets any
// RUNNING step assigned to the departed agent back to PENDING, so the
// next ExecuteWorkflow pass reselects a live candidate.
func (m *Manager) OnAgentUnregistered(agentID string) {
	m.capCache.clear()

	m.mu.Lock()
	workflows := make([]*Workflow, 0, len(m.workflows))
	for _, w := range m.workflows {
		workflows = append(workflows, w)
	}
	m.mu.Unlock()

	for _, w := range workflows {
		lock := m.lockFor(w.ID)
		lock.Lock()
		changed := false
		for _, s := range w.Steps {
			if s.Status == StepRunning && s.AssignedTo == agentID {
				s.Status = StepPending
				s.AssignedTo = ""
				changed = true
			}
		}
		if changed {
			m.persist(w)
		}
		lock.Unlock()
	}
}

// OnCapabilityUpdated invalidates the capability cache and re-scans
// PENDING workflows, the same as a fresh registration.
func (m *Manager) OnCapabilityUpdated(agentID string, added, removed []capability.Capability) {
	m.capCache.clear()
	m.scanPendingForAssembly()
}

func (m *Manager) scanPendingForAssembly() {
	m.mu.Lock()
	var pending []string
	for id, w := range m.workflows {
		if w.Status == StatusPending {
			pending = append(pending, id)
		}
	}
	m.mu.Unlock()

	for _, id := range pending {
		if _, err := m.AssembleWorkflow(context.Background(), id); err != nil {
			m.logger.Debug("deferred assembly still incomplete", zap.String("workflow_id", id), zap.Error(err))
		}
	}
}
