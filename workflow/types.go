package workflow

import (
	"time"

	"github.com/agentfabric/core/capability"
)

// Status is a workflow's lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusAssembled Status = "assembled"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// StepStatus is a single step's lifecycle state.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
)

// Step is one unit of work within a Workflow: a required capability,
// the step(s) it depends on, and the bookkeeping recorded as it runs.
type Step struct {
	ID           string             `json:"id"`
	Capability   capability.Kind    `json:"capability"`
	Parameters   map[string]any     `json:"parameters,omitempty"`
	Dependencies []string           `json:"dependencies,omitempty"` // IDs of steps within the same workflow
	Status       StepStatus         `json:"status"`
	AssignedTo   string             `json:"assigned_to,omitempty"`
	StartedAt    *time.Time         `json:"started_at,omitempty"`
	EndedAt      *time.Time         `json:"ended_at,omitempty"`
	Result       any                `json:"result,omitempty"`
	Error        string             `json:"error,omitempty"`
	Timeout      time.Duration      `json:"timeout,omitempty"` // zero means the manager's default

	// triggered marks that this step's completion has already run the
	// dependency fan-out (forward dependencies of its assigned agent,
	// reverse scan for newly-satisfied dependents), so re-entering
	// ExecuteWorkflow on a partially-run workflow never re-fires it.
	triggered bool
}

// HistoryEntry records one lifecycle transition for a Workflow.
type HistoryEntry struct {
	Event     string         `json:"event"`
	Timestamp time.Time      `json:"timestamp"`
	Detail    map[string]any `json:"detail,omitempty"`
}

// Workflow is the persisted unit this package manages: its required
// capabilities, the steps assembled for them, and its history.
type Workflow struct {
	ID                     string            `json:"id"`
	Name                   string            `json:"name"`
	Description            string            `json:"description,omitempty"`
	RequiredCapabilities   []capability.Kind `json:"required_capabilities"`
	MaxAgentsPerCapability int               `json:"max_agents_per_capability,omitempty"`
	Status                 Status            `json:"status"`
	Steps                  []*Step           `json:"steps"`
	History                []HistoryEntry    `json:"history"`
	Metadata               map[string]any    `json:"metadata,omitempty"`
	CreatedAt              time.Time         `json:"created_at"`
	UpdatedAt              time.Time         `json:"updated_at"`
	Version                int               `json:"version"` // bumped on every persisted snapshot

	// triggeredDependents records, for the life of this workflow, which
	// reverse-dependent agent IDs have already been fan-out triggered —
	// mirrors the producing step's own triggered flag but is keyed by
	// the dependent rather than the producer, since a dependent's full
	// dependency set may be satisfied by several different steps.
	triggeredDependents map[string]struct{}
}

func (w *Workflow) dependentTriggered(agentID string) bool {
	_, ok := w.triggeredDependents[agentID]
	return ok
}

func (w *Workflow) markDependentTriggered(agentID string) {
	if w.triggeredDependents == nil {
		w.triggeredDependents = make(map[string]struct{})
	}
	w.triggeredDependents[agentID] = struct{}{}
}

func (w *Workflow) stepByID(id string) *Step {
	for _, s := range w.Steps {
		if s.ID == id {
			return s
		}
	}
	return nil
}

func (w *Workflow) appendHistory(event string, detail map[string]any) {
	w.History = append(w.History, HistoryEntry{Event: event, Timestamp: time.Now(), Detail: detail})
}

// ExecutionResult is returned by ExecuteWorkflow. It supports both
// attribute-style access (its exported fields) and dictionary-style
// access (Get/ToMap), since callers vary in which they expect.
type ExecutionResult struct {
	WorkflowID     string         `json:"workflow_id"`
	Status         string         `json:"status"` // mirrors WorkflowStatus: "completed", "failed", or "cancelled"
	WorkflowStatus Status         `json:"workflow_status"`
	Results        map[string]any `json:"results"`
	Error          string         `json:"error,omitempty"`
}

// Get provides dictionary-style access to an ExecutionResult's fields,
// keyed the same as its JSON encoding.
func (r *ExecutionResult) Get(key string) (any, bool) {
	switch key {
	case "workflow_id":
		return r.WorkflowID, true
	case "status":
		return r.Status, true
	case "workflow_status":
		return r.WorkflowStatus, true
	case "results":
		return r.Results, true
	case "error":
		return r.Error, true
	default:
		v, ok := r.Results[key]
		return v, ok
	}
}

// ToMap renders the result as a plain map, for callers that want to treat
// it as an untyped dictionary end to end.
func (r *ExecutionResult) ToMap() map[string]any {
	m := map[string]any{
		"workflow_id":     r.WorkflowID,
		"status":          r.Status,
		"workflow_status": r.WorkflowStatus,
		"results":         r.Results,
	}
	if r.Error != "" {
		m["error"] = r.Error
	}
	return m
}
