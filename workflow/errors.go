package workflow

import "errors"

var (
	// ErrWorkflowNotFound is returned by any operation on an unknown ID.
	ErrWorkflowNotFound = errors.New("workflow: not found")

	// ErrMissingCapabilities is returned by AssembleWorkflow when at least
	// one required capability has no registered agent.
	ErrMissingCapabilities = errors.New("workflow: missing required capabilities")

	// ErrNotRunning is returned by StopWorkflow on a non-running workflow.
	ErrNotRunning = errors.New("workflow: not running")

	// ErrNoCapableAgent is returned by step selection when no agent — real
	// or phantom — can stand in for a required capability.
	ErrNoCapableAgent = errors.New("workflow: no capable agent for step")

	// ErrCyclicDependencies is returned by ValidateWorkflow when a step's
	// dependency graph is not acyclic.
	ErrCyclicDependencies = errors.New("workflow: cyclic step dependencies")
)
