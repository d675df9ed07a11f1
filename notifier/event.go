package notifier

import "time"

// Kind identifies the category of a notifier Event.
type Kind string

const (
	KindAgentRegistered   Kind = "agent_registered"
	KindAgentUnregistered Kind = "agent_unregistered"
	KindAgentRecovery     Kind = "agent_recovery"
	KindCapabilityChange  Kind = "capability_change"
	KindWorkflowAssembled Kind = "workflow_assembled"
)

// Event is one item on the notifier's queue.
type Event struct {
	Kind      Kind
	AgentID   string
	Payload   map[string]any
	Timestamp time.Time
}

// Handler processes one Event. Handler errors are logged but never stop
// the consumer.
type Handler func(Event) error
