package agent

import "github.com/agentfabric/core/capability"

// Status is the lifecycle state of an Agent.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusBusy    Status = "busy"
	StatusError   Status = "error"
	StatusOffline Status = "offline"
	StatusActive  Status = "active"
)

// StatusReport is the snapshot returned by Agent.GetStatus.
type StatusReport struct {
	Status          Status
	Capabilities    []capability.Capability
	MessageCount    int
	LastMessageTime *int64 // unix nanos, nil when no message has been processed
}
