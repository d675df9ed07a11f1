package registry

import "github.com/agentfabric/core/capability"

// Observer is notified synchronously of registry mutations. Observer
// errors are logged and never propagate back to the caller that
// triggered the mutation.
type Observer interface {
	OnAgentRegistered(agentID string)
	OnAgentUnregistered(agentID string)
	OnCapabilityUpdated(agentID string, added, removed []capability.Capability)
}

// Notifier is the subset of the workflow notifier's contract the
// registry depends on. Defining it here (rather than importing the
// notifier package) keeps registry free of a dependency on notifier —
// the concrete *notifier.WorkflowNotifier satisfies this by structural
// typing.
type Notifier interface {
	NotifyAgentRegistered(agentID string)
	NotifyAgentUnregistered(agentID string)
	NotifyCapabilityChange(agentID string, added, removed []capability.Capability)
	NotifyAgentRecovery(agentID string, errorKind string, success bool)
}

type noopNotifier struct{}

func (noopNotifier) NotifyAgentRegistered(string)   {}
func (noopNotifier) NotifyAgentUnregistered(string) {}
func (noopNotifier) NotifyCapabilityChange(string, []capability.Capability, []capability.Capability) {
}
func (noopNotifier) NotifyAgentRecovery(string, string, bool) {}
