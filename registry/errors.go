package registry

import "errors"

var (
	// ErrAgentNotFound is returned when an operation names an unknown agent ID.
	ErrAgentNotFound = errors.New("registry: agent not found")

	// ErrRouteFailed is returned by RouteMessage when no agent could be
	// selected, either because the recipient is unknown or no agent
	// advertises the requested capability.
	ErrRouteFailed = errors.New("registry: route failed")

	// ErrRegistrationFailed wraps a failure encountered mid-registration;
	// the registry rolls back any partial insertion before returning it.
	ErrRegistrationFailed = errors.New("registry: registration failed")
)
