package agent

import "errors"

var (
	// ErrNotInitialized is returned when an operation runs before Initialize.
	ErrNotInitialized = errors.New("agent: not initialized")

	// ErrInitializationFailed wraps a knowledge-graph collaborator failure
	// encountered during Initialize.
	ErrInitializationFailed = errors.New("agent: initialization failed")

	// ErrProcessingFailed wraps any error raised by a ProcessFunc.
	ErrProcessingFailed = errors.New("agent: processing failed")

	// ErrSimulatedFailure is raised when an inbound message's content
	// requests a simulated failure (content["should_fail"] == true). It
	// is a testability hook, never a production code path.
	ErrSimulatedFailure = errors.New("agent: simulated failure")

	// ErrMissingSender is returned by NewMessage when sender is empty.
	ErrMissingSender = errors.New("agent: message missing sender_id")

	// ErrMissingRecipient is returned by NewMessage when recipient is empty.
	ErrMissingRecipient = errors.New("agent: message missing recipient_id")
)
