// Package ctxkeys defines the context keys the fabric propagates
// through request-scoped contexts: correlation, workflow and step IDs.
package ctxkeys

import "context"

type contextKey string

const (
	correlationIDKey contextKey = "correlation_id"
	workflowIDKey    contextKey = "workflow_id"
	stepIDKey        contextKey = "step_id"
)

// WithCorrelationID attaches a correlation ID, typically generated at
// the edge and threaded through every downstream log line and span.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// CorrelationID returns the correlation ID, if one was attached.
func CorrelationID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(correlationIDKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// WithWorkflowID attaches the workflow ID being executed.
func WithWorkflowID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, workflowIDKey, id)
}

// WorkflowID returns the workflow ID, if one was attached.
func WorkflowID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(workflowIDKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// WithStepID attaches the step ID currently being dispatched.
func WithStepID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, stepIDKey, id)
}

// StepID returns the step ID, if one was attached.
func StepID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(stepIDKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
