// Package notifier implements the WorkflowNotifier: a single-consumer
// ordered event bus. Producers never block — events are appended to an
// unbounded, mutex-guarded slice and a one-slot channel wakes the
// consumer — and a single goroutine dispatches them to kind-specific handlers in
// enqueue order.
package notifier
