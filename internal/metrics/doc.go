// Package metrics provides Prometheus instrumentation for routing,
// workflow execution and recovery, registered via promauto so callers
// never manage a Registry directly.
//
// Metrics satisfies router.Recorder by structural typing: routesTotal,
// routeSelectionDuration and capability/agent counters back the router's
// optional sink. The workflow and recovery counters are exposed through
// RecordWorkflowStep, RecordWorkflowDuration and RecordRecoveryAttempt;
// the workflow and recovery packages do not call them.
package metrics
