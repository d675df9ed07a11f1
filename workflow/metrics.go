package workflow

import (
	"sync"
	"time"
)

// Alert is a record of a notable execution failure, surfaced by
// GetActiveAlerts/GetSystemHealth.
type Alert struct {
	Kind       string    `json:"kind"` // "workflow_failed" or "step_failed"
	WorkflowID string    `json:"workflow_id"`
	StepID     string    `json:"step_id,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// SystemHealth summarizes the manager's current workflow population.
type SystemHealth struct {
	TotalWorkflows   int            `json:"total_workflows"`
	CountByStatus    map[Status]int `json:"count_by_status"`
	ActiveAlertCount int            `json:"active_alert_count"`
	AgentErrorCounts map[string]int `json:"agent_error_counts"`
}

// executionMetrics tracks per-workflow step outcomes and per-agent error
// counts across every workflow the manager has executed.
type executionMetrics struct {
	mu           sync.Mutex
	stepOutcomes map[string]map[string]int // workflow ID -> status -> count
	agentErrors  map[string]int            // agent ID -> error count
	alerts       []Alert
	maxAlerts    int
}

func newExecutionMetrics() *executionMetrics {
	return &executionMetrics{
		stepOutcomes: make(map[string]map[string]int),
		agentErrors:  make(map[string]int),
		maxAlerts:    200,
	}
}

func (m *executionMetrics) recordStep(workflowID string, status StepStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bucket, ok := m.stepOutcomes[workflowID]
	if !ok {
		bucket = make(map[string]int)
		m.stepOutcomes[workflowID] = bucket
	}
	bucket[string(status)]++
}

func (m *executionMetrics) recordAgentError(agentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.agentErrors[agentID]++
}

func (m *executionMetrics) recordAlert(a Alert) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.Timestamp = time.Now()
	m.alerts = append(m.alerts, a)
	if len(m.alerts) > m.maxAlerts {
		m.alerts = m.alerts[len(m.alerts)-m.maxAlerts:]
	}
}

// forWorkflow returns a snapshot of recorded step-status counts for id,
// keyed by step status. A non-empty metricType keeps only the count for
// that status; an unknown id yields an empty map.
func (m *executionMetrics) forWorkflow(id string, metricType string) map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	bucket, ok := m.stepOutcomes[id]
	if !ok {
		return map[string]any{}
	}
	out := make(map[string]any, len(bucket))
	for status, count := range bucket {
		if metricType != "" && metricType != status {
			continue
		}
		out[status] = count
	}
	return out
}

func (m *executionMetrics) activeAlerts() []Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Alert, len(m.alerts))
	copy(out, m.alerts)
	return out
}

func (m *executionMetrics) agentErrorSnapshot() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int, len(m.agentErrors))
	for k, v := range m.agentErrors {
		out[k] = v
	}
	return out
}
