package router

import (
	"sync"
	"time"
)

// Recorder is the optional metrics sink a CapabilityRouter reports
// outcomes to. internal/metrics' Prometheus-backed Metrics type
// satisfies this by structural typing, keeping router free of a direct
// dependency on the metrics package.
type Recorder interface {
	RecordRoute(outcome string, selectionDuration time.Duration)
	RecordCapabilityUsage(kind string)
	RecordAgentUtilization(agentID string)
}

type noopRecorder struct{}

func (noopRecorder) RecordRoute(string, time.Duration) {}
func (noopRecorder) RecordCapabilityUsage(string)       {}
func (noopRecorder) RecordAgentUtilization(string)      {}

// Metrics is the router's own in-process counters, returned by GetMetrics
// regardless of whether an external Recorder is also wired in.
type Metrics struct {
	mu                 sync.Mutex
	TotalRoutes        uint64
	SuccessfulRoutes   uint64
	FailedRoutes       uint64
	FallbackCount      uint64
	avgSelectionTimeMs float64
	CapabilityUsage    map[string]uint64
	AgentUtilization   map[string]uint64
}

func newMetrics() *Metrics {
	return &Metrics{
		CapabilityUsage:  make(map[string]uint64),
		AgentUtilization: make(map[string]uint64),
	}
}

// AvgSelectionTimeMs returns the rolling average selection duration.
func (m *Metrics) AvgSelectionTimeMs() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.avgSelectionTimeMs
}

func (m *Metrics) recordRoute(success bool, elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TotalRoutes++
	if success {
		m.SuccessfulRoutes++
	} else {
		m.FailedRoutes++
	}
	ms := float64(elapsed.Microseconds()) / 1000.0
	if m.TotalRoutes == 1 {
		m.avgSelectionTimeMs = ms
	} else {
		m.avgSelectionTimeMs += (ms - m.avgSelectionTimeMs) / float64(m.TotalRoutes)
	}
}

func (m *Metrics) recordCapabilityUsage(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CapabilityUsage[kind]++
}

func (m *Metrics) recordAgentUtilization(agentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AgentUtilization[agentID]++
}

func (m *Metrics) recordFallback() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FallbackCount++
}

// Snapshot returns a point-in-time copy safe to read without locking.
func (m *Metrics) Snapshot() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	usage := make(map[string]uint64, len(m.CapabilityUsage))
	for k, v := range m.CapabilityUsage {
		usage[k] = v
	}
	util := make(map[string]uint64, len(m.AgentUtilization))
	for k, v := range m.AgentUtilization {
		util[k] = v
	}
	return Metrics{
		TotalRoutes:        m.TotalRoutes,
		SuccessfulRoutes:   m.SuccessfulRoutes,
		FailedRoutes:       m.FailedRoutes,
		FallbackCount:      m.FallbackCount,
		avgSelectionTimeMs: m.avgSelectionTimeMs,
		CapabilityUsage:    usage,
		AgentUtilization:   util,
	}
}
