// Package fixtures provides pre-wired fixture agents for fabric tests:
// an echo worker, an always-failing worker, a monitor and a research
// worker, each initialized and carrying one capability, ready to
// register with an AgentRegistry.
package fixtures

import (
	"context"
	"fmt"

	"github.com/agentfabric/core/agent"
	"github.com/agentfabric/core/capability"
)

// NewEchoAgent returns an initialized agent that echoes its message
// content back as the result of ProcessMessage.
func NewEchoAgent(id string, kind capability.Kind) *agent.Agent {
	a := agent.New(id, "echo_worker", func(ctx context.Context, msg *agent.Message) (any, error) {
		return msg.Content, nil
	})
	mustInit(a)
	mustAddCapability(a, capability.New(kind))
	return a
}

// NewFailingAgent returns an initialized agent whose ProcessMessage
// always fails, for exercising step-failure and recovery paths.
func NewFailingAgent(id string, kind capability.Kind) *agent.Agent {
	a := agent.New(id, "failing_worker", func(ctx context.Context, msg *agent.Message) (any, error) {
		return nil, fmt.Errorf("fixture: %s always fails", id)
	})
	mustInit(a)
	mustAddCapability(a, capability.New(kind))
	return a
}

// NewMonitorAgent returns an initialized agent advertising both the
// given kind and capability.KindMonitoring, for exercising the
// selection policy's monitor-role preference.
func NewMonitorAgent(id string, kind capability.Kind) *agent.Agent {
	a := agent.New(id, "monitor_worker", func(ctx context.Context, msg *agent.Message) (any, error) {
		return msg.Content, nil
	})
	mustInit(a)
	mustAddCapability(a, capability.New(kind))
	mustAddCapability(a, capability.New(capability.KindMonitoring))
	return a
}

// NewResearchAgent returns an initialized agent advertising
// capability.KindResearch, used to exercise the selection policy's
// prefer-oldest tie-break for research-kind work.
func NewResearchAgent(id string) *agent.Agent {
	a := agent.New(id, "research_worker", func(ctx context.Context, msg *agent.Message) (any, error) {
		return msg.Content, nil
	})
	mustInit(a)
	mustAddCapability(a, capability.New(capability.KindResearch))
	return a
}

func mustInit(a *agent.Agent) {
	if err := a.Initialize(context.Background()); err != nil {
		panic(err)
	}
}

func mustAddCapability(a *agent.Agent, c capability.Capability) {
	if err := a.AddCapability(c); err != nil {
		panic(err)
	}
}
