package workflow

import (
	"context"
	"strings"

	"github.com/agentfabric/core/agent"
	"github.com/agentfabric/core/capability"
)

const testAgentSuffix = "_test_agent"

// selectAgent narrows candidates to one, applying four ordered rules:
// monitor-role preference, dependency-producer preference (reuse the
// agent that produced a step this one depends on), test-suffix
// filtering, and finally an oldest/newest tie-break by capability
// class. The caller is responsible for the phantom-worker fallback when
// candidates is empty.
func selectAgent(candidates []*agent.Agent, kind capability.Kind, step *Step, w *Workflow, cfg *Config) *agent.Agent {
	if len(candidates) == 0 {
		return nil
	}
	if len(candidates) == 1 {
		return candidates[0]
	}

	pool := candidates

	if monitors := filterMonitors(pool); len(monitors) > 0 {
		pool = monitors
	}

	if producers := filterDependencyProducers(pool, step, w); len(producers) > 0 {
		pool = producers
	}

	if nonTest := filterNonTestAgents(pool); len(nonTest) > 0 {
		pool = nonTest
	}

	return tieBreak(pool, kind, cfg)
}

// filterMonitors prefers candidates that also advertise monitoring,
// since they already observe the fabric and are cheaper to route
// through for visibility.
func filterMonitors(candidates []*agent.Agent) []*agent.Agent {
	var out []*agent.Agent
	for _, a := range candidates {
		if a.HasCapability(capability.KindMonitoring) {
			out = append(out, a)
		}
	}
	return out
}

// filterDependencyProducers prefers the agent that completed a step this
// one depends on, for continuity across a dependency chain.
func filterDependencyProducers(candidates []*agent.Agent, step *Step, w *Workflow) []*agent.Agent {
	if step == nil || len(step.Dependencies) == 0 {
		return nil
	}
	producers := make(map[string]struct{})
	for _, depID := range step.Dependencies {
		if dep := w.stepByID(depID); dep != nil && dep.Status == StepCompleted && dep.AssignedTo != "" {
			producers[dep.AssignedTo] = struct{}{}
		}
	}
	if len(producers) == 0 {
		return nil
	}
	var out []*agent.Agent
	for _, a := range candidates {
		if _, ok := producers[a.ID()]; ok {
			out = append(out, a)
		}
	}
	return out
}

// filterNonTestAgents drops agents whose ID marks them as test doubles,
// unless doing so would empty the pool.
func filterNonTestAgents(candidates []*agent.Agent) []*agent.Agent {
	var out []*agent.Agent
	for _, a := range candidates {
		if !strings.HasSuffix(a.ID(), testAgentSuffix) {
			out = append(out, a)
		}
	}
	return out
}

// tieBreak picks one agent from the remaining pool by registration
// order: oldest first for capability.KindResearch (continuity of the
// same researcher), newest first otherwise (freshest capacity), unless
// cfg.TieBreakByKind overrides the kind.
func tieBreak(candidates []*agent.Agent, kind capability.Kind, cfg *Config) *agent.Agent {
	policy := PreferNewest
	if kind == capability.KindResearch {
		policy = PreferOldest
	}
	if cfg != nil {
		if override, ok := cfg.TieBreakByKind[kind]; ok {
			policy = override
		}
	}

	best := candidates[0]
	bestIdx, _ := best.RegistrationIndex()
	for _, a := range candidates[1:] {
		idx, _ := a.RegistrationIndex()
		switch policy {
		case PreferOldest:
			if idx < bestIdx {
				best, bestIdx = a, idx
			}
		default:
			if idx > bestIdx {
				best, bestIdx = a, idx
			}
		}
	}
	return best
}

// newPhantomWorker builds an ephemeral generic_worker agent that stands
// in for a capability with zero registered candidates. It is never
// registered with the fabric; it exists only to let the step complete
// with an explicit phantom-assignment marker rather than hard-failing
// the workflow.
func newPhantomWorker(id string, kind capability.Kind) *agent.Agent {
	a := agent.New(id, "phantom_worker", nil)
	_ = a.Initialize(context.Background())
	_ = a.AddCapability(capability.New(kind))
	return a
}
