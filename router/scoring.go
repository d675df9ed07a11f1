package router

import (
	"github.com/agentfabric/core/agent"
	"github.com/agentfabric/core/capability"
)

// Preferences biases scoring toward or away from specific agent IDs.
type Preferences struct {
	Preferred []string
	Avoid     []string
}

func (p *Preferences) isEmpty() bool {
	return p == nil || (len(p.Preferred) == 0 && len(p.Avoid) == 0)
}

func (p *Preferences) contains(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

// CapabilityMatch is one scored candidate returned by ScoreAgentsForCapability.
type CapabilityMatch struct {
	Agent      *agent.Agent
	Capability capability.Capability
	Score      float64
}

// score implements the additive scoring algorithm: base 0.5, +0.3 for a
// satisfied (or absent) version requirement, preference bonus/penalty,
// and a status adjustment, clamped to [0, 1].
func score(a *agent.Agent, c capability.Capability, req *Requirement, prefs *Preferences) float64 {
	s := 0.5

	if req == nil || req.Satisfies(c.Version) {
		s += 0.3
	}

	switch {
	case prefs.isEmpty():
		s += 0.1
	case prefs.contains(prefs.Preferred, a.ID()):
		s += 0.2
	case prefs.contains(prefs.Avoid, a.ID()):
		s -= 0.3
	}

	switch a.Status() {
	case agent.StatusIdle:
		s += 0.1
	case agent.StatusError:
		s -= 0.2
	}

	if s < 0 {
		s = 0
	}
	if s > 1 {
		s = 1
	}
	return s
}
