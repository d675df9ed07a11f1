package recovery

import (
	"context"

	"github.com/agentfabric/core/agent"
	"go.uber.org/zap"
)

// Strategy is a predicate/action pair: CanHandle reports whether the
// strategy applies to an error kind, Recover attempts remediation and
// reports success. Recover never returns an error — failures are
// reported as a false return, per spec.
type Strategy interface {
	CanHandle(kind ErrorKind) bool
	Recover(ctx context.Context, a *agent.Agent) bool
	Name() string
}

// step is one remediation action within a strategy. A step fails only
// when the context is done; otherwise remediation is simulated as
// successful, matching the teacher's simulated health-check steps.
type step func(ctx context.Context, a *agent.Agent, logger *zap.Logger) bool

func resetPendingOps(ctx context.Context, a *agent.Agent, logger *zap.Logger) bool {
	if ctx.Err() != nil {
		return false
	}
	logger.Debug("recovery step: reset pending operations", zap.String("agent_id", a.ID()))
	return true
}

func cleanupResources(ctx context.Context, a *agent.Agent, logger *zap.Logger) bool {
	if ctx.Err() != nil {
		return false
	}
	logger.Debug("recovery step: cleanup resources", zap.String("agent_id", a.ID()))
	return true
}

func resetComms(ctx context.Context, a *agent.Agent, logger *zap.Logger) bool {
	if ctx.Err() != nil {
		return false
	}
	logger.Debug("recovery step: reset communications", zap.String("agent_id", a.ID()))
	return true
}

func backupState(ctx context.Context, a *agent.Agent, logger *zap.Logger) bool {
	if ctx.Err() != nil {
		return false
	}
	logger.Debug("recovery step: backup state", zap.String("agent_id", a.ID()))
	return true
}

func restoreFromSnapshot(ctx context.Context, a *agent.Agent, logger *zap.Logger) bool {
	if ctx.Err() != nil {
		return false
	}
	logger.Debug("recovery step: restore from last known good snapshot", zap.String("agent_id", a.ID()))
	return true
}

func reallocateResources(ctx context.Context, a *agent.Agent, logger *zap.Logger) bool {
	if ctx.Err() != nil {
		return false
	}
	logger.Debug("recovery step: reallocate resources", zap.String("agent_id", a.ID()))
	return true
}

func reestablishConnections(ctx context.Context, a *agent.Agent, logger *zap.Logger) bool {
	if ctx.Err() != nil {
		return false
	}
	logger.Debug("recovery step: re-establish connections", zap.String("agent_id", a.ID()))
	return true
}

// baseStrategy runs an ordered list of steps, marking the agent IDLE if
// every step succeeds and ERROR otherwise.
type baseStrategy struct {
	name    string
	handles func(ErrorKind) bool
	steps   []step
	logger  *zap.Logger
}

func (s *baseStrategy) Name() string { return s.name }

func (s *baseStrategy) CanHandle(kind ErrorKind) bool { return s.handles(kind) }

func (s *baseStrategy) Recover(ctx context.Context, a *agent.Agent) bool {
	for _, st := range s.steps {
		if !st(ctx, a, s.logger) {
			_ = a.UpdateStatus(ctx, agent.StatusError)
			return false
		}
	}
	_ = a.UpdateStatus(ctx, agent.StatusIdle)
	return true
}

func newTimeoutStrategy(logger *zap.Logger) Strategy {
	return &baseStrategy{
		name:    "timeout",
		handles: func(k ErrorKind) bool { return k == ErrorKindTimeout },
		steps:   []step{resetPendingOps, cleanupResources, resetComms, backupState},
		logger:  logger,
	}
}

func newResourceExhaustionStrategy(logger *zap.Logger) Strategy {
	return &baseStrategy{
		name:    "resource_exhaustion",
		handles: func(k ErrorKind) bool { return k == ErrorKindResourceExhaustion },
		steps:   []step{cleanupResources, reallocateResources},
		logger:  logger,
	}
}

func newCommunicationStrategy(logger *zap.Logger) Strategy {
	return &baseStrategy{
		name:    "communication",
		handles: func(k ErrorKind) bool { return k == ErrorKindCommunication },
		steps:   []step{resetComms, reestablishConnections},
		logger:  logger,
	}
}

func newStateCorruptionStrategy(logger *zap.Logger) Strategy {
	return &baseStrategy{
		name:    "state_corruption",
		handles: func(k ErrorKind) bool { return k == ErrorKindStateCorruption },
		steps:   []step{backupState, cleanupResources, resetComms, restoreFromSnapshot},
		logger:  logger,
	}
}

// newDefaultStrategy is the union of every best-effort step, used when no
// other strategy claims the error kind.
func newDefaultStrategy(logger *zap.Logger) Strategy {
	return &baseStrategy{
		name:    "default",
		handles: func(ErrorKind) bool { return true },
		steps: []step{
			resetPendingOps, cleanupResources, resetComms, backupState,
			reallocateResources, reestablishConnections, restoreFromSnapshot,
		},
		logger: logger,
	}
}
