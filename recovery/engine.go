package recovery

import (
	"context"

	"github.com/agentfabric/core/agent"
	"go.uber.org/zap"
)

// Engine is stateless apart from its strategy table: GetStrategy returns
// the first strategy whose CanHandle reports true, falling back to the
// default strategy, which handles everything.
type Engine struct {
	strategies []Strategy
	logger     *zap.Logger
}

// NewEngine builds the fixed strategy table in priority order: Timeout,
// ResourceExhaustion, Communication, StateCorruption, Default.
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "recovery_engine"))
	return &Engine{
		strategies: []Strategy{
			newTimeoutStrategy(logger),
			newResourceExhaustionStrategy(logger),
			newCommunicationStrategy(logger),
			newStateCorruptionStrategy(logger),
			newDefaultStrategy(logger),
		},
		logger: logger,
	}
}

// GetStrategy returns the first strategy whose CanHandle(kind) is true.
// The default strategy handles everything, so this never returns nil.
func (e *Engine) GetStrategy(kind ErrorKind) Strategy {
	for _, s := range e.strategies {
		if s.CanHandle(kind) {
			return s
		}
	}
	// unreachable: the default strategy always matches.
	return e.strategies[len(e.strategies)-1]
}

// Recover resolves a strategy for kind and runs it against a. It never
// raises; the boolean result is the sole outcome signal.
func (e *Engine) Recover(ctx context.Context, a *agent.Agent, kind ErrorKind) bool {
	strategy := e.GetStrategy(kind)
	e.logger.Info("running recovery strategy",
		zap.String("agent_id", a.ID()),
		zap.String("error_kind", string(kind)),
		zap.String("strategy", strategy.Name()),
	)
	success := strategy.Recover(ctx, a)
	e.logger.Info("recovery strategy finished",
		zap.String("agent_id", a.ID()),
		zap.String("strategy", strategy.Name()),
		zap.Bool("success", success),
	)
	return success
}
