package router

import (
	"context"
	"testing"

	"github.com/agentfabric/core/agent"
	"github.com/agentfabric/core/capability"
	"github.com/agentfabric/core/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registerWorker(t *testing.T, reg *registry.AgentRegistry, id string, kind capability.Kind, impl agent.ProcessFunc) *agent.Agent {
	t.Helper()
	a := agent.New(id, "worker", impl)
	require.NoError(t, a.Initialize(context.Background()))
	require.NoError(t, a.AddCapability(capability.New(kind)))
	require.NoError(t, reg.RegisterAgent(context.Background(), a))
	return a
}

func TestRouter_FindBestAgent_PrefersIdleOverError(t *testing.T) {
	reg := registry.New(nil, nil, nil, nil)
	idleAgent := registerWorker(t, reg, "idle", capability.KindResearch, nil)
	erroredAgent := registerWorker(t, reg, "errored", capability.KindResearch, nil)
	require.NoError(t, erroredAgent.UpdateStatus(context.Background(), agent.StatusError))

	r := New(reg, nil, nil)
	best, err := r.FindBestAgent(capability.KindResearch)
	require.NoError(t, err)
	assert.Equal(t, idleAgent.ID(), best.ID())
}

func TestRouter_FindBestAgent_NoCapableAgent(t *testing.T) {
	reg := registry.New(nil, nil, nil, nil)
	r := New(reg, nil, nil)

	_, err := r.FindBestAgent(capability.KindResearch)
	assert.ErrorIs(t, err, ErrNoCapableAgent)
}

func TestRouter_FindBestAgent_MinScoreFiltersCandidates(t *testing.T) {
	reg := registry.New(nil, nil, nil, nil)
	erroredAgent := registerWorker(t, reg, "errored", capability.KindResearch, nil)
	require.NoError(t, erroredAgent.UpdateStatus(context.Background(), agent.StatusError))

	r := New(reg, nil, nil)
	_, err := r.FindBestAgent(capability.KindResearch, WithMinScore(0.9))
	assert.ErrorIs(t, err, ErrNoCapableAgent)
}

func TestRouter_ScoreAgentsForCapability_CachesResult(t *testing.T) {
	reg := registry.New(nil, nil, nil, nil)
	registerWorker(t, reg, "a1", capability.KindStorage, nil)

	r := New(reg, nil, nil)
	first, err := r.ScoreAgentsForCapability(capability.KindStorage)
	require.NoError(t, err)
	require.Len(t, first, 1)

	registerWorker(t, reg, "a2", capability.KindStorage, nil)

	// Registering a2 invalidates the cache through the Observer contract
	// only if the router is wired to the registry as an observer — here
	// we exercise the cache directly to confirm it is consulted before
	// that invalidation, then invalidate explicitly.
	cached, err := r.ScoreAgentsForCapability(capability.KindStorage)
	require.NoError(t, err)
	assert.Len(t, cached, 1, "cache should still report the pre-registration snapshot")

	r.ClearCache()
	fresh, err := r.ScoreAgentsForCapability(capability.KindStorage)
	require.NoError(t, err)
	assert.Len(t, fresh, 2)
}

func TestRouter_ObserverInvalidatesCacheOnRegistration(t *testing.T) {
	reg := registry.New(nil, nil, nil, nil)
	r := New(reg, nil, nil)
	reg.AddObserver(r)

	registerWorker(t, reg, "a1", capability.KindStorage, nil)
	first, err := r.ScoreAgentsForCapability(capability.KindStorage)
	require.NoError(t, err)
	require.Len(t, first, 1)

	registerWorker(t, reg, "a2", capability.KindStorage, nil)
	second, err := r.ScoreAgentsForCapability(capability.KindStorage)
	require.NoError(t, err)
	assert.Len(t, second, 2, "registering a new agent should invalidate the cache")
}

func TestRouter_NegotiateCapabilities_ExcludesSender(t *testing.T) {
	reg := registry.New(nil, nil, nil, nil)
	registerWorker(t, reg, "sender", capability.KindResearch, nil)
	registerWorker(t, reg, "other", capability.KindResearch, nil)

	r := New(reg, nil, nil)
	result := r.NegotiateCapabilities("sender", []capability.Kind{capability.KindResearch}, nil)
	assert.Equal(t, "other", result[capability.KindResearch])
}

func TestRouter_NegotiateCapabilities_MissingKindMapsToEmptyString(t *testing.T) {
	reg := registry.New(nil, nil, nil, nil)
	r := New(reg, nil, nil)

	result := r.NegotiateCapabilities("sender", []capability.Kind{capability.KindResearch}, nil)
	assert.Equal(t, "", result[capability.KindResearch])
}

func TestRouter_RouteWithFallback_TriesFallbackOnPrimaryFailure(t *testing.T) {
	reg := registry.New(nil, nil, nil, nil)
	registerWorker(t, reg, "primary", capability.KindResearch, func(_ context.Context, _ *agent.Message) (any, error) {
		return nil, assertErrProcessing
	})
	registerWorker(t, reg, "secondary", capability.KindMonitoring, func(_ context.Context, _ *agent.Message) (any, error) {
		return "fallback-handled", nil
	})

	r := New(reg, nil, nil)
	msg, err := agent.NewMessage("caller", "unused", "payload")
	require.NoError(t, err)

	result, err := r.RouteWithFallback(context.Background(), msg, capability.KindResearch, []capability.Kind{capability.KindMonitoring})
	require.NoError(t, err)
	assert.Equal(t, "fallback-handled", result)
	assert.Equal(t, uint64(1), r.GetMetrics().FallbackCount)
}

var assertErrProcessing = &routerTestErr{"processing failed"}

type routerTestErr struct{ msg string }

func (e *routerTestErr) Error() string { return e.msg }

func TestRouter_GetCapabilityCoverage_ReportsSinglePointsOfFailure(t *testing.T) {
	reg := registry.New(nil, nil, nil, nil)
	registerWorker(t, reg, "only-storage", capability.KindStorage, nil)

	r := New(reg, nil, nil)
	coverage := r.GetCapabilityCoverage()
	assert.Equal(t, 1, coverage.PerKind[capability.KindStorage])
	assert.Contains(t, coverage.SinglePointOfFailure, capability.KindStorage)
	assert.Greater(t, coverage.CoveragePercentage, 0.0)
	assert.Less(t, coverage.CoveragePercentage, 1.0)
}

func TestRouter_GetMetrics_TracksRoutes(t *testing.T) {
	reg := registry.New(nil, nil, nil, nil)
	registerWorker(t, reg, "a1", capability.KindStorage, nil)

	r := New(reg, nil, nil)
	_, err := r.FindBestAgent(capability.KindStorage)
	require.NoError(t, err)

	_, err = r.FindBestAgent(capability.KindAggregation)
	require.Error(t, err)

	metrics := r.GetMetrics()
	assert.Equal(t, uint64(2), metrics.TotalRoutes)
	assert.Equal(t, uint64(1), metrics.SuccessfulRoutes)
	assert.Equal(t, uint64(1), metrics.FailedRoutes)
}
