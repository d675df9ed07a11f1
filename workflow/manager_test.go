package workflow

import (
	"context"
	"testing"

	"github.com/agentfabric/core/agent"
	"github.com/agentfabric/core/capability"
	"github.com/agentfabric/core/registry"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestManager(t *testing.T) (*Manager, *registry.AgentRegistry) {
	t.Helper()
	reg := registry.New(nil, zap.NewNop(), nil, nil)
	mgr := New(reg, nil, nil, nil, zap.NewNop())
	return mgr, reg
}

func registerWorker(t *testing.T, reg *registry.AgentRegistry, id string, kind capability.Kind) *agent.Agent {
	t.Helper()
	a := agent.New(id, "worker", nil)
	require.NoError(t, reg.RegisterAgent(context.Background(), a, capability.New(kind)))
	return a
}

func TestManager_CreateWorkflow_AssemblesImmediatelyWhenCapabilitiesCovered(t *testing.T) {
	mgr, reg := newTestManager(t)
	registerWorker(t, reg, "worker-1", capability.KindDataProcessing)

	w, err := mgr.CreateWorkflow(context.Background(), "pipeline", "", []capability.Kind{capability.KindDataProcessing}, nil)
	require.NoError(t, err)
	require.Equal(t, StatusAssembled, w.Status)
	require.Len(t, w.Steps, 1)
}

func TestManager_CreateWorkflow_StaysPendingWhenCapabilitiesMissing(t *testing.T) {
	mgr, _ := newTestManager(t)

	w, err := mgr.CreateWorkflow(context.Background(), "pipeline", "", []capability.Kind{capability.KindResearch}, nil)
	require.NoError(t, err)
	require.Equal(t, StatusPending, w.Status)
}

func TestManager_AssembleWorkflow_IdempotentWhenAlreadyAssembled(t *testing.T) {
	mgr, reg := newTestManager(t)
	registerWorker(t, reg, "worker-1", capability.KindDataProcessing)

	w, err := mgr.CreateWorkflow(context.Background(), "pipeline", "", []capability.Kind{capability.KindDataProcessing}, nil)
	require.NoError(t, err)
	require.Equal(t, StatusAssembled, w.Status)

	again, err := mgr.AssembleWorkflow(context.Background(), w.ID)
	require.NoError(t, err)
	require.Equal(t, StatusAssembled, again.Status)
	require.Len(t, again.Steps, 1)
}

func TestManager_AssembleWorkflow_UnknownIDReturnsNotFound(t *testing.T) {
	mgr, _ := newTestManager(t)
	_, err := mgr.AssembleWorkflow(context.Background(), "missing")
	require.ErrorIs(t, err, ErrWorkflowNotFound)
}

func TestManager_ExecuteWorkflow_CompletesAllSteps(t *testing.T) {
	mgr, reg := newTestManager(t)
	registerWorker(t, reg, "worker-1", capability.KindDataProcessing)
	registerWorker(t, reg, "worker-2", capability.KindResearch)

	w, err := mgr.CreateWorkflow(context.Background(), "pipeline", "",
		[]capability.Kind{capability.KindDataProcessing, capability.KindResearch}, nil)
	require.NoError(t, err)
	require.Equal(t, StatusAssembled, w.Status)

	result, err := mgr.ExecuteWorkflow(context.Background(), w.ID, nil)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, result.WorkflowStatus)
	require.Len(t, result.Results, 2)

	status, ok := mgr.GetWorkflowStatus(w.ID)
	require.True(t, ok)
	require.Equal(t, StatusCompleted, status)
}

func TestManager_ExecuteWorkflow_ContinuesPastStepFailure(t *testing.T) {
	mgr, reg := newTestManager(t)
	registerWorker(t, reg, "worker-1", capability.KindDataProcessing)
	registerWorker(t, reg, "worker-2", capability.KindResearch)

	w, err := mgr.CreateWorkflow(context.Background(), "pipeline", "",
		[]capability.Kind{capability.KindDataProcessing, capability.KindResearch}, nil)
	require.NoError(t, err)

	// force the first step to simulate a failure
	w.Steps[0].Parameters = map[string]any{"should_fail": true}

	result, err := mgr.ExecuteWorkflow(context.Background(), w.ID, nil)
	require.NoError(t, err)
	require.Equal(t, StatusFailed, result.WorkflowStatus)
	require.NotEmpty(t, result.Error)

	// the second step still ran despite the first one's failure
	require.Equal(t, StepCompleted, w.Steps[1].Status)
	require.Equal(t, StepFailed, w.Steps[0].Status)

	alerts := mgr.GetActiveAlerts()
	require.NotEmpty(t, alerts)
}

func TestManager_ExecuteWorkflow_BeforeAssemblyFails(t *testing.T) {
	mgr, _ := newTestManager(t)
	w, err := mgr.CreateWorkflow(context.Background(), "pipeline", "", []capability.Kind{capability.KindResearch}, nil)
	require.NoError(t, err)
	require.Equal(t, StatusPending, w.Status)

	result, err := mgr.ExecuteWorkflow(context.Background(), w.ID, nil)
	require.NoError(t, err)
	require.Equal(t, "failed", result.Status)
	require.Equal(t, StatusFailed, result.WorkflowStatus)
	require.Equal(t, "missing_capabilities", result.Error)
}

func TestManager_ExecuteWorkflow_PhantomWorkerFallback(t *testing.T) {
	mgr, _ := newTestManager(t)
	w := &Workflow{
		ID:     "wf-phantom",
		Status: StatusAssembled,
		Steps:  []*Step{{ID: "step-1", Capability: capability.KindGenericWorker, Status: StepPending}},
	}
	mgr.mu.Lock()
	mgr.workflows[w.ID] = w
	mgr.mu.Unlock()

	result, err := mgr.ExecuteWorkflow(context.Background(), w.ID, nil)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, result.WorkflowStatus)
}

func TestManager_CancelWorkflow_MarksCancelled(t *testing.T) {
	mgr, _ := newTestManager(t)
	w, err := mgr.CreateWorkflow(context.Background(), "pipeline", "", nil, nil)
	require.NoError(t, err)

	require.NoError(t, mgr.CancelWorkflow(w.ID))
	status, _ := mgr.GetWorkflowStatus(w.ID)
	require.Equal(t, StatusCancelled, status)
}

func TestManager_CancelWorkflow_UnknownIDReturnsNotFound(t *testing.T) {
	mgr, _ := newTestManager(t)
	require.ErrorIs(t, mgr.CancelWorkflow("missing"), ErrWorkflowNotFound)
}

func TestManager_StopWorkflow_ErrorsWhenNotRunning(t *testing.T) {
	mgr, _ := newTestManager(t)
	w, err := mgr.CreateWorkflow(context.Background(), "pipeline", "", nil, nil)
	require.NoError(t, err)
	require.ErrorIs(t, mgr.StopWorkflow(w.ID), ErrNotRunning)
}

func TestManager_ValidateWorkflow_DetectsCycle(t *testing.T) {
	mgr, reg := newTestManager(t)
	registerWorker(t, reg, "worker-1", capability.KindDataProcessing)

	w := &Workflow{
		RequiredCapabilities: []capability.Kind{capability.KindDataProcessing},
		Steps: []*Step{
			{ID: "a", Dependencies: []string{"b"}},
			{ID: "b", Dependencies: []string{"a"}},
		},
	}
	require.ErrorIs(t, mgr.ValidateWorkflow(w), ErrCyclicDependencies)
}

func TestManager_RegisterWorkflow_RejectsMissingCapabilities(t *testing.T) {
	mgr, _ := newTestManager(t)
	w := &Workflow{ID: "wf-custom", RequiredCapabilities: []capability.Kind{capability.KindResearch}}
	err := mgr.RegisterWorkflow(w)
	require.ErrorIs(t, err, ErrMissingCapabilities)
}

func TestManager_OnAgentUnregistered_ResetsRunningStepToPending(t *testing.T) {
	mgr, reg := newTestManager(t)
	a := registerWorker(t, reg, "worker-1", capability.KindDataProcessing)

	w := &Workflow{
		ID:     "wf-running",
		Status: StatusRunning,
		Steps:  []*Step{{ID: "step-1", Capability: capability.KindDataProcessing, Status: StepRunning, AssignedTo: a.ID()}},
	}
	mgr.mu.Lock()
	mgr.workflows[w.ID] = w
	mgr.mu.Unlock()

	require.NoError(t, reg.UnregisterAgent(context.Background(), a.ID()))

	require.Equal(t, StepPending, w.Steps[0].Status)
	require.Empty(t, w.Steps[0].AssignedTo)
}

func TestManager_GetSystemHealth_CountsByStatus(t *testing.T) {
	mgr, reg := newTestManager(t)
	registerWorker(t, reg, "worker-1", capability.KindDataProcessing)

	_, err := mgr.CreateWorkflow(context.Background(), "a", "", []capability.Kind{capability.KindDataProcessing}, nil)
	require.NoError(t, err)
	_, err = mgr.CreateWorkflow(context.Background(), "b", "", []capability.Kind{capability.KindResearch}, nil)
	require.NoError(t, err)

	health := mgr.GetSystemHealth()
	require.Equal(t, 2, health.TotalWorkflows)
	require.Equal(t, 1, health.CountByStatus[StatusAssembled])
	require.Equal(t, 1, health.CountByStatus[StatusPending])
}

func TestManager_ExecuteWorkflow_ThreadsPriorStepResultsIntoLaterSteps(t *testing.T) {
	mgr, reg := newTestManager(t)

	processor := agent.New("processor-1", "worker", func(_ context.Context, msg *agent.Message) (any, error) {
		content, _ := msg.Content.(map[string]any)
		reading, _ := content["reading"].(float64)
		result := map[string]any{"reading": reading, "anomaly": reading > 90}
		if reading > 90 {
			result["recommendation"] = "Investigate high sensor reading"
		}
		return result, nil
	})
	require.NoError(t, reg.RegisterAgent(context.Background(), processor, capability.New(capability.KindDataProcessing)))

	var seenByResearcher map[string]any
	researcher := agent.New("researcher-1", "worker", func(_ context.Context, msg *agent.Message) (any, error) {
		seenByResearcher, _ = msg.Content.(map[string]any)
		return seenByResearcher, nil
	})
	require.NoError(t, reg.RegisterAgent(context.Background(), researcher, capability.New(capability.KindResearch)))

	w, err := mgr.CreateWorkflow(context.Background(), "sensor-pipeline", "",
		[]capability.Kind{capability.KindDataProcessing, capability.KindResearch}, nil)
	require.NoError(t, err)
	require.Equal(t, StatusAssembled, w.Status)

	result, err := mgr.ExecuteWorkflow(context.Background(), w.ID, map[string]any{"reading": 99.9})
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, result.WorkflowStatus)

	require.Equal(t, 99.9, seenByResearcher["reading"])
	require.Equal(t, true, seenByResearcher["anomaly"])
	require.Equal(t, "Investigate high sensor reading", seenByResearcher["recommendation"])

	researchResult, ok := result.Results[w.Steps[1].ID].(map[string]any)
	require.True(t, ok)
	require.Equal(t, 99.9, researchResult["reading"])
	require.Equal(t, true, researchResult["anomaly"])
	require.Equal(t, "Investigate high sensor reading", researchResult["recommendation"])
}

func TestManager_ExecuteWorkflow_TriggersDependentAgentsExactlyOnce(t *testing.T) {
	mgr, reg := newTestManager(t)

	producer := agent.New("producer-1", "worker", nil)
	require.NoError(t, reg.RegisterAgent(context.Background(), producer, capability.New(capability.KindDataProcessing)))

	var invocations int
	dependent := agent.New("dependent-1", "worker", func(_ context.Context, _ *agent.Message) (any, error) {
		invocations++
		return nil, nil
	}, agent.WithDependencies("producer-1"))
	require.NoError(t, reg.RegisterAgent(context.Background(), dependent, capability.New(capability.KindMonitoring)))

	w, err := mgr.CreateWorkflow(context.Background(), "fan-out", "",
		[]capability.Kind{capability.KindDataProcessing}, nil)
	require.NoError(t, err)
	require.Equal(t, StatusAssembled, w.Status)

	result, err := mgr.ExecuteWorkflow(context.Background(), w.ID, nil)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, result.WorkflowStatus)
	require.Equal(t, 1, invocations)
	require.True(t, w.dependentTriggered("dependent-1"))

	// a resumed run (step already completed, skipped on re-entry) must not
	// re-trigger the dependent
	w.Status = StatusRunning
	result, err = mgr.ExecuteWorkflow(context.Background(), w.ID, nil)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, result.WorkflowStatus)
	require.Equal(t, 1, invocations)
}
