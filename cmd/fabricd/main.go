// Command fabricd wires the agent registry, capability router, recovery
// engine, workflow notifier and workflow manager together from one
// agentconfig.Config, then runs the coordination fabric's end-to-end
// scenarios as a startup smoke check, analogous to an examples/ program.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/agentfabric/core/agent"
	"github.com/agentfabric/core/capability"
	"github.com/agentfabric/core/internal/agentconfig"
	"github.com/agentfabric/core/internal/metrics"
	"github.com/agentfabric/core/internal/telemetry"
	"github.com/agentfabric/core/notifier"
	"github.com/agentfabric/core/recovery"
	"github.com/agentfabric/core/registry"
	"github.com/agentfabric/core/router"
	"github.com/agentfabric/core/workflow"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to a fabric.yaml overlay (optional)")
	flag.Parse()

	cfg, err := agentconfig.NewLoader().WithConfigPath(*configPath).Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := telemetry.NewLogger(cfg.Log)
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer logger.Sync()

	providers, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Fatal("init telemetry", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(ctx); err != nil {
			logger.Warn("telemetry shutdown", zap.Error(err))
		}
	}()

	collector := metrics.NewMetrics("fabric", logger)

	notif := notifier.New(logger)
	defer notif.Shutdown(context.Background())

	recoveryEngine := recovery.NewEngine(logger)

	regCfg := &registry.Config{
		RecoveryDeadline:    cfg.Recovery.DecisionTimeout,
		EnableAutoDiscovery: false,
	}
	reg := registry.New(regCfg, logger, notif, recoveryEngine)

	capturedEvents := make([]string, 0, 8)
	notif.Subscribe(notifier.KindAgentRecovery, func(e notifier.Event) error {
		capturedEvents = append(capturedEvents, string(e.Kind))
		return nil
	})

	rt := router.New(reg, collector, logger)
	reg.AddObserver(rt)

	wfCfg := workflow.DefaultConfig()
	wfCfg.DefaultStepTimeout = cfg.Workflow.DefaultStepTimeout
	wfCfg.CapabilityCacheTTL = cfg.Workflow.CapabilityCacheTTL
	wfCfg.MaxAgentsPerCapability = cfg.Workflow.MaxAgentsPerCapability
	wfCfg.AllowPhantomWorkers = cfg.Workflow.AllowPhantomWorkers

	store := workflow.NewMemoryStore()
	manager := workflow.New(reg, store, notif, wfCfg, logger)
	reg.AddObserver(manager)

	ctx := context.Background()

	runS1(ctx, logger, reg)
	runS2(ctx, logger, reg, manager)
	runS3(ctx, logger, reg, rt)
	runS4(ctx, logger, reg, rt)
	runS5(ctx, logger, reg, recoveryEngine, notif, &capturedEvents)
	runS6(ctx, logger, reg, manager)

	logger.Info("fabric smoke check complete: S1-S6 passed")
}

func mustRegister(ctx context.Context, logger *zap.Logger, reg *registry.AgentRegistry, a *agent.Agent, caps ...capability.Capability) {
	if err := reg.RegisterAgent(ctx, a, caps...); err != nil {
		logger.Fatal("register agent", zap.String("agent_id", a.ID()), zap.Error(err))
	}
}

func echoAgent(id string) *agent.Agent {
	return agent.New(id, "echo_worker", func(_ context.Context, msg *agent.Message) (any, error) {
		return msg.Content, nil
	})
}

// runS1 registers a sensor agent and confirms it is discoverable by
// capability.
func runS1(ctx context.Context, logger *zap.Logger, reg *registry.AgentRegistry) {
	sensor := echoAgent("sensor")
	if err := sensor.Initialize(ctx); err != nil {
		logger.Fatal("initialize sensor", zap.Error(err))
	}
	mustRegister(ctx, logger, reg, sensor, capability.New(capability.KindSensorReading))

	found, err := reg.GetAgentsByCapability(capability.KindSensorReading)
	if err != nil {
		logger.Fatal("S1: lookup sensor_reading", zap.Error(err))
	}
	for _, a := range found {
		if a.ID() == "sensor" {
			logger.Info("S1 ok: sensor found by capability")
			return
		}
	}
	logger.Fatal("S1 failed: sensor not found by capability")
}

// runS2 assembles and executes a three-step workflow spanning sensor
// reading, data processing and research agents.
func runS2(ctx context.Context, logger *zap.Logger, reg *registry.AgentRegistry, manager *workflow.Manager) {
	processor := agent.New("processor", "data_processing_worker", func(_ context.Context, msg *agent.Message) (any, error) {
		data, _ := msg.Content.(map[string]any)
		reading, _ := data["reading"].(float64)
		data["anomaly"] = reading > 90.0
		return data, nil
	})
	researcher := agent.New("researcher", "research_worker", func(_ context.Context, msg *agent.Message) (any, error) {
		data, _ := msg.Content.(map[string]any)
		if anomaly, _ := data["anomaly"].(bool); anomaly {
			data["recommendation"] = "Investigate high sensor reading"
		}
		return data, nil
	})

	for _, a := range []*agent.Agent{processor, researcher} {
		if err := a.Initialize(ctx); err != nil {
			logger.Fatal("initialize agent", zap.String("agent_id", a.ID()), zap.Error(err))
		}
	}
	mustRegister(ctx, logger, reg, processor, capability.New(capability.KindDataProcessing))
	mustRegister(ctx, logger, reg, researcher, capability.New(capability.KindResearch))

	w, err := manager.CreateWorkflow(ctx, "sensor-pipeline", "S2 smoke check",
		[]capability.Kind{capability.KindSensorReading, capability.KindDataProcessing, capability.KindResearch}, nil)
	if err != nil {
		logger.Fatal("S2: create workflow", zap.Error(err))
	}

	result, err := manager.ExecuteWorkflow(ctx, w.ID, map[string]any{"reading": 99.9})
	if err != nil {
		logger.Fatal("S2: execute workflow", zap.Error(err))
	}
	if result.WorkflowStatus != workflow.StatusCompleted {
		logger.Fatal("S2 failed: workflow did not complete", zap.String("status", string(result.WorkflowStatus)))
	}
	logger.Info("S2 ok: sensor pipeline completed", zap.Any("results", result.Results))
}

// runS3 registers two versions of a capability and confirms a ">=2.0"
// version requirement selects the 2.0 agent.
func runS3(ctx context.Context, logger *zap.Logger, reg *registry.AgentRegistry, rt *router.CapabilityRouter) {
	v1 := echoAgent("msg-v1")
	v2 := echoAgent("msg-v2")
	for _, a := range []*agent.Agent{v1, v2} {
		if err := a.Initialize(ctx); err != nil {
			logger.Fatal("initialize agent", zap.Error(err))
		}
	}
	mustRegister(ctx, logger, reg, v1, capability.New(capability.KindMessageProcessing, capability.WithVersion("1.0")))
	mustRegister(ctx, logger, reg, v2, capability.New(capability.KindMessageProcessing, capability.WithVersion("2.0")))

	best, err := rt.FindBestAgent(capability.KindMessageProcessing, router.WithVersionReq(">=2.0"))
	if err != nil {
		logger.Fatal("S3: find >=2.0", zap.Error(err))
	}
	if best.ID() != "msg-v2" {
		logger.Fatal("S3 failed: expected msg-v2", zap.String("got", best.ID()))
	}
	logger.Info("S3 ok: version requirement resolved", zap.String("chosen", best.ID()))
}

// runS4 confirms routing falls back to a secondary capability when no
// agent advertises the primary one.
func runS4(ctx context.Context, logger *zap.Logger, reg *registry.AgentRegistry, rt *router.CapabilityRouter) {
	// S2 registered a research agent; remove it so no agent advertises
	// the primary capability.
	if err := reg.UnregisterAgent(ctx, "researcher"); err != nil {
		logger.Fatal("S4: unregister researcher", zap.Error(err))
	}

	fallbackWorker := echoAgent("fallback-worker")
	if err := fallbackWorker.Initialize(ctx); err != nil {
		logger.Fatal("initialize fallback worker", zap.Error(err))
	}
	mustRegister(ctx, logger, reg, fallbackWorker, capability.New(capability.KindMessageProcessing))

	msg, err := agent.NewMessage("fabricd", "fallback-worker", "fallback probe")
	if err != nil {
		logger.Fatal("S4: build message", zap.Error(err))
	}
	before := rt.GetMetrics().FallbackCount
	result, err := rt.RouteWithFallback(ctx, msg, capability.KindResearch, []capability.Kind{capability.KindMessageProcessing})
	if err != nil {
		logger.Fatal("S4 failed: fallback routing", zap.Error(err))
	}
	after := rt.GetMetrics().FallbackCount
	if after != before+1 {
		logger.Fatal("S4 failed: fallback_count did not increment", zap.Uint64("before", before), zap.Uint64("after", after))
	}
	logger.Info("S4 ok: fallback routing succeeded", zap.Any("result", result))
}

// runS5 places an agent in ERROR and confirms timeout recovery returns
// it to IDLE with exactly one agent_recovery notification.
func runS5(ctx context.Context, logger *zap.Logger, reg *registry.AgentRegistry, recoveryEngine *recovery.Engine, notif *notifier.WorkflowNotifier, events *[]string) {
	flaky := echoAgent("flaky")
	if err := flaky.Initialize(ctx); err != nil {
		logger.Fatal("initialize flaky", zap.Error(err))
	}
	mustRegister(ctx, logger, reg, flaky, capability.New(capability.KindGenericWorker))

	if err := flaky.UpdateStatus(ctx, agent.StatusError); err != nil {
		logger.Fatal("S5: force error status", zap.Error(err))
	}

	before := len(*events)
	ok := reg.RecoverAgent(ctx, flaky.ID(), recovery.ErrorKindTimeout)
	if !ok {
		logger.Fatal("S5 failed: recovery did not succeed")
	}
	if flaky.Status() != agent.StatusIdle {
		logger.Fatal("S5 failed: agent not returned to idle", zap.String("status", string(flaky.Status())))
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(*events) == before && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if len(*events) != before+1 {
		logger.Fatal("S5 failed: expected exactly one agent_recovery event", zap.Int("count", len(*events)-before))
	}
	logger.Info("S5 ok: agent recovered and notified")
}

// runS6 cancels a workflow before its first step completes and confirms
// its final status is cancelled.
func runS6(ctx context.Context, logger *zap.Logger, reg *registry.AgentRegistry, manager *workflow.Manager) {
	slow := agent.New("slow-worker", "slow_worker", func(ctx context.Context, msg *agent.Message) (any, error) {
		select {
		case <-time.After(time.Second):
			return msg.Content, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	if err := slow.Initialize(ctx); err != nil {
		logger.Fatal("initialize slow worker", zap.Error(err))
	}
	mustRegister(ctx, logger, reg, slow, capability.New(capability.KindAggregation))

	w, err := manager.CreateWorkflow(ctx, "cancel-probe", "S6 smoke check", []capability.Kind{capability.KindAggregation}, nil)
	if err != nil {
		logger.Fatal("S6: create workflow", zap.Error(err))
	}

	done := make(chan struct{})
	go func() {
		manager.ExecuteWorkflow(ctx, w.ID, nil)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	if err := manager.CancelWorkflow(w.ID); err != nil {
		logger.Fatal("S6: cancel workflow", zap.Error(err))
	}
	<-done

	got, ok := manager.GetWorkflow(w.ID)
	if !ok {
		logger.Fatal("S6 failed: workflow disappeared")
	}
	if got.Status != workflow.StatusCancelled {
		logger.Fatal("S6 failed: expected cancelled status", zap.String("got", string(got.Status)))
	}
	logger.Info("S6 ok: workflow cancelled", zap.String("workflow_id", w.ID))
}
