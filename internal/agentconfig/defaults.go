package agentconfig

import "time"

// DefaultConfig returns a Config populated with the fabric's built-in
// defaults, before any file or environment overlay is applied.
func DefaultConfig() *Config {
	return &Config{
		Registry:  DefaultRegistryConfig(),
		Router:    DefaultRouterConfig(),
		Workflow:  DefaultWorkflowConfig(),
		Recovery:  DefaultRecoveryConfig(),
		Notifier:  DefaultNotifierConfig(),
		Cache:     DefaultCacheConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		HeartbeatTTL:  30 * time.Second,
		SweepInterval: 10 * time.Second,
	}
}

func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		ScoreCacheTTL:     60 * time.Second,
		MaxCandidates:     5,
		FallbackOnNoMatch: true,
	}
}

func DefaultWorkflowConfig() WorkflowConfig {
	return WorkflowConfig{
		DefaultStepTimeout:     5 * time.Second,
		CapabilityCacheTTL:     60 * time.Second,
		MaxAgentsPerCapability: 1,
		AllowPhantomWorkers:    true,
	}
}

func DefaultRecoveryConfig() RecoveryConfig {
	return RecoveryConfig{
		MaxAttempts:     3,
		BaseBackoff:     500 * time.Millisecond,
		MaxBackoff:      10 * time.Second,
		DecisionTimeout: 30 * time.Second,
	}
}

func DefaultNotifierConfig() NotifierConfig {
	return NotifierConfig{
		BufferSize:      64,
		SubscriberTTL:   5 * time.Minute,
		DropOnFullQueue: true,
	}
}

func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		DefaultTTL:   10 * time.Minute,
	}
}

func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:        "info",
		Format:       "json",
		OutputPaths:  []string{"stdout"},
		EnableCaller: true,
	}
}

func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "agentfabric",
		SampleRate:   0.1,
	}
}
