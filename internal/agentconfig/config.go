package agentconfig

import "time"

// Config is the complete configuration for a running fabric instance.
type Config struct {
	Registry  RegistryConfig  `yaml:"registry" env:"REGISTRY"`
	Router    RouterConfig    `yaml:"router" env:"ROUTER"`
	Workflow  WorkflowConfig  `yaml:"workflow" env:"WORKFLOW"`
	Recovery  RecoveryConfig  `yaml:"recovery" env:"RECOVERY"`
	Notifier  NotifierConfig  `yaml:"notifier" env:"NOTIFIER"`
	Cache     CacheConfig     `yaml:"cache" env:"CACHE"`
	Log       LogConfig       `yaml:"log" env:"LOG"`
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// RegistryConfig holds heartbeat-expiry settings. No component reads
// them: the registry tracks no heartbeats and runs no expiry sweep.
type RegistryConfig struct {
	// HeartbeatTTL is a heartbeat expiry window.
	HeartbeatTTL time.Duration `yaml:"heartbeat_ttl" env:"HEARTBEAT_TTL"`
	// SweepInterval is an expiry scan interval.
	SweepInterval time.Duration `yaml:"sweep_interval" env:"SWEEP_INTERVAL"`
}

// RouterConfig holds routing settings. No component reads them:
// router.New takes no configuration, and the router's cache TTL is its
// own fixed 60s constant.
type RouterConfig struct {
	ScoreCacheTTL     time.Duration `yaml:"score_cache_ttl" env:"SCORE_CACHE_TTL"`
	MaxCandidates     int           `yaml:"max_candidates" env:"MAX_CANDIDATES"`
	FallbackOnNoMatch bool          `yaml:"fallback_on_no_match" env:"FALLBACK_ON_NO_MATCH"`
}

// WorkflowConfig controls workflow assembly, step dispatch and caching.
type WorkflowConfig struct {
	DefaultStepTimeout     time.Duration `yaml:"default_step_timeout" env:"DEFAULT_STEP_TIMEOUT"`
	CapabilityCacheTTL     time.Duration `yaml:"capability_cache_ttl" env:"CAPABILITY_CACHE_TTL"`
	MaxAgentsPerCapability int           `yaml:"max_agents_per_capability" env:"MAX_AGENTS_PER_CAPABILITY"`
	AllowPhantomWorkers    bool          `yaml:"allow_phantom_workers" env:"ALLOW_PHANTOM_WORKERS"`
}

// RecoveryConfig holds recovery settings. Only DecisionTimeout is read
// (cmd/fabricd passes it to the registry as its recovery deadline); the
// recovery engine makes no retries, and MaxAttempts, BaseBackoff and
// MaxBackoff are not read.
type RecoveryConfig struct {
	MaxAttempts     int           `yaml:"max_attempts" env:"MAX_ATTEMPTS"`
	BaseBackoff     time.Duration `yaml:"base_backoff" env:"BASE_BACKOFF"`
	MaxBackoff      time.Duration `yaml:"max_backoff" env:"MAX_BACKOFF"`
	DecisionTimeout time.Duration `yaml:"decision_timeout" env:"DECISION_TIMEOUT"`
}

// NotifierConfig holds notifier settings. No component reads them:
// notifier.New takes no configuration, and its queue is unbounded and
// never drops events.
type NotifierConfig struct {
	BufferSize      int           `yaml:"buffer_size" env:"BUFFER_SIZE"`
	SubscriberTTL   time.Duration `yaml:"subscriber_ttl" env:"SUBSCRIBER_TTL"`
	DropOnFullQueue bool          `yaml:"drop_on_full_queue" env:"DROP_ON_FULL_QUEUE"`
}

// CacheConfig describes a shared Redis connection. No component reads
// it: cmd/fabricd persists workflows in an in-memory MemoryStore.
type CacheConfig struct {
	Addr         string        `yaml:"addr" env:"ADDR"`
	Password     string        `yaml:"password" env:"PASSWORD"`
	DB           int           `yaml:"db" env:"DB"`
	PoolSize     int           `yaml:"pool_size" env:"POOL_SIZE"`
	MinIdleConns int           `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
	DefaultTTL   time.Duration `yaml:"default_ttl" env:"DEFAULT_TTL"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level        string   `yaml:"level" env:"LEVEL"`
	Format       string   `yaml:"format" env:"FORMAT"`
	OutputPaths  []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	EnableCaller bool     `yaml:"enable_caller" env:"ENABLE_CALLER"`
}

// TelemetryConfig controls OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" env:"ENABLED"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	ServiceName  string  `yaml:"service_name" env:"SERVICE_NAME"`
	SampleRate   float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}
