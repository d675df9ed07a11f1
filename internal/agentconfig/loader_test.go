package agentconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 60*time.Second, cfg.Router.ScoreCacheTTL)
	assert.Equal(t, 5*time.Second, cfg.Workflow.DefaultStepTimeout)
	assert.Equal(t, 60*time.Second, cfg.Workflow.CapabilityCacheTTL)
	assert.Equal(t, 1, cfg.Workflow.MaxAgentsPerCapability)
	assert.True(t, cfg.Workflow.AllowPhantomWorkers)
	assert.Equal(t, 3, cfg.Recovery.MaxAttempts)
	assert.Equal(t, "localhost:6379", cfg.Cache.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Telemetry.Enabled)
}

func TestLoader_LoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.Workflow.DefaultStepTimeout)
}

func TestLoader_LoadFromYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "fabric.yaml")

	yamlContent := `
workflow:
  default_step_timeout: 10s
  max_agents_per_capability: 3
  allow_phantom_workers: false

recovery:
  max_attempts: 5
  base_backoff: 1s

cache:
  addr: "redis.internal:6380"
  db: 2

log:
  level: "debug"
  format: "console"
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0644))

	cfg, err := NewLoader().WithConfigPath(configPath).Load()
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, cfg.Workflow.DefaultStepTimeout)
	assert.Equal(t, 3, cfg.Workflow.MaxAgentsPerCapability)
	assert.False(t, cfg.Workflow.AllowPhantomWorkers)
	assert.Equal(t, 5, cfg.Recovery.MaxAttempts)
	assert.Equal(t, 1*time.Second, cfg.Recovery.BaseBackoff)
	assert.Equal(t, "redis.internal:6380", cfg.Cache.Addr)
	assert.Equal(t, 2, cfg.Cache.DB)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoader_LoadFromEnv(t *testing.T) {
	envVars := map[string]string{
		"FABRIC_WORKFLOW_DEFAULT_STEP_TIMEOUT": "15s",
		"FABRIC_WORKFLOW_ALLOW_PHANTOM_WORKERS": "false",
		"FABRIC_RECOVERY_MAX_ATTEMPTS":          "7",
		"FABRIC_CACHE_ADDR":                     "env-redis:6379",
		"FABRIC_LOG_LEVEL":                      "warn",
	}
	for k, v := range envVars {
		require.NoError(t, os.Setenv(k, v))
	}
	defer func() {
		for k := range envVars {
			os.Unsetenv(k)
		}
	}()

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 15*time.Second, cfg.Workflow.DefaultStepTimeout)
	assert.False(t, cfg.Workflow.AllowPhantomWorkers)
	assert.Equal(t, 7, cfg.Recovery.MaxAttempts)
	assert.Equal(t, "env-redis:6379", cfg.Cache.Addr)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoader_EnvOverridesYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "fabric.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("log:\n  level: debug\n"), 0644))

	require.NoError(t, os.Setenv("FABRIC_LOG_LEVEL", "error"))
	defer os.Unsetenv("FABRIC_LOG_LEVEL")

	cfg, err := NewLoader().WithConfigPath(configPath).Load()
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Log.Level)
}

func TestLoader_MissingFileIsNotAnError(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath("/nonexistent/fabric.yaml").Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Workflow.DefaultStepTimeout, cfg.Workflow.DefaultStepTimeout)
}

func TestLoader_ValidatorRuns(t *testing.T) {
	_, err := NewLoader().
		WithValidator(func(c *Config) error { return c.Validate() }).
		Load()
	require.NoError(t, err)
}

func TestConfig_ValidateCatchesBadValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workflow.MaxAgentsPerCapability = 0
	cfg.Recovery.MaxAttempts = -1
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_agents_per_capability")
	assert.Contains(t, err.Error(), "max_attempts")
}
