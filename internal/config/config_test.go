package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 30*time.Second, cfg.Server.RunTimeout)
	assert.Equal(t, 100, cfg.Engine.DefaultMaxSteps)
	assert.True(t, cfg.Engine.StepLog)
	assert.Equal(t, DriverMemory, cfg.Store.Driver)
}

func TestApplyYAML(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyYAML([]byte(`
server:
  addr: ":9090"
  run_timeout: 5s
engine:
  default_max_steps: 20
store:
  driver: redis
  redis:
    addr: "redis:6379"
    ttl: 1h
graphs:
  - graphs/review.yaml
`))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Server.RunTimeout)
	assert.True(t, cfg.Server.Metrics, "keys absent from the file keep their defaults")
	assert.Equal(t, 20, cfg.Engine.DefaultMaxSteps)
	assert.Equal(t, DriverRedis, cfg.Store.Driver)
	assert.Equal(t, "redis:6379", cfg.Store.Redis.Addr)
	assert.Equal(t, "flowgraph:", cfg.Store.Redis.Prefix)
	assert.Equal(t, time.Hour, cfg.Store.Redis.TTL)
	assert.Equal(t, []string{"graphs/review.yaml"}, cfg.Graphs)
}

func TestApplyYAML_UnknownKey(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyYAML([]byte("server:\n  adress: \":1\"\n"))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv([]string{
		"FLOWGRAPH_ADDR=:7000",
		"FLOWGRAPH_STEP_LOG=false",
		"FLOWGRAPH_DEFAULT_MAX_STEPS=7",
		"FLOWGRAPH_REDIS_TTL=90s",
		"FLOWGRAPH_REDACT_KEYS=password token",
		"FLOWGRAPH_TOOLS_FILE=tools.yaml",
		"HOME=/root",
		"MALFORMED",
	})
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.False(t, cfg.Engine.StepLog)
	assert.Equal(t, 7, cfg.Engine.DefaultMaxSteps)
	assert.Equal(t, 90*time.Second, cfg.Store.Redis.TTL)
	assert.Equal(t, []string{"password", "token"}, cfg.Store.RedactKeys)
	assert.Equal(t, "tools.yaml", cfg.ToolsFile)
}

func TestApplyEnv_RedactKeysKeepCommas(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv([]string{
		`FLOWGRAPH_REDACT_KEYS=^card_\d{2,4}$   (?i)e-?mail`,
		"FLOWGRAPH_FALLBACK_KEYS=a,b",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{`^card_\d{2,4}$`, `(?i)e-?mail`}, cfg.Store.RedactKeys)
	assert.Equal(t, []string{"a", "b"}, cfg.Store.FallbackKeys)
}

func TestValidate(t *testing.T) {
	tests := map[string]func(*Config){
		"driver":    func(c *Config) { c.Store.Driver = "sqlite" },
		"format":    func(c *Config) { c.Log.Format = "xml" },
		"level":     func(c *Config) { c.Log.Level = "loud" },
		"max steps": func(c *Config) { c.Engine.DefaultMaxSteps = 0 },
		"timeout":   func(c *Config) { c.Server.RunTimeout = -time.Second },
		"transport": func(c *Config) { c.MCP.Transport = "carrier-pigeon" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"), true)
	assert.Error(t, err)

	cfg, err := Load(filepath.Join(dir, "missing.yaml"), false)
	require.NoError(t, err)
	assert.Equal(t, Default().Server.Addr, cfg.Server.Addr)

	path := filepath.Join(dir, "flowgraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o644))
	cfg, err = Load(path, true)
	require.NoError(t, err)
	level, err := cfg.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, "DEBUG", level.String())

	require.NoError(t, os.WriteFile(path, []byte("store:\n  driver: nope\n"), 0o644))
	_, err = Load(path, true)
	assert.Error(t, err)
}
