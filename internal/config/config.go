// Package config loads the flowgraph server and CLI configuration.
//
// Values are layered: built-in defaults, then the YAML file, then
// FLOWGRAPH_* environment variables. Command-line flags are applied last by
// the commands themselves.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Config is the complete runtime configuration.
type Config struct {
	Server ServerConfig `mapstructure:"server" yaml:"server"`
	Engine EngineConfig `mapstructure:"engine" yaml:"engine"`
	Store  StoreConfig  `mapstructure:"store" yaml:"store"`
	Log    LogConfig    `mapstructure:"log" yaml:"log"`
	MCP    MCPConfig    `mapstructure:"mcp" yaml:"mcp"`

	// Graphs lists graph definition files (YAML or JSON) to preload.
	Graphs []string `mapstructure:"graphs" yaml:"graphs"`

	// ToolsFile declares external command tools.
	ToolsFile string `mapstructure:"tools_file" yaml:"tools_file"`
}

type ServerConfig struct {
	Addr       string        `mapstructure:"addr" yaml:"addr"`
	RunTimeout time.Duration `mapstructure:"run_timeout" yaml:"run_timeout"`
	Metrics    bool          `mapstructure:"metrics" yaml:"metrics"`
	// CodeReview preloads the built-in code review graph.
	CodeReview bool `mapstructure:"code_review" yaml:"code_review"`
}

type EngineConfig struct {
	DefaultMaxSteps int  `mapstructure:"default_max_steps" yaml:"default_max_steps"`
	StepLog         bool `mapstructure:"step_log" yaml:"step_log"`
}

type StoreConfig struct {
	Driver string      `mapstructure:"driver" yaml:"driver"` // memory | redis
	Redis  RedisConfig `mapstructure:"redis" yaml:"redis"`

	// EncryptionKey is a base64 AES-256 key. When set, run records are
	// encrypted at rest; FallbackKeys still decrypt older records.
	EncryptionKey string   `mapstructure:"encryption_key" yaml:"encryption_key"`
	FallbackKeys  []string `mapstructure:"fallback_keys" yaml:"fallback_keys"`
	// RedactKeys are regular expressions; matching state keys are masked
	// before a record is stored.
	RedactKeys []string `mapstructure:"redact_keys" yaml:"redact_keys"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr" yaml:"addr"`
	Password string        `mapstructure:"password" yaml:"password"`
	DB       int           `mapstructure:"db" yaml:"db"`
	Prefix   string        `mapstructure:"prefix" yaml:"prefix"`
	TTL      time.Duration `mapstructure:"ttl" yaml:"ttl"`
	LockTTL  time.Duration `mapstructure:"lock_ttl" yaml:"lock_ttl"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"` // text | json | pretty
}

type MCPConfig struct {
	Transport string `mapstructure:"transport" yaml:"transport"` // stdio | sse
	Port      int    `mapstructure:"port" yaml:"port"`
}

const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:       ":8080",
			RunTimeout: 30 * time.Second,
			Metrics:    true,
			CodeReview: true,
		},
		Engine: EngineConfig{
			DefaultMaxSteps: 100,
			StepLog:         true,
		},
		Store: StoreConfig{
			Driver: DriverMemory,
			Redis: RedisConfig{
				Addr:    "localhost:6379",
				Prefix:  "flowgraph:",
				LockTTL: 30 * time.Second,
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		MCP: MCPConfig{
			Transport: "stdio",
			Port:      8081,
		},
	}
}

// envKeys maps environment variables to configuration paths.
var envKeys = map[string]string{
	"FLOWGRAPH_ADDR":              "server.addr",
	"FLOWGRAPH_RUN_TIMEOUT":       "server.run_timeout",
	"FLOWGRAPH_METRICS":           "server.metrics",
	"FLOWGRAPH_DEFAULT_MAX_STEPS": "engine.default_max_steps",
	"FLOWGRAPH_STEP_LOG":          "engine.step_log",
	"FLOWGRAPH_STORE":             "store.driver",
	"FLOWGRAPH_REDIS_ADDR":        "store.redis.addr",
	"FLOWGRAPH_REDIS_PASSWORD":    "store.redis.password",
	"FLOWGRAPH_REDIS_DB":          "store.redis.db",
	"FLOWGRAPH_REDIS_TTL":         "store.redis.ttl",
	"FLOWGRAPH_ENCRYPTION_KEY":    "store.encryption_key",
	"FLOWGRAPH_FALLBACK_KEYS":     "store.fallback_keys",
	"FLOWGRAPH_REDACT_KEYS":       "store.redact_keys",
	"FLOWGRAPH_TOOLS_FILE":        "tools_file",
	"FLOWGRAPH_LOG_LEVEL":         "log.level",
	"FLOWGRAPH_LOG_FORMAT":        "log.format",
}

// regexpListEnv holds variables whose items are regular expressions, which
// may contain commas. Their items are separated by whitespace instead; write
// a literal space in a pattern as \s or \x20.
var regexpListEnv = map[string]bool{
	"FLOWGRAPH_REDACT_KEYS": true,
}

// Load builds the configuration from defaults, the optional YAML file at
// path and the process environment. A missing file is only an error when
// the path was given explicitly (required).
func Load(path string, required bool) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := cfg.ApplyYAML(data); err != nil {
				return cfg, fmt.Errorf("%s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist) && !required:
		default:
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := cfg.ApplyEnv(os.Environ()); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// ApplyYAML overlays the keys present in a YAML document.
func (c *Config) ApplyYAML(data []byte) error {
	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse config yaml: %w", err)
	}
	return c.Apply(raw)
}

// ApplyEnv overlays FLOWGRAPH_* variables from environ ("KEY=value" pairs).
func (c *Config) ApplyEnv(environ []string) error {
	raw := map[string]any{}
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		path, known := envKeys[key]
		if !known {
			continue
		}
		var v any = value
		if regexpListEnv[key] {
			v = strings.Fields(value)
		}
		setPath(raw, strings.Split(path, "."), v)
	}
	if len(raw) == 0 {
		return nil
	}
	if err := c.Apply(raw); err != nil {
		return fmt.Errorf("invalid environment: %w", err)
	}
	return nil
}

// Apply overlays a nested map onto the configuration. Strings are converted
// to the field types ("30s" to durations, "true" to bools, "a,b" to lists);
// unknown keys are rejected.
func (c *Config) Apply(raw map[string]any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           c,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(raw)
}

// Validate checks enumerations and bounds.
func (c *Config) Validate() error {
	var errs []error
	switch c.Store.Driver {
	case DriverMemory, DriverRedis:
	default:
		errs = append(errs, fmt.Errorf("store.driver must be %q or %q, got %q", DriverMemory, DriverRedis, c.Store.Driver))
	}
	switch c.Log.Format {
	case "text", "json", "pretty":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text, json or pretty, got %q", c.Log.Format))
	}
	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err)
	}
	if c.Engine.DefaultMaxSteps < 1 {
		errs = append(errs, fmt.Errorf("engine.default_max_steps must be at least 1, got %d", c.Engine.DefaultMaxSteps))
	}
	if c.Server.RunTimeout < 0 {
		errs = append(errs, fmt.Errorf("server.run_timeout must not be negative"))
	}
	switch c.MCP.Transport {
	case "stdio", "sse":
	default:
		errs = append(errs, fmt.Errorf("mcp.transport must be stdio or sse, got %q", c.MCP.Transport))
	}
	return errors.Join(errs...)
}

// LogLevel parses Log.Level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

func setPath(m map[string]any, path []string, value any) {
	for _, key := range path[:len(path)-1] {
		next, ok := m[key].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[key] = next
		}
		m = next
	}
	m[path[len(path)-1]] = value
}
