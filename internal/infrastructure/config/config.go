// Package config loads the service configuration from YAML plus environment
// variables via viper, and supports hot-reload of the tunable subset through
// an fsnotify watcher.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Defaults for the recognized options.
const (
	DefaultRunOnceTimeoutMS  = 600_000
	DefaultMaxMultiActSteps  = 10
	MaxMultiActStepsCap      = 50
	DefaultHeartbeatInterval = 60_000
	DefaultPort              = 8420
)

// Recognized embedding providers.
const (
	EmbeddingProviderHash   = "hash"
	EmbeddingProviderOllama = "ollama"
)

// Config is the application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Runtime   RuntimeConfig   `mapstructure:"runtime"`
	Heartbeat HeartbeatConfig `mapstructure:"heartbeat"`
	ObsUI     ObsUIConfig     `mapstructure:"obs_ui"`
	Workspace WorkspaceConfig `mapstructure:"workspace"`
	Memory    MemoryConfig    `mapstructure:"memory"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Safety    SafetyConfig    `mapstructure:"safety"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig holds transport-facing settings.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig binds API keys to tenant identity. When APIKey is empty, auth
// is not required and requests run anonymously.
type AuthConfig struct {
	APIKey   string `mapstructure:"api_key"`
	TenantID string `mapstructure:"tenant_id"`
}

// RuntimeConfig bounds a run.
type RuntimeConfig struct {
	RunOnceTimeoutMS int `mapstructure:"run_once_timeout_ms"`
	MaxMultiActSteps int `mapstructure:"max_multi_act_steps"`
}

// HeartbeatConfig drives the periodic self-tick.
type HeartbeatConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	IntervalMS int  `mapstructure:"interval_ms"`
}

// ObsUIConfig controls the observability store.
type ObsUIConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	DataDir       string `mapstructure:"data_dir"`
	MaxRuns       int    `mapstructure:"max_runs"`
	MaxEvents     int    `mapstructure:"max_events"`
	BindLocalhost bool   `mapstructure:"bind_localhost"`
}

// WorkspaceConfig names the roots tool-side file operations are confined to.
type WorkspaceConfig struct {
	FileRoot  string `mapstructure:"file_root"`
	RiskyMode bool   `mapstructure:"risky_mode"`
	RiskyRoot string `mapstructure:"risky_root"`
}

// MemoryConfig tunes the memory subsystem.
type MemoryConfig struct {
	VectorDimension int    `mapstructure:"vector_dimension"`
	HalfLifeMS      int64  `mapstructure:"half_life_ms"`
	StorePath       string `mapstructure:"store_path"`
	DatabasePath    string `mapstructure:"database_path"`
	// EmbeddingProvider selects how memory content is embedded:
	// "hash" (deterministic, offline) or "ollama".
	EmbeddingProvider string `mapstructure:"embedding_provider"`
	OllamaBaseURL     string `mapstructure:"ollama_base_url"`
	OllamaModel       string `mapstructure:"ollama_model"`
}

// RateLimitConfig tunes the request token bucket. Hot-reloadable.
type RateLimitConfig struct {
	Capacity     float64 `mapstructure:"capacity"`
	RefillPerSec float64 `mapstructure:"refill_per_sec"`
}

// SafetyConfig tunes the safety primitives. Hot-reloadable.
type SafetyConfig struct {
	AllowedHTTPHosts []string `mapstructure:"allowed_http_hosts"`
	ResolveDNS       bool     `mapstructure:"resolve_dns"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// envBindings maps recognized environment variables onto config keys.
var envBindings = map[string]string{
	"server.port":                "PORT",
	"auth.api_key":               "API_KEY",
	"runtime.run_once_timeout_ms": "RUN_ONCE_TIMEOUT_MS",
	"runtime.max_multi_act_steps": "MAX_MULTI_ACT_STEPS",
	"heartbeat.enabled":          "HEARTBEAT_ENABLED",
	"heartbeat.interval_ms":      "HEARTBEAT_INTERVAL_MS",
	"obs_ui.enabled":             "OBS_UI_ENABLED",
	"obs_ui.data_dir":            "OBS_UI_DATA_DIR",
	"obs_ui.max_runs":            "OBS_UI_MAX_RUNS",
	"obs_ui.max_events":          "OBS_UI_MAX_EVENTS",
	"obs_ui.bind_localhost":      "OBS_UI_BIND_LOCALHOST",
	"workspace.file_root":        "FILE_WORKSPACE_ROOT",
	"workspace.risky_mode":       "RISKY_WORKSPACE_MODE",
	"workspace.risky_root":       "RISKY_WORKSPACE_ROOT",
	"memory.embedding_provider":  "EMBEDDING_PROVIDER",
	"memory.ollama_base_url":     "OLLAMA_BASE_URL",
	"memory.ollama_model":        "OLLAMA_MODEL",
}

// Load reads configuration from the optional YAML file at path, then
// overlays the recognized environment variables, then validates.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}
	// CODEX_CWD is an accepted alias for the file workspace root.
	if err := v.BindEnv("workspace.file_root", "FILE_WORKSPACE_ROOT", "CODEX_CWD"); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.applyCaps()
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", DefaultPort)
	v.SetDefault("auth.api_key", "")
	v.SetDefault("auth.tenant_id", "")
	v.SetDefault("workspace.file_root", "")
	v.SetDefault("workspace.risky_mode", false)
	v.SetDefault("workspace.risky_root", "")
	v.SetDefault("memory.store_path", "")
	v.SetDefault("memory.half_life_ms", 0)
	v.SetDefault("runtime.run_once_timeout_ms", DefaultRunOnceTimeoutMS)
	v.SetDefault("runtime.max_multi_act_steps", DefaultMaxMultiActSteps)
	v.SetDefault("heartbeat.enabled", false)
	v.SetDefault("heartbeat.interval_ms", DefaultHeartbeatInterval)
	v.SetDefault("obs_ui.enabled", false)
	v.SetDefault("obs_ui.data_dir", "./data/obs")
	v.SetDefault("obs_ui.max_runs", 100)
	v.SetDefault("obs_ui.max_events", 500)
	v.SetDefault("obs_ui.bind_localhost", true)
	v.SetDefault("memory.vector_dimension", 128)
	v.SetDefault("memory.database_path", "./data/memories.db")
	v.SetDefault("memory.embedding_provider", EmbeddingProviderHash)
	v.SetDefault("memory.ollama_base_url", "http://localhost:11434")
	v.SetDefault("memory.ollama_model", "nomic-embed-text")
	v.SetDefault("rate_limit.capacity", 30)
	v.SetDefault("rate_limit.refill_per_sec", 1)
	v.SetDefault("safety.resolve_dns", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate rejects configurations the service must not start with.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be within [1, 65535]", c.Server.Port)
	}
	if c.Runtime.RunOnceTimeoutMS <= 0 {
		return fmt.Errorf("run_once_timeout_ms must be positive")
	}
	if c.Runtime.MaxMultiActSteps <= 0 {
		return fmt.Errorf("max_multi_act_steps must be positive")
	}
	switch c.Memory.EmbeddingProvider {
	case EmbeddingProviderHash, EmbeddingProviderOllama:
	default:
		return fmt.Errorf("unknown embedding_provider %q: must be %q or %q",
			c.Memory.EmbeddingProvider, EmbeddingProviderHash, EmbeddingProviderOllama)
	}
	if c.Auth.TenantID != "" {
		if len(c.Auth.TenantID) > 256 {
			return fmt.Errorf("tenant_id exceeds 256 characters")
		}
		if strings.Contains(c.Auth.TenantID, ":") {
			return fmt.Errorf("tenant_id must not contain ':'")
		}
	}
	return nil
}

func (c *Config) applyCaps() {
	if c.Runtime.MaxMultiActSteps > MaxMultiActStepsCap {
		c.Runtime.MaxMultiActSteps = MaxMultiActStepsCap
	}
}
