package config

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// AppName is the canonical application name.
const AppName = "agentcore"

// HomeDir returns the service's configuration home: ~/.agentcore
func HomeDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "."+AppName)
}

// DefaultConfigPath is where Bootstrap writes the initial config file.
func DefaultConfigPath() string {
	return filepath.Join(HomeDir(), "config.yaml")
}

// Bootstrap ensures ~/.agentcore exists with its default content. Called
// once at startup; safe to call repeatedly — existing files are never
// overwritten.
func Bootstrap(logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	root := HomeDir()

	dirs := []string{
		root,
		filepath.Join(root, "data"),
		filepath.Join(root, "data", "obs"),
		filepath.Join(root, "data", "vectors"),
		filepath.Join(root, "logs"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create dir %s: %w", dir, err)
		}
	}

	path := DefaultConfigPath()
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.WriteFile(path, []byte(defaultConfig), 0644); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	logger.Info("wrote default configuration", zap.String("path", path))
	return nil
}

const defaultConfig = `# agentcore configuration
server:
  port: 8420

auth:
  # api_key: ""        # set to require authentication
  # tenant_id: ""      # tenant bound to the api key

runtime:
  run_once_timeout_ms: 600000
  max_multi_act_steps: 10

heartbeat:
  enabled: false
  interval_ms: 60000

obs_ui:
  enabled: false
  data_dir: ./data/obs
  max_runs: 100
  max_events: 500
  bind_localhost: true

memory:
  vector_dimension: 128
  database_path: ./data/memories.db
  embedding_provider: hash       # hash | ollama
  ollama_base_url: http://localhost:11434
  ollama_model: nomic-embed-text
  # store_path: ./data/vectors   # set to use the LanceDB store

rate_limit:
  capacity: 30
  refill_per_sec: 1

safety:
  resolve_dns: true
  allowed_http_hosts: []

log:
  level: info
  format: json
`
