package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Server.Port)
	assert.Equal(t, DefaultRunOnceTimeoutMS, cfg.Runtime.RunOnceTimeoutMS)
	assert.Equal(t, DefaultMaxMultiActSteps, cfg.Runtime.MaxMultiActSteps)
	assert.False(t, cfg.Heartbeat.Enabled)
	assert.Empty(t, cfg.Auth.APIKey)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("API_KEY", "sekrit")
	t.Setenv("RUN_ONCE_TIMEOUT_MS", "1234")
	t.Setenv("MAX_MULTI_ACT_STEPS", "7")
	t.Setenv("OBS_UI_ENABLED", "true")
	t.Setenv("PORT", "9000")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sekrit", cfg.Auth.APIKey)
	assert.Equal(t, 1234, cfg.Runtime.RunOnceTimeoutMS)
	assert.Equal(t, 7, cfg.Runtime.MaxMultiActSteps)
	assert.True(t, cfg.ObsUI.Enabled)
	assert.Equal(t, 9000, cfg.Server.Port)
}

func TestLoad_EmbeddingProviderSelection(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, EmbeddingProviderHash, cfg.Memory.EmbeddingProvider)

	t.Setenv("EMBEDDING_PROVIDER", "ollama")
	t.Setenv("OLLAMA_BASE_URL", "http://embed-host:11434")
	t.Setenv("OLLAMA_MODEL", "mxbai-embed-large")

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, EmbeddingProviderOllama, cfg.Memory.EmbeddingProvider)
	assert.Equal(t, "http://embed-host:11434", cfg.Memory.OllamaBaseURL)
	assert.Equal(t, "mxbai-embed-large", cfg.Memory.OllamaModel)

	t.Setenv("EMBEDDING_PROVIDER", "word2vec")
	_, err = Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding_provider")
}

func TestLoad_CodexCwdAlias(t *testing.T) {
	t.Setenv("CODEX_CWD", "/tmp/workspace")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/workspace", cfg.Workspace.FileRoot)
}

func TestLoad_MaxMultiActStepsCapped(t *testing.T) {
	t.Setenv("MAX_MULTI_ACT_STEPS", "200")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, MaxMultiActStepsCap, cfg.Runtime.MaxMultiActSteps)
}

func TestLoad_InvalidPortRejected(t *testing.T) {
	t.Setenv("PORT", "70000")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port")

	t.Setenv("PORT", "0")
	_, err = Load("")
	require.Error(t, err)
}

func TestLoad_TenantIDValidation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("auth:\n  tenant_id: \"bad:tenant\"\n"), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tenant_id")
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9999
rate_limit:
  capacity: 3
  refill_per_sec: 1
safety:
  allowed_http_hosts: ["internal.example.com"]
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.InDelta(t, 3.0, cfg.RateLimit.Capacity, 1e-9)
	assert.Equal(t, []string{"internal.example.com"}, cfg.Safety.AllowedHTTPHosts)
}
