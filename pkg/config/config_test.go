package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigHasBaselineValues(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "anthropic", cfg.Models.Routing.DefaultProvider)
	assert.Equal(t, "confirm", cfg.Policy.DefaultApproval)
	assert.Equal(t, defaultTimeoutMs, cfg.Tools.TimeoutMs)
	assert.Equal(t, "UTC", cfg.Daemon.Timezone)
	assert.Equal(t, "stdio", cfg.MCP.Transport)
}

func TestLoadFromPathMergesOnlyPresentFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := `{"policy":{"defaultApproval":"auto"},"tools":{"timeoutMs":5000}}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	assert.Equal(t, "auto", cfg.Policy.DefaultApproval)
	assert.Equal(t, 5000, cfg.Tools.TimeoutMs)
	// fields absent from the override file keep their defaults
	assert.Equal(t, "anthropic", cfg.Models.Routing.DefaultProvider)
	assert.Equal(t, "UTC", cfg.Daemon.Timezone)
	assert.Equal(t, defaultMaxRetries, cfg.Tools.MaxRetries)
}

func TestLoadFromPathMergesProviders(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := `{"models":{"providers":{"openai":{"type":"openai","model":"gpt-5"}}}}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	require.Contains(t, cfg.Models.Providers, "openai")
	assert.Equal(t, "gpt-5", cfg.Models.Providers["openai"].Model)
}

func TestLoadFromPathRejectsMissingFile(t *testing.T) {
	_, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("AZURE_API_KEY", "azure-key")
	t.Setenv("AZURE_API_BASE", "https://example.azure.com")
	t.Setenv("AGENT_ANTHROPIC_API_KEY", "anthropic-key")
	t.Setenv("AGENT_DEFAULT_PROVIDER", "azure")
	t.Setenv("AGENT_OFFLINE_FIRST", "true")

	cfg := DefaultConfig()
	applyEnvOverrides(cfg)

	assert.Equal(t, "azure-key", cfg.Models.Providers["azure"].APIKey)
	assert.Equal(t, "https://example.azure.com", cfg.Models.Providers["azure"].BaseURL)
	assert.Equal(t, "anthropic-key", cfg.Models.Providers["anthropic"].APIKey)
	assert.Equal(t, "azure", cfg.Models.Routing.DefaultProvider)
	assert.True(t, cfg.Models.Routing.OfflineFirst)
}

func TestHasKeyDistinguishesAbsentFromZeroValue(t *testing.T) {
	var raw map[string]any
	require.NoError(t, json.Unmarshal([]byte(`{"policy":{"defaultApproval":""}}`), &raw))

	assert.True(t, hasKey(raw, "policy", "defaultApproval"))
	assert.False(t, hasKey(raw, "policy", "rules"))
	assert.False(t, hasKey(raw, "tools", "timeoutMs"))
}

func TestConfigRoundTripsThroughJSON(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Policy.Rules = []RuleConfig{{Permission: "fs.write", Action: "confirm"}}

	data, err := json.Marshal(cfg)
	require.NoError(t, err)

	var decoded Config
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, cfg.Policy.Rules, decoded.Policy.Rules)
}
