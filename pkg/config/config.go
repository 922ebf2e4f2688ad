// Package config loads the runtime's layered JSON configuration (spec
// §6): built-in defaults, then a global user-scope file, then the
// project file, then environment-variable overrides. Grounded on the
// teacher's pkg/config/config.go layering order (Load/LoadFromPath,
// defaults -> user file -> project file -> env overrides -> validate)
// and its direct os.Getenv override style — kept instead of
// introducing viper, matching the teacher's own choice — but
// generalized from the teacher's sprawling conversational-agent config
// surface down to spec §6's six sections.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ProviderConfig describes one model provider entry under
// models.providers.
type ProviderConfig struct {
	Type           string  `json:"type"`
	Model          string  `json:"model"`
	APIKey         string  `json:"apiKey,omitempty"`
	BaseURL        string  `json:"baseUrl,omitempty"`
	Deployment     string  `json:"deployment,omitempty"`
	APIVersion     string  `json:"apiVersion,omitempty"`
	MaxTokens      int     `json:"maxTokens,omitempty"`
	Temperature    float64 `json:"temperature,omitempty"`
}

// RoutingConfig is models.routing.
type RoutingConfig struct {
	DefaultProvider string            `json:"defaultProvider,omitempty"`
	OfflineFirst    bool              `json:"offlineFirst,omitempty"`
	FallbackChain   []string          `json:"fallbackChain,omitempty"`
	SkillOverrides  map[string]string `json:"skillOverrides,omitempty"`
}

// ModelsConfig is the models section.
type ModelsConfig struct {
	Providers map[string]ProviderConfig `json:"providers,omitempty"`
	Routing   RoutingConfig             `json:"routing,omitempty"`
}

// RuleConfig is one entry in policy.rules.
type RuleConfig struct {
	Permission string `json:"permission"`
	Action     string `json:"action"`
}

// PolicyConfig is the policy section.
type PolicyConfig struct {
	DefaultApproval     string       `json:"defaultApproval,omitempty"`
	Rules               []RuleConfig `json:"rules,omitempty"`
	FilesystemAllowlist []string     `json:"filesystemAllowlist,omitempty"`
	CommandAllowlist    []string     `json:"commandAllowlist,omitempty"`
	DomainAllowlist     []string     `json:"domainAllowlist,omitempty"`
}

// ResourceLimits bounds tool execution (spec §5).
type ResourceLimits struct {
	MaxDiskWriteMiB int `json:"maxDiskWriteMiB,omitempty"`
	MaxCPUSeconds   int `json:"maxCpuSeconds,omitempty"`
	MaxMemoryMiB    int `json:"maxMemoryMiB,omitempty"`
}

// ToolsConfig is the tools section.
type ToolsConfig struct {
	Enabled        []string       `json:"enabled,omitempty"`
	TimeoutMs      int            `json:"timeoutMs,omitempty"`
	MaxRetries     int            `json:"maxRetries,omitempty"`
	ResourceLimits ResourceLimits `json:"resourceLimits,omitempty"`
}

// SkillsConfig is the skills section.
type SkillsConfig struct {
	InstallPaths []string `json:"installPaths,omitempty"`
	RegistryURL  string   `json:"registryUrl,omitempty"`
}

// DaemonConfig is the daemon section.
type DaemonConfig struct {
	Timezone          string `json:"timezone,omitempty"`
	WatcherDebounceMs int    `json:"watcherDebounceMs,omitempty"`
	PidFile           string `json:"pidFile,omitempty"`
}

// MCPConfig is the mcp section.
type MCPConfig struct {
	Transport     string   `json:"transport,omitempty"`
	ExposedTools  []string `json:"exposedTools,omitempty"`
	GatedTools    []string `json:"gatedTools,omitempty"`
}

// Config is the complete runtime configuration (spec §6).
type Config struct {
	Models ModelsConfig `json:"models"`
	Policy PolicyConfig `json:"policy"`
	Tools  ToolsConfig  `json:"tools"`
	Skills SkillsConfig `json:"skills"`
	Daemon DaemonConfig `json:"daemon"`
	MCP    MCPConfig    `json:"mcp"`
}

const (
	defaultTimeoutMs         = 30_000
	defaultMaxRetries        = 2
	defaultWatcherDebounceMs = 500
)

// DefaultConfig returns the built-in baseline, the first layer in
// Load's precedence order.
func DefaultConfig() *Config {
	return &Config{
		Models: ModelsConfig{
			Providers: map[string]ProviderConfig{},
			Routing:   RoutingConfig{DefaultProvider: "anthropic"},
		},
		Policy: PolicyConfig{DefaultApproval: "confirm"},
		Tools: ToolsConfig{
			TimeoutMs:  defaultTimeoutMs,
			MaxRetries: defaultMaxRetries,
		},
		Daemon: DaemonConfig{
			Timezone:          "UTC",
			WatcherDebounceMs: defaultWatcherDebounceMs,
			PidFile:           ".agent/agentd.pid",
		},
		MCP: MCPConfig{Transport: "stdio"},
	}
}

// Load resolves configuration from default locations with spec §6's
// precedence: built-in defaults, global user-scope file
// (~/.agent/config.json), project file (./.agent/config.json), then
// environment-variable overrides.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	if home, err := os.UserHomeDir(); err == nil && home != "" {
		if err := mergeFile(cfg, filepath.Join(home, ".agent", "config.json")); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: user config: %w", err)
		}
	}

	if err := mergeFile(cfg, filepath.Join(".", ".agent", "config.json")); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: project config: %w", err)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// LoadFromPath loads defaults, then the given file, then env
// overrides — for tests and CLI --config flags.
func LoadFromPath(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := mergeFile(cfg, path); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// mergeFile reads a JSON config file and merges only the fields it
// sets into cfg, leaving defaults (or earlier layers) intact for
// everything it omits.
func mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parsing json: %w", err)
	}
	var override Config
	if err := json.Unmarshal(data, &override); err != nil {
		return fmt.Errorf("parsing json: %w", err)
	}
	mergeConfigs(cfg, &override, raw)
	return nil
}

// mergeConfigs merges override into base, field by field, using raw
// to distinguish "not present in the file" from "explicitly zero"
// (the teacher's pkg/config/loader_helpers.go boolFieldSet idiom).
func mergeConfigs(base, override *Config, raw map[string]any) {
	if hasKey(raw, "models", "providers") {
		if base.Models.Providers == nil {
			base.Models.Providers = make(map[string]ProviderConfig, len(override.Models.Providers))
		}
		for name, p := range override.Models.Providers {
			base.Models.Providers[name] = p
		}
	}
	if hasKey(raw, "models", "routing", "defaultProvider") {
		base.Models.Routing.DefaultProvider = override.Models.Routing.DefaultProvider
	}
	if hasKey(raw, "models", "routing", "offlineFirst") {
		base.Models.Routing.OfflineFirst = override.Models.Routing.OfflineFirst
	}
	if hasKey(raw, "models", "routing", "fallbackChain") {
		base.Models.Routing.FallbackChain = append([]string{}, override.Models.Routing.FallbackChain...)
	}
	if hasKey(raw, "models", "routing", "skillOverrides") {
		base.Models.Routing.SkillOverrides = override.Models.Routing.SkillOverrides
	}

	if hasKey(raw, "policy", "defaultApproval") {
		base.Policy.DefaultApproval = override.Policy.DefaultApproval
	}
	if hasKey(raw, "policy", "rules") {
		base.Policy.Rules = append([]RuleConfig{}, override.Policy.Rules...)
	}
	if hasKey(raw, "policy", "filesystemAllowlist") {
		base.Policy.FilesystemAllowlist = append([]string{}, override.Policy.FilesystemAllowlist...)
	}
	if hasKey(raw, "policy", "commandAllowlist") {
		base.Policy.CommandAllowlist = append([]string{}, override.Policy.CommandAllowlist...)
	}
	if hasKey(raw, "policy", "domainAllowlist") {
		base.Policy.DomainAllowlist = append([]string{}, override.Policy.DomainAllowlist...)
	}

	if hasKey(raw, "tools", "enabled") {
		base.Tools.Enabled = append([]string{}, override.Tools.Enabled...)
	}
	if hasKey(raw, "tools", "timeoutMs") {
		base.Tools.TimeoutMs = override.Tools.TimeoutMs
	}
	if hasKey(raw, "tools", "maxRetries") {
		base.Tools.MaxRetries = override.Tools.MaxRetries
	}
	if hasKey(raw, "tools", "resourceLimits") {
		base.Tools.ResourceLimits = override.Tools.ResourceLimits
	}

	if hasKey(raw, "skills", "installPaths") {
		base.Skills.InstallPaths = append([]string{}, override.Skills.InstallPaths...)
	}
	if hasKey(raw, "skills", "registryUrl") {
		base.Skills.RegistryURL = override.Skills.RegistryURL
	}

	if hasKey(raw, "daemon", "timezone") {
		base.Daemon.Timezone = override.Daemon.Timezone
	}
	if hasKey(raw, "daemon", "watcherDebounceMs") {
		base.Daemon.WatcherDebounceMs = override.Daemon.WatcherDebounceMs
	}
	if hasKey(raw, "daemon", "pidFile") {
		base.Daemon.PidFile = override.Daemon.PidFile
	}

	if hasKey(raw, "mcp", "transport") {
		base.MCP.Transport = override.MCP.Transport
	}
	if hasKey(raw, "mcp", "exposedTools") {
		base.MCP.ExposedTools = append([]string{}, override.MCP.ExposedTools...)
	}
	if hasKey(raw, "mcp", "gatedTools") {
		base.MCP.GatedTools = append([]string{}, override.MCP.GatedTools...)
	}
}

func hasKey(raw map[string]any, path ...string) bool {
	if raw == nil || len(path) == 0 {
		return false
	}
	current := any(raw)
	for _, key := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return false
		}
		val, ok := m[key]
		if !ok {
			return false
		}
		current = val
	}
	return true
}

// applyEnvOverrides applies spec §6's fixed environment variable
// mappings, coercing boolean-like and numeric-like values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("AZURE_API_KEY"); v != "" {
		setProviderField(cfg, "azure", func(p *ProviderConfig) { p.APIKey = v })
	}
	if v := os.Getenv("AZURE_API_BASE"); v != "" {
		setProviderField(cfg, "azure", func(p *ProviderConfig) { p.BaseURL = v })
	}
	if v := os.Getenv("AZURE_DEPLOYMENT_NAME"); v != "" {
		setProviderField(cfg, "azure", func(p *ProviderConfig) { p.Deployment = v })
	}
	if v := os.Getenv("AZURE_API_VERSION"); v != "" {
		setProviderField(cfg, "azure", func(p *ProviderConfig) { p.APIVersion = v })
	}
	if v := os.Getenv("AGENT_OPENAI_API_KEY"); v != "" {
		setProviderField(cfg, "openai", func(p *ProviderConfig) { p.APIKey = v })
	}
	if v := os.Getenv("AGENT_ANTHROPIC_API_KEY"); v != "" {
		setProviderField(cfg, "anthropic", func(p *ProviderConfig) { p.APIKey = v })
	}
	if v := os.Getenv("AGENT_DEFAULT_PROVIDER"); v != "" {
		cfg.Models.Routing.DefaultProvider = v
	}
	if v := strings.TrimSpace(os.Getenv("AGENT_OFFLINE_FIRST")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Models.Routing.OfflineFirst = b
		}
	}
}

func setProviderField(cfg *Config, name string, set func(*ProviderConfig)) {
	if cfg.Models.Providers == nil {
		cfg.Models.Providers = make(map[string]ProviderConfig)
	}
	p := cfg.Models.Providers[name]
	set(&p)
	cfg.Models.Providers[name] = p
}
