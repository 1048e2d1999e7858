// Package config handles FleetMind configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/fleetmind/config.yaml, /etc/fleetmind/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "fleetmind", "config.yaml"))
	}

	paths = append(paths, "/etc/fleetmind/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all FleetMind configuration.
type Config struct {
	Listen   ListenConfig  `yaml:"listen"`
	MCP      MCPConfig     `yaml:"mcp"`
	Oracle   OracleConfig  `yaml:"oracle"`
	Gemini   GeminiConfig  `yaml:"gemini"`
	Ollama   OllamaConfig  `yaml:"ollama"`
	Agent    AgentConfig   `yaml:"agent"`
	Archive  ArchiveConfig `yaml:"archive"`
	LogLevel string        `yaml:"log_level"`
}

// ListenConfig defines the API server settings.
type ListenConfig struct {
	Address string `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port    int    `yaml:"port"`
}

// MCPConfig defines the tool server connection.
type MCPConfig struct {
	// URL is the base URL of the MCP server.
	URL string `yaml:"url"`
	// APIKey authenticates with the server. SSE transports pass it as a
	// query parameter; HTTP transports send it as a Bearer token.
	APIKey string `yaml:"api_key"`
	// Transport selects the wire protocol: "sse" (default) or "http".
	Transport string `yaml:"transport"`
}

// OracleConfig selects the reasoning model provider.
type OracleConfig struct {
	// Provider is "gemini" (default) or "ollama".
	Provider string `yaml:"provider"`
	// TimeoutSec bounds a single generation call. Reasoning latency is
	// expected to be multi-second, so the default is generous (120).
	TimeoutSec int `yaml:"timeout_sec"`
}

// GeminiConfig defines Gemini API settings.
type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"` // default: gemini-2.0-flash-exp
}

// OllamaConfig defines the local Ollama fallback provider.
type OllamaConfig struct {
	URL   string `yaml:"url"` // default: http://localhost:11434
	Model string `yaml:"model"`
}

// AgentConfig tunes the agentic loop and conversation memory.
type AgentConfig struct {
	// MaxToolCalls caps side-effecting tool invocations per turn.
	MaxToolCalls int `yaml:"max_tool_calls"`
	// CompactionThreshold is the history length that triggers compaction.
	CompactionThreshold int `yaml:"compaction_threshold"`
	// KeepRecent is how many messages survive a compaction.
	KeepRecent int `yaml:"keep_recent"`
	// KeepPreferencesOnClear keeps learned preferences across a session clear.
	KeepPreferencesOnClear bool `yaml:"keep_preferences_on_clear"`
}

// ArchiveConfig defines the SQLite turn archive.
type ArchiveConfig struct {
	// Path is the database file. Empty disables archiving.
	Path string `yaml:"path"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		Listen: ListenConfig{Port: 7860},
		MCP: MCPConfig{
			Transport: "sse",
		},
		Oracle: OracleConfig{
			Provider:   "gemini",
			TimeoutSec: 120,
		},
		Gemini: GeminiConfig{
			Model: "gemini-2.0-flash-exp",
		},
		Ollama: OllamaConfig{
			URL: "http://localhost:11434",
		},
		Agent: AgentConfig{
			MaxToolCalls:           5,
			CompactionThreshold:    20,
			KeepRecent:             6,
			KeepPreferencesOnClear: true,
		},
	}
}

// ApplyEnv overlays well-known environment variables onto the config.
// Environment wins over file values so containerized deployments can
// inject secrets without editing YAML. Call after Load (or on Default
// when no config file exists).
func (c *Config) ApplyEnv() {
	if v := os.Getenv("MCP_SERVER_URL"); v != "" {
		c.MCP.URL = v
	}
	if v := os.Getenv("MCP_API_KEY"); v != "" {
		c.MCP.APIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.Gemini.APIKey = v
	}
	if v := os.Getenv("GEMINI_MODEL"); v != "" {
		c.Gemini.Model = v
	}
	if v := os.Getenv("MAX_TOOL_CALLS_PER_TURN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Agent.MaxToolCalls = n
		}
	}
}

// Validate checks for missing required settings and returns one message
// per issue. An empty slice means the configuration is usable.
func (c *Config) Validate() []string {
	var issues []string

	if c.MCP.URL == "" {
		issues = append(issues, "mcp.url is not configured")
	}
	switch c.MCP.Transport {
	case "", "sse", "http":
	default:
		issues = append(issues, fmt.Sprintf("mcp.transport %q is not supported (use sse or http)", c.MCP.Transport))
	}

	switch c.Oracle.Provider {
	case "", "gemini":
		if c.Gemini.APIKey == "" {
			issues = append(issues, "gemini.api_key is not configured")
		}
	case "ollama":
		if c.Ollama.Model == "" {
			issues = append(issues, "ollama.model is not configured")
		}
	default:
		issues = append(issues, fmt.Sprintf("oracle.provider %q is not supported (use gemini or ollama)", c.Oracle.Provider))
	}

	return issues
}
