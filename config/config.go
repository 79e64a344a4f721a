// Package config loads agent definitions from YAML files, so deployments can
// declare agent identity, model selection and loop limits outside of code.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration decodes YAML scalars like "30s" or "1m" via time.ParseDuration.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// AgentConfig declares one agent.
type AgentConfig struct {
	Name             string   `yaml:"name"`
	Description      string   `yaml:"description,omitempty"`
	Instructions     string   `yaml:"instructions,omitempty"`
	MaxIterations    int      `yaml:"max_iterations,omitempty"`
	ParallelTools    bool     `yaml:"parallel_tools,omitempty"`
	MaxParallelTools int      `yaml:"max_parallel_tools,omitempty"`
	Streaming        bool     `yaml:"streaming,omitempty"`
	ToolTimeout      Duration `yaml:"tool_timeout,omitempty"`
}

// ModelConfig selects a provider and model.
type ModelConfig struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model,omitempty"`
	APIKey      string  `yaml:"api_key,omitempty"`
	APIKeyEnv   string  `yaml:"api_key_env,omitempty"`
	MaxTokens   int     `yaml:"max_tokens,omitempty"`
	Temperature float64 `yaml:"temperature,omitempty"`
	MaxRetries  int     `yaml:"max_retries,omitempty"`
}

// MemoryConfig selects a memory backend.
type MemoryConfig struct {
	// Backend is "inmemory" (default) or "sqlite".
	Backend string `yaml:"backend,omitempty"`
	// Path is the database file for the sqlite backend.
	Path string `yaml:"path,omitempty"`
}

// Config is the root document.
type Config struct {
	Agent  AgentConfig  `yaml:"agent"`
	Model  ModelConfig  `yaml:"model"`
	Memory MemoryConfig `yaml:"memory,omitempty"`
}

// Load reads and parses a YAML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required fields and cross-field constraints.
func (c *Config) Validate() error {
	if c.Agent.Name == "" {
		return fmt.Errorf("agent.name is required")
	}
	if c.Agent.MaxIterations < 0 {
		return fmt.Errorf("agent.max_iterations must not be negative")
	}
	switch c.Model.Provider {
	case "", "anthropic", "openai", "mock":
	default:
		return fmt.Errorf("unknown model provider %q", c.Model.Provider)
	}
	switch c.Memory.Backend {
	case "", "inmemory":
	case "sqlite":
		if c.Memory.Path == "" {
			return fmt.Errorf("memory.path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("unknown memory backend %q", c.Memory.Backend)
	}
	return nil
}

// ResolveAPIKey returns the configured key, falling back to the named
// environment variable.
func (m ModelConfig) ResolveAPIKey() string {
	if m.APIKey != "" {
		return m.APIKey
	}
	if m.APIKeyEnv != "" {
		return os.Getenv(m.APIKeyEnv)
	}
	return ""
}
