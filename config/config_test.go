package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
agent:
  name: researcher
  description: digs up facts
  instructions: "You are {{.role}}."
  max_iterations: 10
  parallel_tools: true
  max_parallel_tools: 4
  streaming: true
  tool_timeout: 30s
model:
  provider: openai
  model: gpt-4o-mini
  api_key_env: OPENAI_API_KEY
  max_tokens: 2048
  temperature: 0.2
  max_retries: 3
memory:
  backend: sqlite
  path: research.db
`

func TestParseFullDocument(t *testing.T) {
	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "researcher", cfg.Agent.Name)
	assert.Equal(t, 10, cfg.Agent.MaxIterations)
	assert.True(t, cfg.Agent.ParallelTools)
	assert.Equal(t, 4, cfg.Agent.MaxParallelTools)
	assert.True(t, cfg.Agent.Streaming)
	assert.Equal(t, 30*time.Second, cfg.Agent.ToolTimeout.Std())

	assert.Equal(t, "openai", cfg.Model.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.Model.Model)
	assert.Equal(t, 2048, cfg.Model.MaxTokens)
	assert.Equal(t, 3, cfg.Model.MaxRetries)

	assert.Equal(t, "sqlite", cfg.Memory.Backend)
	assert.Equal(t, "research.db", cfg.Memory.Path)
}

func TestParseMinimalDocument(t *testing.T) {
	cfg, err := Parse([]byte("agent:\n  name: tiny\n"))
	require.NoError(t, err)
	assert.Equal(t, "tiny", cfg.Agent.Name)
	assert.Empty(t, cfg.Model.Provider)
	assert.Empty(t, cfg.Memory.Backend)
}

func TestParseRejectsInvalidYAML(t *testing.T) {
	_, err := Parse([]byte("agent: [unbalanced"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestValidateFailures(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing agent name",
			yaml: "agent:\n  description: nameless\n",
			want: "agent.name is required",
		},
		{
			name: "negative iterations",
			yaml: "agent:\n  name: a\n  max_iterations: -1\n",
			want: "max_iterations",
		},
		{
			name: "unknown provider",
			yaml: "agent:\n  name: a\nmodel:\n  provider: cohere\n",
			want: "unknown model provider",
		},
		{
			name: "sqlite without path",
			yaml: "agent:\n  name: a\nmemory:\n  backend: sqlite\n",
			want: "memory.path is required",
		},
		{
			name: "unknown backend",
			yaml: "agent:\n  name: a\nmemory:\n  backend: redis\n",
			want: "unknown memory backend",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestParseRejectsBadDuration(t *testing.T) {
	_, err := Parse([]byte("agent:\n  name: a\n  tool_timeout: soon\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid duration")
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "researcher", cfg.Agent.Name)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestResolveAPIKey(t *testing.T) {
	assert.Equal(t, "inline", ModelConfig{APIKey: "inline", APIKeyEnv: "IGNORED"}.ResolveAPIKey())

	t.Setenv("TEST_MODEL_KEY", "from-env")
	assert.Equal(t, "from-env", ModelConfig{APIKeyEnv: "TEST_MODEL_KEY"}.ResolveAPIKey())

	assert.Empty(t, ModelConfig{}.ResolveAPIKey())
}
