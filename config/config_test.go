package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_FileAndDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("CHATBRIDGE_API_KEY", "")
	path := writeConfig(t, `
llm:
  api_key: sk-test
  model: gpt-3.5-turbo
persona:
  ai_name: SampleBot
  template: sample_template
  allowed_users:
    SampleUser: 123456789
runtime:
  dedup_ttl: 30s
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, 512, cfg.LLM.MaxTokens)
	assert.Equal(t, 1.0, cfg.LLM.Temperature)
	assert.Equal(t, 16384, cfg.Memory.MaxTokens)
	assert.Equal(t, "gpt-3.5-turbo", cfg.Memory.Model)
	assert.Equal(t, 0.4, cfg.Memory.Temperature)
	assert.Equal(t, 0.9, cfg.Memory.TopP)
	assert.Equal(t, 30*time.Second, cfg.Runtime.DedupTTL)
	assert.Equal(t, "./logs/samplebot/memories.json", cfg.Store.URL)
	assert.True(t, cfg.IsAllowed("123456789"))
	assert.False(t, cfg.IsAllowed("1"))
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
llm:
  api_key: from-file
  model: gpt-4o
persona:
  ai_name: Sage
memory:
  model: gpt-4o-mini
`)
	t.Setenv("CHATBRIDGE_API_KEY", "from-env")
	t.Setenv("CHATBRIDGE_PROVIDER", "groq")
	t.Setenv("CHATBRIDGE_WORKERS", "9")
	t.Setenv("CHATBRIDGE_DEBUG", "true")
	t.Setenv("CHATBRIDGE_STORE_KIND", "sqlite")
	t.Setenv("CHATBRIDGE_STORE_DSN", "/tmp/memories.db")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.LLM.APIKey)
	assert.Equal(t, "groq", cfg.LLM.Provider)
	assert.Equal(t, int64(9), cfg.Runtime.Workers)
	assert.True(t, cfg.Runtime.Debug)
	assert.False(t, cfg.Runtime.EchoOnly)
	assert.Equal(t, "gpt-4o-mini", cfg.Memory.Model)
	assert.Equal(t, "sqlite", cfg.Store.Kind)
	assert.Empty(t, cfg.Store.URL)
	assert.True(t, cfg.IsAllowed("anyone"))
}

func TestLoad_EchoOnlyIndependentOfDebug(t *testing.T) {
	path := writeConfig(t, `
llm:
  api_key: k
  model: gpt-4o
persona:
  ai_name: Sage
runtime:
  echo_only: true
`)
	t.Setenv("CHATBRIDGE_DEBUG", "")
	t.Setenv("CHATBRIDGE_ECHO_ONLY", "")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Runtime.EchoOnly)
	assert.False(t, cfg.Runtime.Debug)

	t.Setenv("CHATBRIDGE_ECHO_ONLY", "false")
	t.Setenv("CHATBRIDGE_DEBUG", "true")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.Runtime.EchoOnly)
	assert.True(t, cfg.Runtime.Debug)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_key is required")
	assert.Contains(t, err.Error(), "model is required")
	assert.Contains(t, err.Error(), "ai_name is required")

	cfg.LLM.APIKey = "k"
	cfg.LLM.Model = "m"
	cfg.Persona.AIName = "Sage"
	require.NoError(t, cfg.Validate())

	cfg.LLM.Provider = "GPTAssistantHandler"
	cfg.Store.Kind = "pickle"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown provider "GPTAssistantHandler"`)
	assert.Contains(t, err.Error(), `unknown store kind "pickle"`)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
