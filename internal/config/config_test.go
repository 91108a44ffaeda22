package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, 8501, cfg.Gateway.Port)
	assert.Equal(t, "loopback", cfg.Gateway.Bind)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-3.5-turbo", cfg.LLM.Model)
	assert.True(t, cfg.LLM.Streaming())
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Transcript.Enabled)
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, 8501, cfg.Gateway.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadValidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
gateway:
  port: 9999
  bind: lan
  allowedOrigins:
    - http://localhost:3000
llm:
  provider: ollama
  model: llama3
  baseUrl: http://localhost:11434
  stream: false
logging:
  level: debug
  consoleStyle: json
transcript:
  enabled: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Gateway.Port)
	assert.Equal(t, "lan", cfg.Gateway.Bind)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Gateway.AllowedOrigins)
	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, "llama3", cfg.LLM.Model)
	assert.Equal(t, "http://localhost:11434", cfg.LLM.BaseURL)
	assert.False(t, cfg.LLM.Streaming())
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.ConsoleStyle)
	assert.True(t, cfg.Transcript.Enabled)
}

func TestLoadPartialYAMLAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("gateway:\n  bind: auto\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8501, cfg.Gateway.Port)
	assert.Equal(t, "auto", cfg.Gateway.Bind)
	assert.Equal(t, "gpt-3.5-turbo", cfg.LLM.Model)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("gateway: [unclosed"), 0o600))

	_, err := Load(path)
	var ce *ConfigError
	assert.ErrorAs(t, err, &ce)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("BREAKTHIS_GATEWAY_PORT", "7000")
	t.Setenv("BREAKTHIS_GATEWAY_BIND", "lan")
	t.Setenv("BREAKTHIS_LOG_LEVEL", "DEBUG")
	t.Setenv("BREAKTHIS_LLM_MODEL", "gpt-4o-mini")
	t.Setenv("BREAKTHIS_LLM_PROVIDER", "Ollama")
	t.Setenv("BREAKTHIS_LLM_BASE_URL", "http://gpu-box:11434")
	t.Setenv("BREAKTHIS_TRANSCRIPT", "1")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, "http://gpu-box:11434", cfg.LLM.BaseURL)
	assert.True(t, cfg.Transcript.Enabled)
	assert.Equal(t, 7000, cfg.Gateway.Port)
	assert.Equal(t, "lan", cfg.Gateway.Bind)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
}

func TestLoadEnvOverridesIgnoreGarbage(t *testing.T) {
	t.Setenv("BREAKTHIS_GATEWAY_PORT", "eighty")
	t.Setenv("BREAKTHIS_TRANSCRIPT", "sometimes")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultPort, cfg.Gateway.Port)
	assert.False(t, cfg.Transcript.Enabled)
}

func TestLoadExpandsAPIKey(t *testing.T) {
	t.Setenv("MY_DEMO_KEY", "sk-from-env")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm:\n  apiKey: ${MY_DEMO_KEY}\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-from-env", cfg.LLM.APIKey)
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("FOO_SET", "bar")
	assert.Equal(t, "x-bar-y", expandEnvVars("x-${FOO_SET}-y"))
	assert.Equal(t, "${FOO_UNSET_FOR_TEST}", expandEnvVars("${FOO_UNSET_FOR_TEST}"))
	assert.Equal(t, "plain", expandEnvVars("plain"))
}

func TestRequireCredential(t *testing.T) {
	t.Run("config key wins", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "sk-env")
		key, err := RequireCredential(LLMConfig{Provider: "openai", APIKey: "sk-config"})
		require.NoError(t, err)
		assert.Equal(t, "sk-config", key)
	})

	t.Run("falls back to environment", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "sk-env")
		key, err := RequireCredential(LLMConfig{Provider: "openai"})
		require.NoError(t, err)
		assert.Equal(t, "sk-env", key)
	})

	t.Run("unexpanded reference is ignored", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "")
		_, err := RequireCredential(LLMConfig{Provider: "openai", APIKey: "${NOT_SET_ANYWHERE}"})
		assert.ErrorIs(t, err, ErrMissingCredential)
	})

	t.Run("missing key fails", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "")
		_, err := RequireCredential(LLMConfig{Provider: "openai"})
		assert.ErrorIs(t, err, ErrMissingCredential)
	})

	t.Run("ollama needs no key", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "")
		_, err := RequireCredential(LLMConfig{Provider: "ollama"})
		assert.NoError(t, err)
	})
}

func TestLoadDotEnv(t *testing.T) {
	t.Setenv("BREAKTHIS_DOTENV_PROBE", "old")
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("BREAKTHIS_DOTENV_PROBE=new\n"), 0o600))

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "new", os.Getenv("BREAKTHIS_DOTENV_PROBE"))
}

func TestLoadDotEnvMissingFile(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "absent.env")))
}

func TestRawRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	raw, err := LoadRaw(path)
	require.NoError(t, err)
	assert.Empty(t, raw)

	SetValueAtPath(raw, []string{"llm", "model"}, "gpt-4o-mini")
	require.NoError(t, SaveRaw(path, raw))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
}
