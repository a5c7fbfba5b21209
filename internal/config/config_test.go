package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uiforge/internal/types"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"UIFORGE_PROVIDER", "GROQ_API_KEY", "GROQ_MODEL_NAME", "GEMINI_API_KEY",
		"GEMINI_MODEL_NAME", "UIFORGE_MODEL", "UIFORGE_DB", "UIFORGE_ADDR", "UIFORGE_PUBLIC_URL",
	} {
		t.Setenv(k, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, ProviderGroq, cfg.LLM.Provider)
	assert.Empty(t, cfg.LLM.Model)
	assert.Equal(t, 3, cfg.GetMaxAttempts())
	assert.Equal(t, 1500*time.Millisecond, cfg.GetRetryDelay())
	assert.Equal(t, 120*time.Second, cfg.GetLLMTimeout())
	assert.False(t, cfg.Pipeline.Optimize)
	assert.Contains(t, cfg.Server.AllowedOrigins, "http://localhost:3000")
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_ParsesYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "uiforge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
llm:
  provider: groq
  api_key: file-key
  model: llama-3.3-70b-versatile
pipeline:
  max_attempts: 5
  retry_delay: 2s
  optimize: true
server:
  addr: ":9000"
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "file-key", cfg.LLM.APIKey)
	assert.Equal(t, "llama-3.3-70b-versatile", cfg.LLM.Model)
	assert.Equal(t, 5, cfg.GetMaxAttempts())
	assert.Equal(t, 2*time.Second, cfg.GetRetryDelay())
	assert.True(t, cfg.Pipeline.Optimize)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	// Untouched sections keep defaults.
	assert.Equal(t, "data/uiforge.db", cfg.Store.DatabasePath)
	require.NoError(t, cfg.Validate())
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm: [unclosed"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "uiforge.yaml")

	cfg := DefaultConfig()
	cfg.LLM.Model = "llama3-70b-8192"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestEnvOverrides(t *testing.T) {
	t.Run("groq credentials and model", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("GROQ_API_KEY", "gsk-test")
		t.Setenv("GROQ_MODEL_NAME", "llama3-8b-8192")
		t.Setenv("GEMINI_API_KEY", "should-not-apply")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "gsk-test", cfg.LLM.APIKey)
		assert.Equal(t, "llama3-8b-8192", cfg.LLM.Model)
	})

	t.Run("gemini provider", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("UIFORGE_PROVIDER", "Gemini")
		t.Setenv("GEMINI_API_KEY", "gem-key")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, ProviderGemini, cfg.LLM.Provider)
		assert.Equal(t, "gem-key", cfg.LLM.APIKey)
		assert.Equal(t, DefaultGeminiModel, cfg.LLM.Model)
	})

	t.Run("UIFORGE_MODEL wins", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("GROQ_MODEL_NAME", "a")
		t.Setenv("UIFORGE_MODEL", "b")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "b", cfg.LLM.Model)
	})

	t.Run("store and server", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("UIFORGE_DB", "/tmp/x.db")
		t.Setenv("UIFORGE_ADDR", "127.0.0.1:1234")
		t.Setenv("UIFORGE_PUBLIC_URL", "https://ui.example.com")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "/tmp/x.db", cfg.Store.DatabasePath)
		assert.Equal(t, "127.0.0.1:1234", cfg.Server.Addr)
		assert.Equal(t, "https://ui.example.com", cfg.Store.PublicBaseURL)
	})
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing model", func(c *Config) { c.LLM.APIKey = "k" }},
		{"missing key", func(c *Config) { c.LLM.Model = "m" }},
		{"bad provider", func(c *Config) { c.LLM.Provider = "openai"; c.LLM.Model = "m"; c.LLM.APIKey = "k" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, types.ErrConfiguration)
		})
	}

	cfg := DefaultConfig()
	cfg.LLM.Model = "m"
	cfg.LLM.APIKey = "k"
	assert.NoError(t, cfg.Validate())
}

func TestDurationFallbacks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LLM.Timeout = "soon"
	cfg.Pipeline.RetryDelay = "-1s"
	cfg.Pipeline.MaxAttempts = 0
	cfg.Server.ShutdownTimeout = ""

	assert.Equal(t, 120*time.Second, cfg.GetLLMTimeout())
	assert.Equal(t, 1500*time.Millisecond, cfg.GetRetryDelay())
	assert.Equal(t, 3, cfg.GetMaxAttempts())
	assert.Equal(t, 30*time.Second, cfg.GetShutdownTimeout())
}

func TestLoggingOptions(t *testing.T) {
	opts := LoggingConfig{Level: "debug", Format: "JSON", Dir: "logs"}.Options()
	assert.True(t, opts.JSONFormat)
	assert.Equal(t, "debug", opts.Level)
	assert.Equal(t, "logs", opts.Dir)
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "uiforge.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: info\n"), 0644))

	reloaded := make(chan *Config, 4)
	w, err := NewWatcher(path, func(c *Config) { reloaded <- c })
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: debug\n"), 0644))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, "debug", cfg.Logging.Level)
	case <-time.After(5 * time.Second):
		t.Fatal("config was not reloaded")
	}
}
