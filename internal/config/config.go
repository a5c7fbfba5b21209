package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"uiforge/internal/logging"
	"uiforge/internal/types"
)

// Config holds all uiforge configuration.
type Config struct {
	// Core settings
	Name string `yaml:"name"`

	// Completion service
	LLM LLMConfig `yaml:"llm"`

	// Stage retry policy and optimization default
	Pipeline PipelineConfig `yaml:"pipeline"`

	// HTTP front end
	Server ServerConfig `yaml:"server"`

	// Artifact and trace persistence
	Store StoreConfig `yaml:"store"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the completion client.
type LLMConfig struct {
	Provider string `yaml:"provider"` // groq, gemini
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"`
}

// PipelineConfig configures stage execution.
type PipelineConfig struct {
	MaxAttempts int    `yaml:"max_attempts"`
	RetryDelay  string `yaml:"retry_delay"`
	Optimize    bool   `yaml:"optimize"`
}

// ServerConfig configures the HTTP front end.
type ServerConfig struct {
	Addr              string   `yaml:"addr"`
	AllowedOrigins    []string `yaml:"allowed_origins"`
	MaxConcurrentRuns int      `yaml:"max_concurrent_runs"`
	ShutdownTimeout   string   `yaml:"shutdown_timeout"`
}

// StoreConfig configures the SQLite store.
type StoreConfig struct {
	DatabasePath  string `yaml:"database_path"`
	PublicBaseURL string `yaml:"public_base_url"`
	TraceCalls    bool   `yaml:"trace_calls"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level"`  // debug, info, warn, error
	Format     string          `yaml:"format"` // json, text
	Dir        string          `yaml:"dir"`
	Categories map[string]bool `yaml:"categories,omitempty"`
}

// Options converts the section into logging options.
func (l LoggingConfig) Options() logging.Options {
	return logging.Options{
		Dir:        l.Dir,
		Level:      l.Level,
		JSONFormat: strings.EqualFold(l.Format, "json"),
		Categories: l.Categories,
	}
}

// Default provider endpoints and models.
const (
	ProviderGroq   = "groq"
	ProviderGemini = "gemini"

	DefaultGroqBaseURL = "https://api.groq.com/openai/v1"
	DefaultGeminiModel = "gemini-2.5-flash"
)

// ValidProviders lists all supported completion providers.
var ValidProviders = []string{ProviderGroq, ProviderGemini}

// DefaultConfig returns the default configuration. The Groq model has no
// default; it must come from the file or GROQ_MODEL_NAME.
func DefaultConfig() *Config {
	return &Config{
		Name: "uiforge",

		LLM: LLMConfig{
			Provider: ProviderGroq,
			BaseURL:  DefaultGroqBaseURL,
			Timeout:  "120s",
		},

		Pipeline: PipelineConfig{
			MaxAttempts: 3,
			RetryDelay:  "1500ms",
			Optimize:    false,
		},

		Server: ServerConfig{
			Addr: ":8000",
			AllowedOrigins: []string{
				"http://localhost",
				"http://localhost:3000",
			},
			MaxConcurrentRuns: 4,
			ShutdownTimeout:   "30s",
		},

		Store: StoreConfig{
			DatabasePath:  "data/uiforge.db",
			PublicBaseURL: "http://localhost:8000",
			TraceCalls:    true,
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. Environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if p := os.Getenv("UIFORGE_PROVIDER"); p != "" {
		c.LLM.Provider = strings.ToLower(p)
	}

	// Provider-specific credentials and models only apply to the selected
	// provider so a stray GEMINI_API_KEY never lands in a Groq request.
	switch c.LLM.Provider {
	case ProviderGemini:
		if key := os.Getenv("GEMINI_API_KEY"); key != "" {
			c.LLM.APIKey = key
		}
		if m := os.Getenv("GEMINI_MODEL_NAME"); m != "" {
			c.LLM.Model = m
		}
		if c.LLM.Model == "" {
			c.LLM.Model = DefaultGeminiModel
		}
	default:
		if key := os.Getenv("GROQ_API_KEY"); key != "" {
			c.LLM.APIKey = key
		}
		if m := os.Getenv("GROQ_MODEL_NAME"); m != "" {
			c.LLM.Model = m
		}
	}

	if m := os.Getenv("UIFORGE_MODEL"); m != "" {
		c.LLM.Model = m
	}

	if path := os.Getenv("UIFORGE_DB"); path != "" {
		c.Store.DatabasePath = path
	}
	if addr := os.Getenv("UIFORGE_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if u := os.Getenv("UIFORGE_PUBLIC_URL"); u != "" {
		c.Store.PublicBaseURL = u
	}
}

// GetLLMTimeout returns the completion timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

// GetRetryDelay returns the fixed delay between stage attempts.
func (c *Config) GetRetryDelay() time.Duration {
	d, err := time.ParseDuration(c.Pipeline.RetryDelay)
	if err != nil || d < 0 {
		return 1500 * time.Millisecond
	}
	return d
}

// GetMaxAttempts returns the total attempt budget per stage.
func (c *Config) GetMaxAttempts() int {
	if c.Pipeline.MaxAttempts < 1 {
		return 3
	}
	return c.Pipeline.MaxAttempts
}

// GetShutdownTimeout returns the graceful shutdown window for the server.
func (c *Config) GetShutdownTimeout() time.Duration {
	d, err := time.ParseDuration(c.Server.ShutdownTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// Validate validates the configuration. Missing credentials or model
// identifier are reported as types.ErrConfiguration.
func (c *Config) Validate() error {
	validProvider := false
	for _, p := range ValidProviders {
		if c.LLM.Provider == p {
			validProvider = true
			break
		}
	}
	if !validProvider {
		return fmt.Errorf("%w: invalid LLM provider: %s (valid: %v)", types.ErrConfiguration, c.LLM.Provider, ValidProviders)
	}

	if strings.TrimSpace(c.LLM.Model) == "" {
		return fmt.Errorf("%w: model identifier not configured (set llm.model, UIFORGE_MODEL or %s)", types.ErrConfiguration, c.modelEnvVar())
	}
	if strings.TrimSpace(c.LLM.APIKey) == "" {
		return fmt.Errorf("%w: API key not configured (set llm.api_key or %s)", types.ErrConfiguration, c.keyEnvVar())
	}

	return nil
}

func (c *Config) modelEnvVar() string {
	if c.LLM.Provider == ProviderGemini {
		return "GEMINI_MODEL_NAME"
	}
	return "GROQ_MODEL_NAME"
}

func (c *Config) keyEnvVar() string {
	if c.LLM.Provider == ProviderGemini {
		return "GEMINI_API_KEY"
	}
	return "GROQ_API_KEY"
}
