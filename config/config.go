// Package config loads service configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Backend selects which generation backend the engine drives.
const (
	BackendLocal     = "local"
	BackendAnthropic = "anthropic"
)

// Embedder selects the embedding implementation.
const (
	EmbedderMock   = "mock"
	EmbedderOpenAI = "openai"
)

// Config is the full service configuration.
type Config struct {
	ListenAddr string `yaml:"listen_addr"`
	DBPath     string `yaml:"db_path"`

	Backend string `yaml:"backend"`

	// Local backend: base URL of the model sidecar.
	ModelBaseURL string `yaml:"model_base_url"`

	// Anthropic backend.
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	AnthropicModel  string `yaml:"anthropic_model"`

	Embedder      string  `yaml:"embedder"`
	OpenAIAPIKey  string  `yaml:"openai_api_key"`
	OpenAIModel   string  `yaml:"openai_model"`
	EmbedderDims  int     `yaml:"embedder_dims"`
	EmbedderCache bool    `yaml:"embedder_cache"`
	ResponseCache bool    `yaml:"response_cache"`
	TuneThreshold float64 `yaml:"tune_threshold"`
	RetrievalTopK int     `yaml:"retrieval_top_k"`
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() Config {
	return Config{
		ListenAddr:    ":8000",
		DBPath:        "dynamem.db",
		Backend:       BackendLocal,
		ModelBaseURL:  "http://localhost:8091",
		Embedder:      EmbedderMock,
		EmbedderDims:  384,
		EmbedderCache: true,
		ResponseCache: true,
		TuneThreshold: 1.0,
		RetrievalTopK: 5,
	}
}

// Load reads configuration from path (optional, empty skips the file),
// then applies DYNAMEM_* environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString(&cfg.ListenAddr, "DYNAMEM_LISTEN_ADDR")
	setString(&cfg.DBPath, "DYNAMEM_DB_PATH")
	setString(&cfg.Backend, "DYNAMEM_BACKEND")
	setString(&cfg.ModelBaseURL, "DYNAMEM_MODEL_BASE_URL")
	setString(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	setString(&cfg.AnthropicModel, "DYNAMEM_ANTHROPIC_MODEL")
	setString(&cfg.Embedder, "DYNAMEM_EMBEDDER")
	setString(&cfg.OpenAIAPIKey, "OPENAI_API_KEY")
	setString(&cfg.OpenAIModel, "DYNAMEM_OPENAI_MODEL")

	if v := os.Getenv("DYNAMEM_TUNE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.TuneThreshold = f
		}
	}
	if v := os.Getenv("DYNAMEM_RETRIEVAL_TOP_K"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RetrievalTopK = n
		}
	}
}

func (c Config) validate() error {
	switch c.Backend {
	case BackendLocal, BackendAnthropic:
	default:
		return fmt.Errorf("config: unknown backend %q", c.Backend)
	}
	switch c.Embedder {
	case EmbedderMock, EmbedderOpenAI:
	default:
		return fmt.Errorf("config: unknown embedder %q", c.Embedder)
	}
	if c.Backend == BackendAnthropic && c.AnthropicAPIKey == "" {
		return fmt.Errorf("config: anthropic backend requires an API key")
	}
	if c.Embedder == EmbedderOpenAI && c.OpenAIAPIKey == "" {
		return fmt.Errorf("config: openai embedder requires an API key")
	}
	if c.RetrievalTopK <= 0 {
		return fmt.Errorf("config: retrieval_top_k must be positive")
	}
	return nil
}
