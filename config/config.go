package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the single source of truth for both the CLI and the server.
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	WebSearch WebSearchConfig `mapstructure:"web_search"`
	KB        KBConfig        `mapstructure:"knowledge_base"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Compose   ComposeConfig   `mapstructure:"compose"`
}

type GeneralConfig struct {
	Debug bool `mapstructure:"debug"`
}

type ServerConfig struct {
	Address           string `mapstructure:"address"`
	JWTSecret         string `mapstructure:"jwt_secret"`
	AdminPasswordHash string `mapstructure:"admin_password_hash"`
}

type LLMConfig struct {
	APIKey         string        `mapstructure:"api_key"`
	BaseURL        string        `mapstructure:"base_url"`
	Model          string        `mapstructure:"model"`
	EmbeddingModel string        `mapstructure:"embedding_model"`
	Temperature    float64       `mapstructure:"temperature"`
	MaxTokens      int           `mapstructure:"max_tokens"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

type WebSearchConfig struct {
	Provider         string        `mapstructure:"provider"`
	APIKey           string        `mapstructure:"api_key"`
	MaxResults       int           `mapstructure:"max_results"`
	MaxContentLength int           `mapstructure:"max_content_length"`
	FetchTimeout     time.Duration `mapstructure:"fetch_timeout"`
	UseBrowser       bool          `mapstructure:"use_browser"`
}

type KBConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Path         string `mapstructure:"path"`
	ChunkSize    int    `mapstructure:"chunk_size"`
	ChunkOverlap int    `mapstructure:"chunk_overlap"`
	TopK         int    `mapstructure:"top_k"`
	TopN         int    `mapstructure:"top_n"`
	EmbedBatch   int    `mapstructure:"embed_batch"`
}

type RetrievalConfig struct {
	MaxIterations       int           `mapstructure:"max_iterations"`
	MaxWorkers          int           `mapstructure:"max_workers"`
	WebConcurrency      int           `mapstructure:"web_concurrency"`
	KBConcurrency       int           `mapstructure:"kb_concurrency"`
	SimilarityThreshold float64       `mapstructure:"similarity_threshold"`
	MaxRetries          int           `mapstructure:"max_retries"`
	RetryDelay          time.Duration `mapstructure:"retry_delay"`
}

type ComposeConfig struct {
	MaxWorkers int `mapstructure:"max_workers"`
}

// Load reads config.yaml (from path, the working directory or ./config) and
// the EDITORIAL_* environment, then normalizes and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	setDefaults(v)

	v.SetEnvPrefix("EDITORIAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("general.debug", false)

	v.SetDefault("server.address", ":8080")
	// secrets have no file defaults, but the keys must be registered or
	// viper's AutomaticEnv never surfaces them to Unmarshal
	v.SetDefault("server.jwt_secret", "")
	v.SetDefault("server.admin_password_hash", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("web_search.api_key", "")

	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.embedding_model", "text-embedding-3-small")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("llm.timeout", "120s")

	v.SetDefault("web_search.provider", "tavily")
	v.SetDefault("web_search.max_results", 5)
	v.SetDefault("web_search.max_content_length", 8000)
	v.SetDefault("web_search.fetch_timeout", "20s")
	v.SetDefault("web_search.use_browser", false)

	v.SetDefault("knowledge_base.enabled", false)
	v.SetDefault("knowledge_base.path", "./knowledge")
	v.SetDefault("knowledge_base.chunk_size", 500)
	v.SetDefault("knowledge_base.chunk_overlap", 50)
	v.SetDefault("knowledge_base.top_k", 10)
	v.SetDefault("knowledge_base.top_n", 5)
	v.SetDefault("knowledge_base.embed_batch", 32)

	v.SetDefault("retrieval.max_iterations", 3)
	v.SetDefault("retrieval.max_workers", 4)
	v.SetDefault("retrieval.web_concurrency", 3)
	v.SetDefault("retrieval.kb_concurrency", 2)
	v.SetDefault("retrieval.similarity_threshold", 0.7)
	v.SetDefault("retrieval.max_retries", 3)
	v.SetDefault("retrieval.retry_delay", "2s")

	v.SetDefault("compose.max_workers", 4)
}

// Normalize clamps values that would otherwise stall or flood the pipeline.
func (c *Config) Normalize() {
	if c.Retrieval.MaxIterations < 1 {
		c.Retrieval.MaxIterations = 1
	}
	if c.Retrieval.MaxWorkers < 1 {
		c.Retrieval.MaxWorkers = 1
	}
	if c.Retrieval.WebConcurrency < 1 {
		c.Retrieval.WebConcurrency = 1
	}
	if c.Retrieval.KBConcurrency < 1 {
		c.Retrieval.KBConcurrency = 1
	}
	if c.Retrieval.MaxRetries < 1 {
		c.Retrieval.MaxRetries = 1
	}
	if c.Retrieval.RetryDelay <= 0 {
		c.Retrieval.RetryDelay = 2 * time.Second
	}
	if c.Compose.MaxWorkers < 1 {
		c.Compose.MaxWorkers = 1
	}
	if c.WebSearch.MaxResults < 1 {
		c.WebSearch.MaxResults = 1
	}
}

func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("llm.api_key is required (EDITORIAL_LLM_API_KEY)")
	}
	switch c.WebSearch.Provider {
	case "tavily", "serper", "":
	default:
		return fmt.Errorf("web_search.provider must be tavily or serper, got %q", c.WebSearch.Provider)
	}
	if c.Retrieval.SimilarityThreshold < 0 || c.Retrieval.SimilarityThreshold > 1 {
		return fmt.Errorf("retrieval.similarity_threshold must be in [0,1], got %v", c.Retrieval.SimilarityThreshold)
	}
	return nil
}
