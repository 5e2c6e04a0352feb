package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

type Config struct {
	Server     ServerConfig
	Corpus     CorpusConfig
	Index      IndexConfig
	Retrieval  RetrievalConfig
	Generation GenerationConfig
	Embedding  EmbeddingConfig
	Cache      CacheConfig
	Log        LogConfig
	Locale     string
}

type ServerConfig struct {
	Host string
	Port int
}

type CorpusConfig struct {
	Path string
}

type IndexConfig struct {
	Dir  string
	Name string
}

type RetrievalConfig struct {
	TopK int
}

// GenerationConfig holds the text-generation endpoint settings. An empty
// APIKey is valid: the service then always answers with template plans.
type GenerationConfig struct {
	APIKey          string
	BaseURL         string
	Model           string
	Timeout         string
	Temperature     float64
	TopP            float64
	TopK            int
	MaxOutputTokens int
}

type EmbeddingConfig struct {
	Provider string // gemini, openai, ollama or none
	Model    string
	APIKey   string
	BaseURL  string
}

type CacheConfig struct {
	RedisAddr string
	TTL       string
}

type LogConfig struct {
	Level  string
	Format string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 4000,
		},
		Corpus: CorpusConfig{
			Path: "data/courses.json",
		},
		Index: IndexConfig{
			Dir:  "index_data",
			Name: "index",
		},
		Retrieval: RetrievalConfig{
			TopK: 5,
		},
		Generation: GenerationConfig{
			BaseURL:         "https://generativelanguage.googleapis.com",
			Model:           "gemini-2.0-flash",
			Timeout:         "60s",
			Temperature:     1.0,
			TopP:            0.95,
			TopK:            40,
			MaxOutputTokens: 8192,
		},
		Embedding: EmbeddingConfig{
			Provider: "gemini",
		},
		Cache: CacheConfig{
			TTL: "720h",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Locale: "en",
	}
}

// Load reads configuration from the JSON config file (see FilePath) and
// applies LEARNPATH_* environment overrides on top.
//
// Secrets are never read from the file. The generation key falls back to
// GOOGLE_API_KEY; the embedding key falls back to the provider's usual
// variable (GEMINI_API_KEY or OPENAI_API_KEY).
func Load() (Config, error) {
	return loadWith(newFileBackend(FilePath()))
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if cfg.Generation.APIKey == "" {
		cfg.Generation.APIKey = os.Getenv("GOOGLE_API_KEY")
	}
	if cfg.Embedding.APIKey == "" {
		switch cfg.Embedding.Provider {
		case "gemini":
			cfg.Embedding.APIKey = firstNonEmpty(os.Getenv("GEMINI_API_KEY"), cfg.Generation.APIKey)
		case "openai":
			cfg.Embedding.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}

	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = DefaultEmbeddingModel(cfg.Embedding.Provider)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DefaultEmbeddingModel returns the embedding model used when
// embedding.model is not set. Each provider serves its own model names.
func DefaultEmbeddingModel(provider string) string {
	switch provider {
	case "gemini":
		return "text-embedding-004"
	case "openai":
		return "text-embedding-3-small"
	case "ollama":
		return "nomic-embed-text"
	}
	return ""
}

// Validate reports the first out-of-range setting.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("invalid retrieval.top_k %d: must be positive", c.Retrieval.TopK)
	}
	if c.Corpus.Path == "" {
		return fmt.Errorf("missing required config: corpus.path")
	}
	if _, err := time.ParseDuration(c.Generation.Timeout); err != nil {
		return fmt.Errorf("invalid generation.timeout %q: %w", c.Generation.Timeout, err)
	}
	if _, err := time.ParseDuration(c.Cache.TTL); err != nil {
		return fmt.Errorf("invalid cache.ttl %q: %w", c.Cache.TTL, err)
	}
	switch c.Embedding.Provider {
	case "gemini", "openai", "ollama", "none":
	default:
		return fmt.Errorf("unknown embedding.provider %q", c.Embedding.Provider)
	}
	switch strings.ToLower(c.Locale) {
	case "en", "vi":
	default:
		return fmt.Errorf("unsupported locale %q", c.Locale)
	}
	return nil
}

// GenerationTimeout returns the parsed generation timeout. Validate has
// already rejected unparsable values, so a parse failure yields 60s.
func (c Config) GenerationTimeout() time.Duration {
	d, err := time.ParseDuration(c.Generation.Timeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

func (c Config) CacheTTL() time.Duration {
	d, err := time.ParseDuration(c.Cache.TTL)
	if err != nil {
		return 720 * time.Hour
	}
	return d
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
