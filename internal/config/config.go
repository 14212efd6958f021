package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"quiz-feedback/internal/models"
)

var ErrMissingPrompt = errors.New("feedback_prompt is missing")

// Config is the application configuration read from configs/config.yaml.
type Config struct {
	LogLevel      string            `yaml:"log_level"`
	ContentFile   string            `yaml:"content_file"`
	QuestionsFile string            `yaml:"questions_file"`
	PromptsFile   string            `yaml:"prompts_file"`
	EmbedLLM      LLMConfig         `yaml:"embed_llm"`
	ChatLLM       LLMConfig         `yaml:"chat_llm"`
	VectorStore   VectorStoreConfig `yaml:"vector_store"`
	History       HistoryConfig     `yaml:"history"`
	Parser        ParserConfig      `yaml:"parser"`
}

// LLMConfig describes one model endpoint. Provider is "openai" or "ollama".
type LLMConfig struct {
	Provider string `yaml:"provider"`
	BaseURL  string `yaml:"base_url"`
	KeyEnv   string `yaml:"key_env"`
	Model    string `yaml:"model"`
}

// Key reads the API key from the configured environment variable.
func (c LLMConfig) Key() string {
	return strings.TrimPrefix(os.Getenv(c.KeyEnv), "Bearer ")
}

// VectorStoreConfig selects the store backend. Type is "chromem", "postgres" or "qdrant".
type VectorStoreConfig struct {
	Type       string         `yaml:"type"`
	Collection string         `yaml:"collection"`
	Chromem    ChromemConfig  `yaml:"chromem"`
	Database   DatabaseConfig `yaml:"database"`
	Qdrant     QdrantConfig   `yaml:"qdrant"`
}

// ChromemConfig configures the local chromem database. EncryptionKey must be
// 32 bytes when set.
type ChromemConfig struct {
	Path          string `yaml:"path"`
	InMemory      bool   `yaml:"in_memory"`
	Compress      bool   `yaml:"compress"`
	EncryptionKey string `yaml:"encryption_key"`
}

type DatabaseConfig struct {
	DSN      string `yaml:"dsn"`
	Password string `yaml:"password"`
	// Driver is "pgdriver" (default) or "pq"
	Driver string `yaml:"driver"`
	Debug  bool   `yaml:"debug"`
}

type QdrantConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
	UseTLS bool   `yaml:"use_tls"`
}

type HistoryConfig struct {
	// Type is "memory", "redis" or "none"
	Type     string `yaml:"type"`
	RedisURL string `yaml:"redis_url"`
}

type ParserConfig struct {
	// inserted between PDF pages; empty keeps pages glued together
	PageSeparator string `yaml:"page_separator"`
}

// Prompts holds the templates from the prompts file.
type Prompts struct {
	FeedbackPrompt string `yaml:"feedback_prompt"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

func applyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.PromptsFile == "" {
		cfg.PromptsFile = "./configs/prompts.yaml"
	}
	applyLLMDefaults(&cfg.EmbedLLM, models.DefaultEmbeddingModel)
	applyLLMDefaults(&cfg.ChatLLM, models.DefaultChatModel)

	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "chromem"
	}
	if cfg.VectorStore.Collection == "" {
		cfg.VectorStore.Collection = models.DefaultCollectionName
	}
	if cfg.VectorStore.Chromem.Path == "" {
		cfg.VectorStore.Chromem.Path = "./chromemdb"
	}
	if cfg.VectorStore.Database.Driver == "" {
		cfg.VectorStore.Database.Driver = "pgdriver"
	}
	if cfg.VectorStore.Qdrant.Host == "" {
		cfg.VectorStore.Qdrant.Host = "localhost"
	}
	if cfg.VectorStore.Qdrant.Port == 0 {
		cfg.VectorStore.Qdrant.Port = 6334
	}
	if cfg.History.Type == "" {
		cfg.History.Type = "memory"
	}
}

func applyLLMDefaults(c *LLMConfig, model string) {
	if c.Provider == "" {
		c.Provider = "openai"
	}
	if c.KeyEnv == "" {
		c.KeyEnv = models.DefaultAPIKeyEnv
	}
	if c.Model == "" {
		c.Model = model
	}
}

func (c *Config) Validate() error {
	for name, llm := range map[string]LLMConfig{"embed_llm": c.EmbedLLM, "chat_llm": c.ChatLLM} {
		switch llm.Provider {
		case "openai", "ollama":
		default:
			return fmt.Errorf("%s: unsupported provider %q", name, llm.Provider)
		}
	}
	switch c.VectorStore.Type {
	case "chromem", "postgres", "qdrant":
	default:
		return fmt.Errorf("unsupported vector store type %q", c.VectorStore.Type)
	}
	if k := c.VectorStore.Chromem.EncryptionKey; k != "" && len(k) != 32 {
		return fmt.Errorf("vector_store.chromem.encryption_key must be 32 bytes, got %d", len(k))
	}
	if c.VectorStore.Type == "postgres" && c.VectorStore.Database.DSN == "" {
		return errors.New("vector_store.database.dsn is required for postgres")
	}
	switch c.VectorStore.Database.Driver {
	case "pgdriver", "pq":
	default:
		return fmt.Errorf("unsupported database driver %q", c.VectorStore.Database.Driver)
	}
	switch c.History.Type {
	case "memory", "none":
	case "redis":
		if c.History.RedisURL == "" {
			return errors.New("history.redis_url is required for redis")
		}
	default:
		return fmt.Errorf("unsupported history type %q", c.History.Type)
	}
	return nil
}

// LoadPrompts reads the prompt templates. It is called on every feedback
// request so edits to the file take effect without a restart.
func LoadPrompts(path string) (*Prompts, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p Prompts
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse prompts %s: %w", path, err)
	}
	if p.FeedbackPrompt == "" {
		return nil, fmt.Errorf("%s: %w", path, ErrMissingPrompt)
	}
	return &p, nil
}
