package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeFile(t, "config.yaml", "content_file: ./module.pdf\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "./module.pdf", cfg.ContentFile)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "openai", cfg.EmbedLLM.Provider)
	assert.Equal(t, "text-embedding-ada-002", cfg.EmbedLLM.Model)
	assert.Equal(t, "gpt-3.5-turbo", cfg.ChatLLM.Model)
	assert.Equal(t, "OPENAI_API_KEY", cfg.ChatLLM.KeyEnv)
	assert.Equal(t, "chromem", cfg.VectorStore.Type)
	assert.Equal(t, "module_content", cfg.VectorStore.Collection)
	assert.Equal(t, "./chromemdb", cfg.VectorStore.Chromem.Path)
	assert.Equal(t, "memory", cfg.History.Type)
	assert.Equal(t, "", cfg.Parser.PageSeparator)
}

func TestLoadConfigOverrides(t *testing.T) {
	path := writeFile(t, "config.yaml", `
chat_llm:
  provider: ollama
  base_url: http://localhost:11434
  model: llama3
vector_store:
  type: qdrant
  collection: biology
  qdrant:
    host: qdrant.internal
    port: 7000
parser:
  page_separator: "\n"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "ollama", cfg.ChatLLM.Provider)
	assert.Equal(t, "llama3", cfg.ChatLLM.Model)
	assert.Equal(t, "qdrant", cfg.VectorStore.Type)
	assert.Equal(t, "biology", cfg.VectorStore.Collection)
	assert.Equal(t, "qdrant.internal", cfg.VectorStore.Qdrant.Host)
	assert.Equal(t, 7000, cfg.VectorStore.Qdrant.Port)
	assert.Equal(t, "\n", cfg.Parser.PageSeparator)
}

func TestLoadConfigMissing(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", "{{invalid yaml:::")
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad provider", func(c *Config) { c.EmbedLLM.Provider = "anthropic" }},
		{"bad store", func(c *Config) { c.VectorStore.Type = "pinecone" }},
		{"postgres without dsn", func(c *Config) { c.VectorStore.Type = "postgres" }},
		{"bad driver", func(c *Config) { c.VectorStore.Database.Driver = "mysql" }},
		{"redis without url", func(c *Config) { c.History.Type = "redis" }},
		{"bad history", func(c *Config) { c.History.Type = "mongo" }},
		{"short encryption key", func(c *Config) { c.VectorStore.Chromem.EncryptionKey = "too-short" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			require.NoError(t, cfg.Validate())
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateEncryptionKey(t *testing.T) {
	cfg := Default()
	cfg.VectorStore.Chromem.EncryptionKey = "0123456789abcdef0123456789abcdef"
	assert.NoError(t, cfg.Validate())
}

func TestLLMConfigKey(t *testing.T) {
	t.Setenv("QUIZ_TEST_KEY", "Bearer sk-test")
	c := LLMConfig{KeyEnv: "QUIZ_TEST_KEY"}
	assert.Equal(t, "sk-test", c.Key())
}

func TestLoadPrompts(t *testing.T) {
	path := writeFile(t, "prompts.yaml", "feedback_prompt: \"Q: {question}\"\n")

	p, err := LoadPrompts(path)
	require.NoError(t, err)
	assert.Equal(t, "Q: {question}", p.FeedbackPrompt)
}

func TestLoadPromptsMissingKey(t *testing.T) {
	path := writeFile(t, "prompts.yaml", "other_prompt: hi\n")

	_, err := LoadPrompts(path)
	assert.ErrorIs(t, err, ErrMissingPrompt)
}
