package embedding

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"quiz-feedback/internal/config"
	"quiz-feedback/internal/models"
)

// Embedder is the part of embeddings.EmbedderImpl the ingestion path needs.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// NewEmbedder builds a langchaingo embedder for the configured provider.
// The openai provider refuses to start without an API key so that a missing
// credential fails before any chunk is sent.
func NewEmbedder(llmConfig *config.LLMConfig) (*embeddings.EmbedderImpl, error) {
	log.Debug().Interface("config", map[string]string{
		"provider":        llmConfig.Provider,
		"base_url":        llmConfig.BaseURL,
		"embedding_model": llmConfig.Model,
	}).Msg("Creating embedder")

	switch llmConfig.Provider {
	case "openai":
		return NewOpenAIEmbedder(llmConfig)
	case "ollama":
		return NewOllamaEmbedder(llmConfig)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", llmConfig.Provider)
	}
}

func NewOpenAIEmbedder(llmConfig *config.LLMConfig) (*embeddings.EmbedderImpl, error) {
	key := llmConfig.Key()
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", llmConfig.KeyEnv)
	}

	opts := []openai.Option{
		openai.WithToken(key),
		openai.WithEmbeddingModel(llmConfig.Model),
	}
	if llmConfig.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(llmConfig.BaseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize openai client: %w", err)
	}
	// chunks are embedded exactly as stored
	embedder, err := embeddings.NewEmbedder(llm, embeddings.WithStripNewLines(false))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return embedder, nil
}

// new ollama embedder
func NewOllamaEmbedder(llmConfig *config.LLMConfig) (*embeddings.EmbedderImpl, error) {
	opts := []ollama.Option{ollama.WithModel(llmConfig.Model)}
	if llmConfig.BaseURL != "" {
		opts = append(opts, ollama.WithServerURL(llmConfig.BaseURL))
	}

	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ollama client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm, embeddings.WithStripNewLines(false))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return embedder, nil
}

// EmbedChunks requests one embedding per chunk, in chunk order. The first
// failure aborts the whole run; nothing is retried.
func EmbedChunks(ctx context.Context, embedder Embedder, chunks []models.Chunk) ([]string, [][]float32, error) {
	if len(chunks) == 0 {
		log.Info().Msg("No chunks generated from content")
		return nil, nil, nil
	}

	contents := make([]string, 0, len(chunks))
	vectors := make([][]float32, 0, len(chunks))
	for _, chunk := range chunks {
		vec, err := embedder.EmbedQuery(ctx, chunk.Content)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to embed chunk %d: %w", chunk.Index, err)
		}
		contents = append(contents, chunk.Content)
		vectors = append(vectors, vec)
	}

	log.Debug().Int("chunks", len(chunks)).Int("dimension", len(vectors[0])).Msg("Embedded chunks")
	return contents, vectors, nil
}

// Func adapts an Embedder to the function form the vector stores take.
func Func(embedder Embedder) models.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return embedder.EmbedQuery(ctx, text)
	}
}
