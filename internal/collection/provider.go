package collection

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"quiz-feedback/internal/config"
	"quiz-feedback/internal/embedding"
	"quiz-feedback/internal/models"
	"quiz-feedback/internal/parser"
)

type cacheKey struct {
	contentPath string
	name        string
}

// Provider hands out the named collection, ingesting the content file the
// first time the collection is missing from the store. Results are cached for
// the lifetime of the Provider; a cached entry is returned without asking the
// store again.
type Provider struct {
	store    models.VectorStore
	embedder embedding.Embedder
	cfg      *config.Config
	name     string

	mu    sync.Mutex
	cache map[cacheKey]models.Collection
}

func NewProvider(store models.VectorStore, embedder embedding.Embedder, cfg *config.Config) *Provider {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Provider{
		store:    store,
		embedder: embedder,
		cfg:      cfg,
		name:     cfg.VectorStore.Collection,
		cache:    make(map[cacheKey]models.Collection),
	}
}

// GetOrCreate returns the collection for contentPath. The lock is held across
// ingestion so concurrent callers in one process never ingest twice.
func (p *Provider) GetOrCreate(ctx context.Context, contentPath string) (models.Collection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := cacheKey{contentPath: contentPath, name: p.name}
	if c, ok := p.cache[key]; ok {
		return c, nil
	}

	c, err := p.store.GetCollection(ctx, p.name)
	switch {
	case err == nil:
		log.Info().Str("collection", p.name).Msg("Using existing collection")
	case errors.Is(err, models.ErrCollectionNotFound):
		log.Info().Str("collection", p.name).Msg("No existing collection found. Creating a new one...")
		c, err = p.ingest(ctx, contentPath)
		if err != nil {
			return nil, err
		}
		log.Info().Str("collection", p.name).Msg("New collection created and embeddings added")
	default:
		return nil, fmt.Errorf("failed to get collection: %w", err)
	}

	p.cache[key] = c
	return c, nil
}

// ingest embeds everything before creating the collection and removes the
// collection again if adding the chunks fails, so a failed run leaves nothing
// behind in the store.
func (p *Provider) ingest(ctx context.Context, contentPath string) (models.Collection, error) {
	text, err := parser.ExtractText(contentPath, p.cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to extract text from %s: %w", contentPath, err)
	}

	chunks := parser.ChunkText(text)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no text extracted from %s", contentPath)
	}
	log.Info().Int("chunks", len(chunks)).Msg("Embedding content")

	contents, vectors, err := embedding.EmbedChunks(ctx, p.embedder, chunks)
	if err != nil {
		return nil, err
	}

	c, err := p.store.CreateCollection(ctx, p.name, len(vectors[0]))
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(chunks))
	for i, chunk := range chunks {
		ids[i] = chunk.ID()
	}
	log.Info().Msgf("Adding %d documents to vector database", len(ids))
	if err := c.Add(ctx, ids, contents, vectors); err != nil {
		// an empty collection would be reused by every later run
		if derr := p.store.DeleteCollection(ctx, p.name); derr != nil {
			log.Error().Err(derr).Str("collection", p.name).Msg("Error removing partially created collection")
		}
		return nil, err
	}
	return c, nil
}

// Invalidate forgets the cached collection for contentPath.
func (p *Provider) Invalidate(contentPath string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.cache, cacheKey{contentPath: contentPath, name: p.name})
}

// Reset deletes the collection from the store and clears the cache.
func (p *Provider) Reset(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err := p.store.GetCollection(ctx, p.name); err != nil {
		if errors.Is(err, models.ErrCollectionNotFound) {
			clear(p.cache)
			return nil
		}
		return err
	}
	if err := p.store.DeleteCollection(ctx, p.name); err != nil {
		return err
	}
	clear(p.cache)
	log.Info().Str("collection", p.name).Msg("Collection deleted")
	return nil
}
