package vectorstore

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"quiz-feedback/internal/chromemdb"
	"quiz-feedback/internal/config"
	"quiz-feedback/internal/db"
	"quiz-feedback/internal/models"
	"quiz-feedback/internal/qdrantdb"
)

// Open returns the vector store selected by cfg.Type. embed is used by the
// store to turn query text into a vector.
func Open(ctx context.Context, cfg *config.VectorStoreConfig, embed models.EmbeddingFunc) (models.VectorStore, error) {
	log.Debug().Str("type", cfg.Type).Str("collection", cfg.Collection).Msg("Opening vector store")

	var (
		store models.VectorStore
		err   error
	)
	switch cfg.Type {
	case "chromem", "":
		store, err = chromemdb.NewVectorDBManager(cfg.Chromem, embed)
	case "postgres":
		store, err = db.Open(ctx, &cfg.Database, embed)
	case "qdrant":
		store, err = qdrantdb.New(&cfg.Qdrant, embed)
	default:
		return nil, fmt.Errorf("unsupported vector store type: %s", cfg.Type)
	}
	if err != nil {
		return nil, err
	}
	return store, nil
}
