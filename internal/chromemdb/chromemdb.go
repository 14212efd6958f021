package chromemdb

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"quiz-feedback/internal/config"
	"quiz-feedback/internal/models"
)

// VectorDBManager encapsulates the chromem-go database operations
type VectorDBManager struct {
	db            *chromem.DB
	embed         chromem.EmbeddingFunc
	dbPath        string
	compress      bool
	encryptionKey string
}

var _ models.VectorStore = (*VectorDBManager)(nil)

// NewVectorDBManager opens a persistent database at cfg.Path, or an in-memory
// one when cfg.InMemory is set. embed is used to embed query text.
func NewVectorDBManager(cfg config.ChromemConfig, embed models.EmbeddingFunc) (*VectorDBManager, error) {
	var db *chromem.DB
	var err error
	if cfg.InMemory {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(cfg.Path, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	}

	return &VectorDBManager{
		db:            db,
		embed:         chromem.EmbeddingFunc(embed),
		dbPath:        cfg.Path,
		compress:      cfg.Compress,
		encryptionKey: cfg.EncryptionKey,
	}, nil
}

func (m *VectorDBManager) GetCollection(_ context.Context, name string) (models.Collection, error) {
	c := m.db.GetCollection(name, m.embed)
	if c == nil {
		return nil, fmt.Errorf("%s: %w", name, models.ErrCollectionNotFound)
	}
	return &Collection{c: c}, nil
}

// dimension is implied by the first added document in chromem
func (m *VectorDBManager) CreateCollection(_ context.Context, name string, _ int) (models.Collection, error) {
	c, err := m.db.CreateCollection(name, nil, m.embed)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}
	return &Collection{c: c}, nil
}

func (m *VectorDBManager) DeleteCollection(_ context.Context, name string) error {
	if err := m.db.DeleteCollection(name); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	return nil
}

func (m *VectorDBManager) Close() error {
	return nil
}

// ExportPath is where Export writes the named collection. It sits next to
// the database directory, not inside it.
func (m *VectorDBManager) ExportPath(name string) string {
	if m.dbPath == "" {
		return name + ".chromem"
	}
	return filepath.Clean(m.dbPath) + "_" + name + ".chromem"
}

// Export writes one collection to a single (optionally encrypted) file.
func (m *VectorDBManager) Export(_ context.Context, name string) (string, error) {
	if m.db.GetCollection(name, m.embed) == nil {
		return "", fmt.Errorf("%s: %w", name, models.ErrCollectionNotFound)
	}
	filePath := m.ExportPath(name)

	log.Debug().Str("collection", name).Str("file", filePath).Bool("compress", m.compress).
		Bool("encrypted", m.encryptionKey != "").Msg("Exporting collection")

	if err := m.db.ExportToFile(filePath, m.compress, m.encryptionKey, name); err != nil {
		return "", fmt.Errorf("failed to export database: %w", err)
	}
	return filePath, nil
}

// Import loads a collection previously written by Export.
func (m *VectorDBManager) Import(_ context.Context, filePath, name string) error {
	if err := m.db.ImportFromFile(filePath, m.encryptionKey, name); err != nil {
		return fmt.Errorf("failed to import database: %w", err)
	}
	return nil
}

// Collection wraps a chromem collection.
type Collection struct {
	c *chromem.Collection
}

func (c *Collection) Name() string {
	return c.c.Name
}

func (c *Collection) Count(_ context.Context) (int, error) {
	return c.c.Count(), nil
}

func (c *Collection) Add(ctx context.Context, ids, contents []string, embeddings [][]float32) error {
	if len(ids) != len(contents) || len(ids) != len(embeddings) {
		return fmt.Errorf("ids, contents and embeddings length mismatch: %d/%d/%d", len(ids), len(contents), len(embeddings))
	}
	docs := make([]chromem.Document, len(ids))
	for i := range ids {
		docs[i] = chromem.Document{
			ID:        ids[i],
			Content:   contents[i],
			Embedding: embeddings[i],
		}
	}
	if err := c.c.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

func (c *Collection) Query(ctx context.Context, queryText string, nResults int) ([]string, error) {
	if queryText == "" {
		return nil, fmt.Errorf("query text must be provided")
	}
	// chromem rejects nResults above the collection size
	n := min(nResults, c.c.Count())
	if n <= 0 {
		return nil, nil
	}

	results, err := c.c.Query(ctx, queryText, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}
	docs := make([]string, len(results))
	for i, r := range results {
		docs[i] = r.Content
	}
	return docs, nil
}
