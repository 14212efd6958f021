package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"quiz-feedback/internal/config"
	"quiz-feedback/internal/models"
)

type CollectionRecord struct {
	bun.BaseModel `bun:"table:collections,alias:c"`
	Name          string    `bun:"name,pk"`
	Dimension     int       `bun:"dimension,notnull"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type Document struct {
	bun.BaseModel `bun:"table:documents,alias:d"`
	ID            int64           `bun:"id,pk,autoincrement"`
	Collection    string          `bun:"collection,notnull,unique:collection_doc"`
	DocID         string          `bun:"doc_id,notnull,unique:collection_doc"`
	Content       string          `bun:"content,notnull"`
	Embedding     pgvector.Vector `bun:"embedding,notnull,type:vector"`
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// ConnectDB opens the database with pgdriver, or lib/pq when Driver is "pq".
func ConnectDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	switch cfg.Driver {
	case "pq":
		return sql.Open("postgres", cfg.DSN)
	case "pgdriver", "":
		opts := []pgdriver.Option{pgdriver.WithDSN(cfg.DSN)}
		if cfg.Password != "" {
			opts = append(opts, pgdriver.WithPassword(cfg.Password))
		}
		return sql.OpenDB(pgdriver.NewConnector(opts...)), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}

func InitDB(ctx context.Context, db *bun.DB) error {
	if _, err := db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to enable pgvector extension: %w", err)
	}
	if _, err := db.NewCreateTable().Model((*CollectionRecord)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("failed to create collections table: %w", err)
	}
	if _, err := db.NewCreateTable().Model((*Document)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("failed to create documents table: %w", err)
	}
	return nil
}

// Store keeps collections as rows in a pgvector-enabled Postgres.
type Store struct {
	db    *bun.DB
	embed models.EmbeddingFunc
}

var _ models.VectorStore = (*Store)(nil)

// Open connects, prepares the schema and returns a Store.
func Open(ctx context.Context, cfg *config.DatabaseConfig, embed models.EmbeddingFunc) (*Store, error) {
	sqldb, err := ConnectDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	db := NewDB(sqldb, cfg.Debug)
	if err := InitDB(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, embed: embed}, nil
}

func (s *Store) GetCollection(ctx context.Context, name string) (models.Collection, error) {
	exists, err := s.db.NewSelect().Model((*CollectionRecord)(nil)).Where("name = ?", name).Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to look up collection: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%s: %w", name, models.ErrCollectionNotFound)
	}
	return &Collection{db: s.db, name: name, embed: s.embed}, nil
}

// CreateCollection registers the collection. A concurrent create of the same
// name is a no-op.
func (s *Store) CreateCollection(ctx context.Context, name string, dimension int) (models.Collection, error) {
	rec := &CollectionRecord{Name: name, Dimension: dimension}
	if _, err := s.db.NewInsert().Model(rec).On("CONFLICT (name) DO NOTHING").Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}
	return &Collection{db: s.db, name: name, embed: s.embed}, nil
}

func (s *Store) DeleteCollection(ctx context.Context, name string) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*Document)(nil)).Where("collection = ?", name).Exec(ctx); err != nil {
			return fmt.Errorf("failed to drop documents: %w", err)
		}
		if _, err := tx.NewDelete().Model((*CollectionRecord)(nil)).Where("name = ?", name).Exec(ctx); err != nil {
			return fmt.Errorf("failed to drop collection: %w", err)
		}
		return nil
	})
}

func (s *Store) Close() error {
	return s.db.Close()
}

type Collection struct {
	db    *bun.DB
	name  string
	embed models.EmbeddingFunc
}

func (c *Collection) Name() string {
	return c.name
}

func (c *Collection) Count(ctx context.Context) (int, error) {
	return c.db.NewSelect().Model((*Document)(nil)).Where("collection = ?", c.name).Count(ctx)
}

func (c *Collection) Add(ctx context.Context, ids, contents []string, embeddings [][]float32) error {
	if len(ids) != len(contents) || len(ids) != len(embeddings) {
		return fmt.Errorf("ids, contents and embeddings length mismatch: %d/%d/%d", len(ids), len(contents), len(embeddings))
	}
	if len(ids) == 0 {
		return nil
	}
	docs := make([]Document, len(ids))
	for i := range ids {
		docs[i] = Document{
			Collection: c.name,
			DocID:      ids[i],
			Content:    contents[i],
			Embedding:  pgvector.NewVector(embeddings[i]),
		}
	}
	_, err := c.db.NewInsert().Model(&docs).On("CONFLICT (collection, doc_id) DO NOTHING").Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to store documents: %w", err)
	}
	log.Debug().Str("collection", c.name).Int("documents", len(docs)).Msg("Stored documents")
	return nil
}

// Query orders by cosine distance to the embedded query text.
func (c *Collection) Query(ctx context.Context, queryText string, nResults int) ([]string, error) {
	if nResults <= 0 {
		return nil, nil
	}
	queryEmbedding, err := c.embed(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	var docs []Document
	err = c.db.NewSelect().
		Model(&docs).
		Column("content").
		Where("collection = ?", c.name).
		OrderExpr("embedding <=> ?", pgvector.NewVector(queryEmbedding)).
		Limit(nResults).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.Content
	}
	return out, nil
}
