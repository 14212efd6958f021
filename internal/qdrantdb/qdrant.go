package qdrantdb

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"quiz-feedback/internal/config"
	"quiz-feedback/internal/helper"
	"quiz-feedback/internal/models"
)

const (
	payloadContent = "content"
	payloadDocID   = "doc_id"
)

// Store implements models.VectorStore on a Qdrant server.
type Store struct {
	client *qdrant.Client
	embed  models.EmbeddingFunc
}

var _ models.VectorStore = (*Store)(nil)

func New(cfg *config.QdrantConfig, embed models.EmbeddingFunc) (*Store, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return &Store{client: client, embed: embed}, nil
}

func (s *Store) GetCollection(ctx context.Context, name string) (models.Collection, error) {
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to check collection existence: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%s: %w", name, models.ErrCollectionNotFound)
	}
	return &Collection{client: s.client, name: name, embed: s.embed}, nil
}

func (s *Store) CreateCollection(ctx context.Context, name string, dimension int) (models.Collection, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("invalid dimension %d", dimension)
	}
	err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}
	return &Collection{client: s.client, name: name, embed: s.embed}, nil
}

func (s *Store) DeleteCollection(ctx context.Context, name string) error {
	if err := s.client.DeleteCollection(ctx, name); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

type Collection struct {
	client *qdrant.Client
	name   string
	embed  models.EmbeddingFunc
}

func (c *Collection) Name() string {
	return c.name
}

func (c *Collection) Count(ctx context.Context) (int, error) {
	exact := true
	n, err := c.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: c.name,
		Exact:          &exact,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count points: %w", err)
	}
	return int(n), nil
}

func (c *Collection) Add(ctx context.Context, ids, contents []string, embeddings [][]float32) error {
	if len(ids) != len(contents) || len(ids) != len(embeddings) {
		return fmt.Errorf("ids, contents and embeddings length mismatch: %d/%d/%d", len(ids), len(contents), len(embeddings))
	}
	if len(ids) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, len(ids))
	for i := range ids {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(helper.PointID(c.name, ids[i])),
			Vectors: qdrant.NewVectors(embeddings[i]...),
			Payload: map[string]*qdrant.Value{
				payloadContent: qdrant.NewValueString(contents[i]),
				payloadDocID:   qdrant.NewValueString(ids[i]),
			},
		}
	}

	wait := true
	_, err := c.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: c.name,
		Points:         points,
		Wait:           &wait,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}
	return nil
}

func (c *Collection) Query(ctx context.Context, queryText string, nResults int) ([]string, error) {
	if nResults <= 0 {
		return nil, nil
	}
	vec, err := c.embed(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	limit := uint64(nResults)
	hits, err := c.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: c.name,
		Query:          qdrant.NewQuery(vec...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	docs := make([]string, 0, len(hits))
	for _, hit := range hits {
		if v, ok := hit.Payload[payloadContent]; ok {
			docs = append(docs, v.GetStringValue())
		}
	}
	return docs, nil
}
