package models

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrCollectionNotFound is returned by a VectorStore when no collection with
// the requested name exists yet.
var ErrCollectionNotFound = errors.New("collection does not exist")

// Chunk is one window of the source text.
type Chunk struct {
	Index   int
	Content string
}

// ID returns the identifier the chunk is stored under.
func (c Chunk) ID() string {
	return EmbeddingID(c.Index)
}

// EmbeddingID builds the stored id for the chunk at index i.
func EmbeddingID(i int) string {
	return fmt.Sprintf("%s%d", EmbeddingIDPrefix, i)
}

// EmbeddingFunc turns text into a vector. Same shape as chromem.EmbeddingFunc.
type EmbeddingFunc func(ctx context.Context, text string) ([]float32, error)

// Collection is a named set of chunks and their embeddings.
type Collection interface {
	Name() string
	Count(ctx context.Context) (int, error)
	Add(ctx context.Context, ids, contents []string, embeddings [][]float32) error
	// Query returns up to nResults stored contents, most similar first.
	Query(ctx context.Context, queryText string, nResults int) ([]string, error)
}

// VectorStore looks up and creates collections by name.
type VectorStore interface {
	GetCollection(ctx context.Context, name string) (Collection, error)
	CreateCollection(ctx context.Context, name string, dimension int) (Collection, error)
	DeleteCollection(ctx context.Context, name string) error
	Close() error
}

// Attempt is one answered question together with the feedback it received.
type Attempt struct {
	SessionID       string    `json:"session_id"`
	QuestionKey     string    `json:"question_key"`
	Question        string    `json:"question"`
	UserAnswer      string    `json:"user_answer"`
	ActualAnswer    string    `json:"actual_answer"`
	RelevantContent string    `json:"relevant_content"`
	Feedback        string    `json:"feedback"`
	CreatedAt       time.Time `json:"created_at"`
}

// PromptResponse is what the CLI prints for one answered question.
type PromptResponse struct {
	Query    string
	Source   string
	Feedback string
}
