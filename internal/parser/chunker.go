package parser

import (
	"errors"
	"fmt"

	"quiz-feedback/internal/models"
)

const (
	ChunkSize    = 800 // characters
	ChunkOverlap = 200 // characters
)

var ErrInvalidChunking = errors.New("invalid chunk size or overlap")

// ChunkText splits text into ChunkSize windows that overlap by ChunkOverlap.
func ChunkText(text string) []models.Chunk {
	parts, _ := SplitChunks(text, ChunkSize, ChunkOverlap)
	chunks := make([]models.Chunk, len(parts))
	for i, p := range parts {
		chunks[i] = models.Chunk{Index: i, Content: p}
	}
	return chunks
}

// SplitChunks slides a window of size characters over text, advancing by
// size-overlap each step until the start passes the end of the text. The
// last window may be shorter than size. Positions count runes, not bytes.
func SplitChunks(text string, size, overlap int) ([]string, error) {
	if size <= 0 || overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: size=%d overlap=%d", ErrInvalidChunking, size, overlap)
	}

	runes := []rune(text)
	step := size - overlap

	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := min(start+size, len(runes))
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks, nil
}
