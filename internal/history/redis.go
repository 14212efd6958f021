package history

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"quiz-feedback/internal/models"
)

const keyPrefix = "quiz:session:"

// RedisStore keeps each session as a JSON list under quiz:session:<id>.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func sessionKey(sessionID string) string {
	return keyPrefix + sessionID
}

func (s *RedisStore) Record(ctx context.Context, attempt models.Attempt) error {
	b, err := json.Marshal(attempt)
	if err != nil {
		return fmt.Errorf("failed to marshal attempt: %w", err)
	}
	return s.client.RPush(ctx, sessionKey(attempt.SessionID), b).Err()
}

func (s *RedisStore) List(ctx context.Context, sessionID string) ([]models.Attempt, error) {
	items, err := s.client.LRange(ctx, sessionKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	attempts := make([]models.Attempt, len(items))
	for i, item := range items {
		if err := json.Unmarshal([]byte(item), &attempts[i]); err != nil {
			return nil, fmt.Errorf("failed to unmarshal attempt at index %d: %w", i, err)
		}
	}
	return attempts, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
