package history

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"quiz-feedback/internal/config"
	"quiz-feedback/internal/models"
)

// Store keeps the attempts made during a quiz session.
type Store interface {
	Record(ctx context.Context, attempt models.Attempt) error
	List(ctx context.Context, sessionID string) ([]models.Attempt, error)
	Close() error
}

// New returns the store selected by cfg.Type.
func New(ctx context.Context, cfg *config.HistoryConfig) (Store, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStore(), nil
	case "none":
		return nopStore{}, nil
	case "redis":
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis url: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		log.Debug().Str("addr", opts.Addr).Msg("Connected to redis")
		return NewRedisStore(client), nil
	default:
		return nil, fmt.Errorf("unsupported history type: %s", cfg.Type)
	}
}

type nopStore struct{}

func (nopStore) Record(context.Context, models.Attempt) error { return nil }

func (nopStore) List(context.Context, string) ([]models.Attempt, error) { return nil, nil }

func (nopStore) Close() error { return nil }
