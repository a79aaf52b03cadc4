package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/cypherlabdev/bookshop-service/internal/models"
)

const redisKeyPrefix = "bookshop"

// RedisStore implements Store on Redis string keys of the form
// bookshop:<table>:<id>
type RedisStore struct {
	client redis.UniversalClient
	logger zerolog.Logger
}

// NewRedisStore creates a new Redis record store
func NewRedisStore(client redis.UniversalClient, logger zerolog.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		logger: logger.With().Str("component", "redis_store").Logger(),
	}
}

// ConnectRedis accepts either a redis:// URL or a bare host:port
func ConnectRedis(addr string) (*redis.Client, error) {
	if strings.Contains(addr, "://") {
		opt, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis url: %w", err)
		}
		return redis.NewClient(opt), nil
	}
	return redis.NewClient(&redis.Options{Addr: addr}), nil
}

func redisKey(table, id string) string {
	return redisKeyPrefix + ":" + table + ":" + id
}

func (s *RedisStore) Get(ctx context.Context, table, id string) (models.Fields, bool, error) {
	raw, err := s.client.Get(ctx, redisKey(table, id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get %s/%s: %w", table, id, err)
	}

	var record models.Fields
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, false, fmt.Errorf("failed to decode %s/%s: %w", table, id, err)
	}
	return record, true, nil
}

func (s *RedisStore) Put(ctx context.Context, table, id string, record models.Fields) error {
	if id == "" {
		return ErrEmptyID
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %w", table, id, err)
	}
	if err := s.client.Set(ctx, redisKey(table, id), raw, 0).Err(); err != nil {
		return fmt.Errorf("failed to put %s/%s: %w", table, id, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, table, id string) error {
	if err := s.client.Del(ctx, redisKey(table, id)).Err(); err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", table, id, err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
