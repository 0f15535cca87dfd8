package session

import (
	"context"
	"errors"
	"strconv"

	"github.com/lionswap/accounts/config"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/ksuid"
)

const keyPrefix = "session:"

// RedisStore keeps sessions in Redis with a TTL.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(cfg config.SessionConfig) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		}),
	}
}

func (s *RedisStore) Create(ctx context.Context, userID int64) (string, error) {
	id := ksuid.New().String()
	err := s.client.Set(ctx, keyPrefix+id, strconv.FormatInt(userID, 10), TTL).Err()
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (int64, error) {
	value, err := s.client.Get(ctx, keyPrefix+id).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	userID, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, ErrNotFound
	}
	return userID, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, keyPrefix+id).Err()
}

// Close releases the Redis connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
