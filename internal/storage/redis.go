package storage

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/muaviaUsmani/adhan/internal/errors"
	"github.com/redis/go-redis/v9"
)

// Connect parses a Redis URL, creates a client and verifies the connection
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

// RedisKV implements KV on plain Redis string keys
type RedisKV struct {
	client *redis.Client
}

// NewRedisKV creates a Redis-backed key-value store
func NewRedisKV(client *redis.Client) *RedisKV {
	return &RedisKV{client: client}
}

// Get implements KV
func (r *RedisKV) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, apperrors.E("storage.get", apperrors.KindTransient, err)
	}
	return value, true, nil
}

// Set implements KV
func (r *RedisKV) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, key, value, 0).Err(); err != nil {
		return apperrors.E("storage.set", apperrors.KindTransient, err)
	}
	return nil
}

// Remove implements KV
func (r *RedisKV) Remove(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return apperrors.E("storage.remove", apperrors.KindTransient, err)
	}
	return nil
}

// Close closes the Redis client connection
func (r *RedisKV) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}
