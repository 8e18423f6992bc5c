package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/threadline/courier-bridge/pkg/courier"
)

// redisEnvelope is the stored value shape: payload plus fetch timestamp
// in epoch milliseconds.
type redisEnvelope struct {
	Payload json.RawMessage `json:"payload"`
	TS      int64           `json:"ts"`
}

// Redis is a redis-backed Store shared across bridge instances.
// Entries are written without a redis TTL: staleness is the caller's
// policy and stale payloads must survive as a fetch-failure fallback.
type Redis struct {
	client *redis.Client
}

// RedisConfig holds redis connection settings.
type RedisConfig struct {
	Addr     string
	Username string
	Password string
	DB       int
}

// NewRedis creates a redis-backed store.
func NewRedis(cfg RedisConfig) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &Redis{client: client}
}

// Get returns the stored payload and its fetch timestamp.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, time.Time, error) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, time.Time{}, courier.ErrCacheMiss
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("redis get %s: %w", key, err)
	}
	var env redisEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, time.Time{}, fmt.Errorf("decoding cache entry %s: %w", key, err)
	}
	return env.Payload, time.UnixMilli(env.TS), nil
}

// Set stores the payload with its fetch timestamp.
func (r *Redis) Set(ctx context.Context, key string, payload []byte, fetchedAt time.Time) error {
	env := redisEnvelope{Payload: payload, TS: fetchedAt.UnixMilli()}
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encoding cache entry %s: %w", key, err)
	}
	if err := r.client.Set(ctx, key, raw, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Delete removes the entry for key.
func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// Ping verifies connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

var _ Store = (*Redis)(nil)
