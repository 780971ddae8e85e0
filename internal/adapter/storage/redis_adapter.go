package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

const (
	sessionKeyPrefix  = "session:"
	productKeyPrefix  = "product:"
	idempotencyKeyTTL = 24 * time.Hour
)

// RedisAdapter backs sessions, idempotency keys and the product cache.
type RedisAdapter struct {
	client     *redis.Client
	productTTL time.Duration
}

func NewRedisAdapter(client *redis.Client, productTTL time.Duration) *RedisAdapter {
	return &RedisAdapter{client: client, productTTL: productTTL}
}

func (r *RedisAdapter) CreateSession(ctx context.Context, token, userID string, ttl time.Duration) error {
	return r.client.Set(ctx, sessionKeyPrefix+token, userID, ttl).Err()
}

func (r *RedisAdapter) GetSession(ctx context.Context, token string) (string, error) {
	userID, err := r.client.Get(ctx, sessionKeyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return "", port.ErrSessionNotFound
	}
	if err != nil {
		return "", err
	}
	return userID, nil
}

func (r *RedisAdapter) DeleteSession(ctx context.Context, token string) error {
	return r.client.Del(ctx, sessionKeyPrefix+token).Err()
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, 1, idempotencyKeyTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) ReleaseIdempotency(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *RedisAdapter) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	data, err := r.client.Get(ctx, productKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, port.ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}

	var p domain.Product
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode cached product: %w", err)
	}
	return &p, nil
}

func (r *RedisAdapter) SetProduct(ctx context.Context, p domain.Product) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode product: %w", err)
	}
	return r.client.Set(ctx, productKeyPrefix+p.ID, data, r.productTTL).Err()
}

func (r *RedisAdapter) InvalidateProduct(ctx context.Context, id string) error {
	return r.client.Del(ctx, productKeyPrefix+id).Err()
}

func (r *RedisAdapter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
