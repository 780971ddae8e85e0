package port

import (
	"context"
	"errors"
	"time"

	"github.com/rl1809/storefront/internal/core/domain"
)

var (
	ErrCacheMiss       = errors.New("cache miss")
	ErrSessionNotFound = errors.New("session not found")
)

type SessionStore interface {
	// CreateSession binds a token to a user until ttl elapses
	CreateSession(ctx context.Context, token, userID string, ttl time.Duration) error

	// GetSession returns the user bound to token, or ErrSessionNotFound
	GetSession(ctx context.Context, token string) (string, error)

	DeleteSession(ctx context.Context, token string) error

	// SetIdempotency sets a key for idempotency check, returns false if already exists
	SetIdempotency(ctx context.Context, key string) (bool, error)
	// ReleaseIdempotency deletes a key so the same request can be retried
	ReleaseIdempotency(ctx context.Context, key string) error
}

type ProductCache interface {
	// GetProduct returns ErrCacheMiss when the product is not cached
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	SetProduct(ctx context.Context, product domain.Product) error
	InvalidateProduct(ctx context.Context, id string) error
}

// Pinger reports backend reachability for health checks.
type Pinger interface {
	Ping(ctx context.Context) error
}
