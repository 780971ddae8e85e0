package storage

import (
	"context"
	"sync"
	"time"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

type memoryEntry struct {
	value     string
	product   *domain.Product
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// memorySweepInterval bounds how often a write scans the whole map for
// expired entries.
const memorySweepInterval = time.Minute

// MemoryStore is the in-process stand-in for RedisAdapter, used when no Redis
// address is configured. Expired entries are dropped on read and purged in
// bulk by writes, at most once per memorySweepInterval.
type MemoryStore struct {
	mu         sync.Mutex
	entries    map[string]memoryEntry
	productTTL time.Duration
	now        func() time.Time
	lastSweep  time.Time
}

func NewMemoryStore(productTTL time.Duration) *MemoryStore {
	return &MemoryStore{
		entries:    make(map[string]memoryEntry),
		productTTL: productTTL,
		now:        time.Now,
	}
}

func (m *MemoryStore) CreateSession(ctx context.Context, token, userID string, ttl time.Duration) error {
	m.put(sessionKeyPrefix+token, memoryEntry{value: userID}, ttl)
	return nil
}

func (m *MemoryStore) GetSession(ctx context.Context, token string) (string, error) {
	e, ok := m.get(sessionKeyPrefix + token)
	if !ok {
		return "", port.ErrSessionNotFound
	}
	return e.value, nil
}

func (m *MemoryStore) DeleteSession(ctx context.Context, token string) error {
	m.delete(sessionKeyPrefix + token)
	return nil
}

func (m *MemoryStore) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.sweepLocked(now)
	if e, ok := m.entries[key]; ok && !e.expired(now) {
		return false, nil
	}
	m.entries[key] = memoryEntry{value: "1", expiresAt: now.Add(idempotencyKeyTTL)}
	return true, nil
}

func (m *MemoryStore) ReleaseIdempotency(ctx context.Context, key string) error {
	m.delete(key)
	return nil
}

func (m *MemoryStore) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	e, ok := m.get(productKeyPrefix + id)
	if !ok {
		return nil, port.ErrCacheMiss
	}
	p := *e.product
	return &p, nil
}

func (m *MemoryStore) SetProduct(ctx context.Context, p domain.Product) error {
	m.put(productKeyPrefix+p.ID, memoryEntry{product: &p}, m.productTTL)
	return nil
}

func (m *MemoryStore) InvalidateProduct(ctx context.Context, id string) error {
	m.delete(productKeyPrefix + id)
	return nil
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Len reports the number of stored entries, expired or not.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *MemoryStore) put(key string, e memoryEntry, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.sweepLocked(now)
	if ttl > 0 {
		e.expiresAt = now.Add(ttl)
	}
	m.entries[key] = e
}

// sweepLocked purges expired entries if the last sweep is old enough. It must
// be called with mu held.
func (m *MemoryStore) sweepLocked(now time.Time) {
	if now.Sub(m.lastSweep) < memorySweepInterval {
		return
	}
	m.lastSweep = now
	for key, e := range m.entries {
		if e.expired(now) {
			delete(m.entries, key)
		}
	}
}

func (m *MemoryStore) get(key string) (memoryEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if e.expired(m.now()) {
		delete(m.entries, key)
		return memoryEntry{}, false
	}
	return e, true
}

func (m *MemoryStore) delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
}
