package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrInvalidQuantity  = errors.New("invalid quantity")
)

// CartManager holds one session's view of its cart. Every mutation is written
// through to the repository and followed by a full re-read, so the local items
// are always a copy of what the repository last returned.
//
// Mutations are serialized: a write and its reconciling read run under opMu,
// so concurrent callers cannot interleave a stale read after a newer write.
type CartManager struct {
	repo port.CartRepository
	log  logrus.FieldLogger

	opMu sync.Mutex

	mu       sync.RWMutex
	user     *domain.User
	gen      uint64
	items    []domain.CartItem
	inflight int
}

func NewCartManager(repo port.CartRepository, log logrus.FieldLogger) *CartManager {
	return &CartManager{
		repo: repo,
		log:  log.WithField("component", "cart"),
	}
}

// SetUser switches the session user. Clearing the user empties the cart
// without touching the repository; a different user triggers one refresh.
func (m *CartManager) SetUser(ctx context.Context, user *domain.User) {
	m.mu.Lock()
	if sameUser(m.user, user) {
		m.mu.Unlock()
		return
	}
	m.user = user
	m.gen++
	m.items = nil
	m.mu.Unlock()

	if user == nil {
		return
	}
	m.Refresh(ctx)
}

// Refresh replaces the local items with the repository's. Failures are logged
// and leave the previous items in place.
func (m *CartManager) Refresh(ctx context.Context) {
	m.begin()
	defer m.end()

	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.refreshLocked(ctx)
}

// AddToCart adds quantity of a product. A zero quantity means one.
func (m *CartManager) AddToCart(ctx context.Context, productID string, quantity int) error {
	if quantity == 0 {
		quantity = 1
	}
	if quantity < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidQuantity, quantity)
	}

	return m.mutate(ctx, "add to cart", logrus.Fields{"product_id": productID, "quantity": quantity},
		func(userID string) error {
			return m.repo.AddToCart(ctx, userID, productID, quantity)
		})
}

// UpdateQuantity sets an item's quantity; zero or less removes the item.
func (m *CartManager) UpdateQuantity(ctx context.Context, itemID string, quantity int) error {
	if quantity <= 0 {
		return m.RemoveFromCart(ctx, itemID)
	}

	return m.mutate(ctx, "update cart item", logrus.Fields{"item_id": itemID, "quantity": quantity},
		func(userID string) error {
			return m.repo.UpdateCartItem(ctx, userID, itemID, quantity)
		})
}

func (m *CartManager) RemoveFromCart(ctx context.Context, itemID string) error {
	return m.mutate(ctx, "remove from cart", logrus.Fields{"item_id": itemID},
		func(userID string) error {
			return m.repo.RemoveFromCart(ctx, userID, itemID)
		})
}

// EmptyCart deletes the user's rows in the repository, then refreshes.
func (m *CartManager) EmptyCart(ctx context.Context) error {
	return m.mutate(ctx, "empty cart", nil, func(userID string) error {
		return m.repo.ClearCart(ctx, userID)
	})
}

// ClearCart drops the local items only. The repository keeps the rows, so the
// next refresh for the same user brings them back.
func (m *CartManager) ClearCart() {
	m.mu.Lock()
	m.items = nil
	m.mu.Unlock()
}

func (m *CartManager) Items() []domain.CartItem {
	m.mu.RLock()
	defer m.mu.RUnlock()

	items := make([]domain.CartItem, len(m.items))
	copy(items, m.items)
	return items
}

func (m *CartManager) TotalItems() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := 0
	for _, item := range m.items {
		total += item.Quantity
	}
	return total
}

func (m *CartManager) TotalPrice() decimal.Decimal {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := decimal.Zero
	for _, item := range m.items {
		total = total.Add(item.LineTotal())
	}
	return total
}

// Busy reports whether an operation is running or waiting to run.
func (m *CartManager) Busy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.inflight > 0
}

func (m *CartManager) User() *domain.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user
}

func (m *CartManager) mutate(ctx context.Context, op string, fields logrus.Fields, write func(userID string) error) error {
	m.begin()
	defer m.end()

	m.opMu.Lock()
	defer m.opMu.Unlock()

	user := m.User()
	if user == nil {
		return ErrNotAuthenticated
	}

	if err := write(user.ID); err != nil {
		m.log.WithFields(fields).WithField("user_id", user.ID).WithError(err).Errorf("%s failed", op)
		return fmt.Errorf("%s: %w", op, err)
	}

	m.refreshLocked(ctx)
	return nil
}

// refreshLocked must be called with opMu held.
func (m *CartManager) refreshLocked(ctx context.Context) {
	m.mu.RLock()
	user, gen := m.user, m.gen
	m.mu.RUnlock()

	if user == nil {
		m.ClearCart()
		return
	}

	items, err := m.repo.GetCartItems(ctx, user.ID)
	if err != nil {
		m.log.WithField("user_id", user.ID).WithError(err).Warn("cart refresh failed, keeping previous items")
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen {
		// user changed while the read was in flight
		return
	}
	m.items = items
}

func (m *CartManager) begin() {
	m.mu.Lock()
	m.inflight++
	m.mu.Unlock()
}

func (m *CartManager) end() {
	m.mu.Lock()
	m.inflight--
	m.mu.Unlock()
}

func sameUser(a, b *domain.User) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID == b.ID
}
