package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

var errRemote = errors.New("remote unavailable")

func newTestLogger() (logrus.FieldLogger, *test.Hook) {
	log, hook := test.NewNullLogger()
	return log, hook
}

// mockCartRepo keeps cart rows in memory and counts calls per method.
type mockCartRepo struct {
	mu       sync.Mutex
	products map[string]domain.Product
	rows     map[string][]domain.CartItem
	nextID   int
	calls    map[string]int
	getCalls []string

	failGet   error
	failWrite error
}

func newMockCartRepo(products ...domain.Product) *mockCartRepo {
	m := &mockCartRepo{
		products: make(map[string]domain.Product),
		rows:     make(map[string][]domain.CartItem),
		calls:    make(map[string]int),
	}
	for _, p := range products {
		m.products[p.ID] = p
	}
	return m
}

func (m *mockCartRepo) callCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

func (m *mockCartRepo) totalWrites() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls["AddToCart"] + m.calls["UpdateCartItem"] + m.calls["RemoveFromCart"] + m.calls["ClearCart"]
}

func (m *mockCartRepo) GetCartItems(ctx context.Context, userID string) ([]domain.CartItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["GetCartItems"]++
	m.getCalls = append(m.getCalls, userID)
	if m.failGet != nil {
		return nil, m.failGet
	}

	items := make([]domain.CartItem, 0, len(m.rows[userID]))
	for _, row := range m.rows[userID] {
		if p, ok := m.products[row.ProductID]; ok {
			p := p
			row.Product = &p
		}
		items = append(items, row)
	}
	return items, nil
}

func (m *mockCartRepo) AddToCart(ctx context.Context, userID, productID string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["AddToCart"]++
	if m.failWrite != nil {
		return m.failWrite
	}

	rows := m.rows[userID]
	for i := range rows {
		if rows[i].ProductID == productID {
			rows[i].Quantity += quantity
			return nil
		}
	}
	m.nextID++
	m.rows[userID] = append(rows, domain.CartItem{
		ID:        fmt.Sprintf("item-%d", m.nextID),
		UserID:    userID,
		ProductID: productID,
		Quantity:  quantity,
	})
	return nil
}

func (m *mockCartRepo) UpdateCartItem(ctx context.Context, userID, itemID string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["UpdateCartItem"]++
	if m.failWrite != nil {
		return m.failWrite
	}

	rows := m.rows[userID]
	for i := range rows {
		if rows[i].ID == itemID {
			rows[i].Quantity = quantity
			return nil
		}
	}
	return domain.ErrCartItemNotFound
}

func (m *mockCartRepo) RemoveFromCart(ctx context.Context, userID, itemID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["RemoveFromCart"]++
	if m.failWrite != nil {
		return m.failWrite
	}

	rows := m.rows[userID]
	for i := range rows {
		if rows[i].ID == itemID {
			m.rows[userID] = append(rows[:i:i], rows[i+1:]...)
			return nil
		}
	}
	return domain.ErrCartItemNotFound
}

func (m *mockCartRepo) ClearCart(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["ClearCart"]++
	if m.failWrite != nil {
		return m.failWrite
	}
	delete(m.rows, userID)
	return nil
}

func (m *mockCartRepo) consume(userID string, ordered []domain.OrderItem) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rows := m.rows[userID][:0:0]
	for _, row := range m.rows[userID] {
		for _, item := range ordered {
			if item.ProductID == row.ProductID {
				row.Quantity -= item.Quantity
			}
		}
		if row.Quantity > 0 {
			rows = append(rows, row)
		}
	}
	m.rows[userID] = rows
}

// mockSessionStore implements port.SessionStore in memory.
type mockSessionStore struct {
	mu             sync.Mutex
	sessions       map[string]string
	idempotencySet map[string]bool
	failIdem       error
}

func newMockSessionStore() *mockSessionStore {
	return &mockSessionStore{
		sessions:       make(map[string]string),
		idempotencySet: make(map[string]bool),
	}
}

func (m *mockSessionStore) CreateSession(ctx context.Context, token, userID string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[token] = userID
	return nil
}

func (m *mockSessionStore) GetSession(ctx context.Context, token string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	userID, ok := m.sessions[token]
	if !ok {
		return "", port.ErrSessionNotFound
	}
	return userID, nil
}

func (m *mockSessionStore) DeleteSession(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
	return nil
}

func (m *mockSessionStore) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failIdem != nil {
		return false, m.failIdem
	}
	if m.idempotencySet[key] {
		return false, nil
	}
	m.idempotencySet[key] = true
	return true, nil
}

func (m *mockSessionStore) ReleaseIdempotency(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.idempotencySet, key)
	return nil
}

type mockUserRepo struct {
	mu    sync.Mutex
	users map[string]domain.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]domain.User)}
}

func (m *mockUserRepo) CreateUser(ctx context.Context, user domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return domain.ErrEmailTaken
		}
	}
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepo) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *mockUserRepo) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}

type mockProductRepo struct {
	mu        sync.Mutex
	products  map[string]domain.Product
	versions  map[string]int
	getCalls  int
	lastQuery domain.ProductFilter
}

func newMockProductRepo(products ...domain.Product) *mockProductRepo {
	m := &mockProductRepo{
		products: make(map[string]domain.Product),
		versions: make(map[string]int),
	}
	for _, p := range products {
		m.products[p.ID] = p
	}
	return m
}

func (m *mockProductRepo) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastQuery = filter
	var out []domain.Product
	for _, p := range m.products {
		if filter.Category == "" || p.Category == filter.Category {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockProductRepo) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	p, ok := m.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return &p, nil
}

func (m *mockProductRepo) ListCategories(ctx context.Context) ([]string, error) {
	return []string{"kitchen"}, nil
}

func (m *mockProductRepo) UpsertProduct(ctx context.Context, product domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[product.ID] = product
	return nil
}

func (m *mockProductRepo) GetInventory(ctx context.Context, productID string) (*domain.Inventory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return &domain.Inventory{ProductID: productID, Stock: p.Stock, Version: m.versions[productID]}, nil
}

func (m *mockProductRepo) UpdateInventory(ctx context.Context, inv domain.Inventory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.versions[inv.ProductID] != inv.Version {
		return domain.ErrStockConflict
	}
	p := m.products[inv.ProductID]
	p.Stock = inv.Stock
	m.products[inv.ProductID] = p
	m.versions[inv.ProductID]++
	return nil
}

type mockProductCache struct {
	mu          sync.Mutex
	products    map[string]domain.Product
	invalidated []string
	failGet     error
}

func newMockProductCache() *mockProductCache {
	return &mockProductCache{products: make(map[string]domain.Product)}
}

func (m *mockProductCache) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet != nil {
		return nil, m.failGet
	}
	p, ok := m.products[id]
	if !ok {
		return nil, port.ErrCacheMiss
	}
	return &p, nil
}

func (m *mockProductCache) SetProduct(ctx context.Context, product domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[product.ID] = product
	return nil
}

func (m *mockProductCache) InvalidateProduct(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.products, id)
	m.invalidated = append(m.invalidated, id)
	return nil
}

// mockOrderRepo consumes ordered quantities from carts, like the SQL adapter.
// beforeCreate runs before the order is stored.
type mockOrderRepo struct {
	mu           sync.Mutex
	carts        *mockCartRepo
	orders       []domain.Order
	fail         error
	beforeCreate func(ctx context.Context)
}

func (m *mockOrderRepo) CreateOrder(ctx context.Context, order domain.Order) error {
	if m.beforeCreate != nil {
		m.beforeCreate(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.orders = append(m.orders, order)
	if m.carts != nil {
		m.carts.consume(order.UserID, order.Items)
	}
	return nil
}

func (m *mockOrderRepo) ListOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Order
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func testProduct(id, price string, stock int) domain.Product {
	return domain.Product{
		ID:    id,
		Name:  "Product " + id,
		Price: decimal.RequireFromString(price),
		Stock: stock,
	}
}
