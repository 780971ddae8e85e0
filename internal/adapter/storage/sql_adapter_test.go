package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/storefront/internal/core/domain"
)

func TestMigrate_Idempotent(t *testing.T) {
	a := newSQLiteAdapter(t)

	applied, err := a.Migrate(context.Background())
	require.NoError(t, err)
	assert.Empty(t, applied, "second run should apply nothing")
}

func TestAddToCart_UpsertCollapsesRows(t *testing.T) {
	a := newSQLiteAdapter(t)
	ctx := context.Background()
	user := seedUser(t, a, "a@example.com")
	seedProduct(t, a, "mug", "9.50", 10)

	require.NoError(t, a.AddToCart(ctx, user.ID, "mug", 1))
	require.NoError(t, a.AddToCart(ctx, user.ID, "mug", 2))

	items, err := a.GetCartItems(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].Quantity)
	require.NotNil(t, items[0].Product)
	assert.Equal(t, "Product mug", items[0].Product.Name)
	assert.True(t, decimal.RequireFromString("9.5").Equal(items[0].Product.Price))
}

func TestAddToCart_UnknownProduct(t *testing.T) {
	a := newSQLiteAdapter(t)
	user := seedUser(t, a, "a@example.com")

	err := a.AddToCart(context.Background(), user.ID, "missing", 1)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestAddToCart_InsufficientStockRollsBack(t *testing.T) {
	a := newSQLiteAdapter(t)
	ctx := context.Background()
	user := seedUser(t, a, "a@example.com")
	seedProduct(t, a, "lamp", "30.00", 3)

	require.NoError(t, a.AddToCart(ctx, user.ID, "lamp", 2))
	err := a.AddToCart(ctx, user.ID, "lamp", 2)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	items, err := a.GetCartItems(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Quantity, "failed upsert must not change the row")
}

func TestCartItems_ScopedToOwner(t *testing.T) {
	a := newSQLiteAdapter(t)
	ctx := context.Background()
	alice := seedUser(t, a, "alice@example.com")
	bob := seedUser(t, a, "bob@example.com")
	seedProduct(t, a, "pen", "1.00", 100)

	require.NoError(t, a.AddToCart(ctx, alice.ID, "pen", 5))
	items, err := a.GetCartItems(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	itemID := items[0].ID

	bobItems, err := a.GetCartItems(ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, bobItems)

	assert.ErrorIs(t, a.UpdateCartItem(ctx, bob.ID, itemID, 1), domain.ErrCartItemNotFound)
	assert.ErrorIs(t, a.RemoveFromCart(ctx, bob.ID, itemID), domain.ErrCartItemNotFound)
	require.NoError(t, a.ClearCart(ctx, bob.ID))

	items, err = a.GetCartItems(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 5, items[0].Quantity)
}

func TestUpdateAndRemoveCartItem(t *testing.T) {
	a := newSQLiteAdapter(t)
	ctx := context.Background()
	user := seedUser(t, a, "a@example.com")
	seedProduct(t, a, "cup", "4.00", 5)

	require.NoError(t, a.AddToCart(ctx, user.ID, "cup", 1))
	items, err := a.GetCartItems(ctx, user.ID)
	require.NoError(t, err)
	itemID := items[0].ID

	require.NoError(t, a.UpdateCartItem(ctx, user.ID, itemID, 4))
	assert.ErrorIs(t, a.UpdateCartItem(ctx, user.ID, itemID, 6), domain.ErrInsufficientStock)

	items, err = a.GetCartItems(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, items[0].Quantity)

	require.NoError(t, a.RemoveFromCart(ctx, user.ID, itemID))
	assert.ErrorIs(t, a.RemoveFromCart(ctx, user.ID, itemID), domain.ErrCartItemNotFound)

	items, err = a.GetCartItems(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestClearCart(t *testing.T) {
	a := newSQLiteAdapter(t)
	ctx := context.Background()
	user := seedUser(t, a, "a@example.com")
	seedProduct(t, a, "a", "1.00", 10)
	seedProduct(t, a, "b", "2.00", 10)

	require.NoError(t, a.AddToCart(ctx, user.ID, "a", 1))
	require.NoError(t, a.AddToCart(ctx, user.ID, "b", 1))
	require.NoError(t, a.ClearCart(ctx, user.ID))

	items, err := a.GetCartItems(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	a := newSQLiteAdapter(t)
	seedUser(t, a, "dup@example.com")

	err := a.CreateUser(context.Background(), domain.User{
		ID:           uuid.NewString(),
		Email:        "dup@example.com",
		DisplayName:  "Other",
		PasswordHash: "hash",
		CreatedAt:    time.Now(),
	})
	assert.ErrorIs(t, err, domain.ErrEmailTaken)
}

func TestGetUser(t *testing.T) {
	a := newSQLiteAdapter(t)
	ctx := context.Background()
	user := seedUser(t, a, "find@example.com")

	byEmail, err := a.GetUserByEmail(ctx, "find@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)

	byID, err := a.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Email, byID.Email)

	_, err = a.GetUserByID(ctx, "nobody")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestListProducts_Filters(t *testing.T) {
	a := newSQLiteAdapter(t)
	ctx := context.Background()
	for _, p := range []domain.Product{
		{ID: "p1", Name: "Blue Mug", Price: decimal.NewFromInt(5), Stock: 1, Category: "kitchen"},
		{ID: "p2", Name: "Red Mug", Price: decimal.NewFromInt(6), Stock: 1, Category: "kitchen"},
		{ID: "p3", Name: "Desk Lamp", Price: decimal.NewFromInt(20), Stock: 1, Category: "office"},
	} {
		require.NoError(t, a.UpsertProduct(ctx, p))
	}

	all, err := a.ListProducts(ctx, domain.ProductFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	kitchen, err := a.ListProducts(ctx, domain.ProductFilter{Category: "kitchen"})
	require.NoError(t, err)
	assert.Len(t, kitchen, 2)

	mugs, err := a.ListProducts(ctx, domain.ProductFilter{Search: "mug", Limit: 1})
	require.NoError(t, err)
	require.Len(t, mugs, 1)
	assert.Equal(t, "Blue Mug", mugs[0].Name)

	categories, err := a.ListCategories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"kitchen", "office"}, categories)

	_, err = a.GetProduct(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestUpdateInventory_OptimisticLock(t *testing.T) {
	a := newSQLiteAdapter(t)
	ctx := context.Background()
	seedProduct(t, a, "lock-test-item", "1.00", 100)

	inv, err := a.GetInventory(ctx, "lock-test-item")
	require.NoError(t, err)
	assert.Equal(t, 100, inv.Stock)

	inv.Stock = 90
	require.NoError(t, a.UpdateInventory(ctx, *inv))

	// stale version
	err = a.UpdateInventory(ctx, *inv)
	assert.ErrorIs(t, err, ErrOptimisticLock)

	fresh, err := a.GetInventory(ctx, "lock-test-item")
	require.NoError(t, err)
	assert.Equal(t, 90, fresh.Stock)
	assert.Equal(t, inv.Version+1, fresh.Version)
}

func TestCreateOrder_DecrementsStock(t *testing.T) {
	a := newSQLiteAdapter(t)
	ctx := context.Background()
	user := seedUser(t, a, "buyer@example.com")
	seedProduct(t, a, "book", "12.00", 5)

	order := newTestOrder(user.ID, domain.OrderItem{
		ProductID: "book", Name: "Book", Quantity: 2, UnitPrice: decimal.RequireFromString("12.00"),
	})
	require.NoError(t, a.CreateOrder(ctx, order))

	p, err := a.GetProduct(ctx, "book")
	require.NoError(t, err)
	assert.Equal(t, 3, p.Stock)

	orders, err := a.ListOrders(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, order.ID, orders[0].ID)
	assert.Equal(t, domain.OrderStatusPending, orders[0].Status)
	assert.True(t, decimal.RequireFromString("24").Equal(orders[0].Total))
	require.Len(t, orders[0].Items, 1)
	assert.Equal(t, 2, orders[0].Items[0].Quantity)
}

func TestCreateOrder_InsufficientStock(t *testing.T) {
	a := newSQLiteAdapter(t)
	ctx := context.Background()
	user := seedUser(t, a, "buyer@example.com")
	seedProduct(t, a, "plenty", "1.00", 10)
	seedProduct(t, a, "scarce", "1.00", 1)

	order := newTestOrder(user.ID,
		domain.OrderItem{ProductID: "plenty", Name: "Plenty", Quantity: 2, UnitPrice: decimal.NewFromInt(1)},
		domain.OrderItem{ProductID: "scarce", Name: "Scarce", Quantity: 2, UnitPrice: decimal.NewFromInt(1)},
	)
	err := a.CreateOrder(ctx, order)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	p, err := a.GetProduct(ctx, "plenty")
	require.NoError(t, err)
	assert.Equal(t, 10, p.Stock, "stock must be restored by rollback")

	orders, err := a.ListOrders(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestCreateOrder_ConsumesOnlyOrderedCartRows(t *testing.T) {
	a := newSQLiteAdapter(t)
	ctx := context.Background()
	user := seedUser(t, a, "buyer@example.com")
	seedProduct(t, a, "mug", "5.00", 10)
	seedProduct(t, a, "pen", "1.00", 10)
	seedProduct(t, a, "cup", "2.00", 10)

	require.NoError(t, a.AddToCart(ctx, user.ID, "mug", 2))
	require.NoError(t, a.AddToCart(ctx, user.ID, "cup", 1))

	// built from a snapshot of mug x2 and cup x1
	order := newTestOrder(user.ID,
		domain.OrderItem{ProductID: "mug", Name: "Mug", Quantity: 2, UnitPrice: decimal.NewFromInt(5)},
		domain.OrderItem{ProductID: "cup", Name: "Cup", Quantity: 1, UnitPrice: decimal.NewFromInt(2)},
	)

	// rows written after the snapshot was taken
	require.NoError(t, a.AddToCart(ctx, user.ID, "pen", 3))
	require.NoError(t, a.AddToCart(ctx, user.ID, "cup", 1))

	require.NoError(t, a.CreateOrder(ctx, order))

	items, err := a.GetCartItems(ctx, user.ID)
	require.NoError(t, err)

	left := make(map[string]int)
	for _, item := range items {
		left[item.ProductID] = item.Quantity
	}
	assert.Equal(t, map[string]int{"pen": 3, "cup": 1}, left)
}

func TestCreateOrder_FailureKeepsCart(t *testing.T) {
	a := newSQLiteAdapter(t)
	ctx := context.Background()
	user := seedUser(t, a, "buyer@example.com")
	seedProduct(t, a, "scarce", "1.00", 1)

	require.NoError(t, a.AddToCart(ctx, user.ID, "scarce", 1))
	order := newTestOrder(user.ID, domain.OrderItem{ProductID: "scarce", Name: "Scarce", Quantity: 2, UnitPrice: decimal.NewFromInt(1)})
	assert.ErrorIs(t, a.CreateOrder(ctx, order), domain.ErrInsufficientStock)

	items, err := a.GetCartItems(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].Quantity)
}

func TestListProducts_SearchIsLiteral(t *testing.T) {
	a := newSQLiteAdapter(t)
	ctx := context.Background()
	for _, p := range []domain.Product{
		{ID: "p1", Name: "100% Cotton Tee", Price: decimal.NewFromInt(10), Stock: 1},
		{ID: "p2", Name: "1000 Piece Puzzle", Price: decimal.NewFromInt(10), Stock: 1},
		{ID: "p3", Name: "snake_case Mug", Price: decimal.NewFromInt(10), Stock: 1},
		{ID: "p4", Name: "snakeXcase Mug", Price: decimal.NewFromInt(10), Stock: 1},
		{ID: "p5", Name: "Wow! Lamp", Price: decimal.NewFromInt(10), Stock: 1},
	} {
		require.NoError(t, a.UpsertProduct(ctx, p))
	}

	tests := []struct {
		search string
		want   []string
	}{
		{"100%", []string{"p1"}},
		{"snake_case", []string{"p3"}},
		{"%", []string{"p1"}},
		{"_", []string{"p3"}},
		{"!", []string{"p5"}},
	}

	for _, tt := range tests {
		t.Run(tt.search, func(t *testing.T) {
			products, err := a.ListProducts(ctx, domain.ProductFilter{Search: tt.search})
			require.NoError(t, err)

			var ids []string
			for _, p := range products {
				ids = append(ids, p.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func newTestOrder(userID string, items ...domain.OrderItem) domain.Order {
	now := time.Now()
	return domain.Order{
		ID:        uuid.NewString(),
		UserID:    userID,
		Status:    domain.OrderStatusPending,
		Items:     items,
		Total:     domain.OrderTotal(items),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestSplitStatements(t *testing.T) {
	stmts := splitStatements(extractUpMigration("-- +migrate Up\nCREATE TABLE a (x INT);\nCREATE TABLE b (y INT);\n\n-- +migrate Down\nDROP TABLE a;\n"))
	assert.Equal(t, []string{"CREATE TABLE a (x INT)", "CREATE TABLE b (y INT)"}, stmts)
}
