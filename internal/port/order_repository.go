package port

import (
	"context"

	"github.com/rl1809/storefront/internal/core/domain"
)

type OrderRepository interface {
	// CreateOrder persists an order, decrements product stock and removes the
	// ordered quantities from the user's cart, all in one transaction
	CreateOrder(ctx context.Context, order domain.Order) error

	// ListOrders returns the user's orders, newest first
	ListOrders(ctx context.Context, userID string) ([]domain.Order, error)
}
