package port

import (
	"context"

	"github.com/rl1809/storefront/internal/core/domain"
)

// CartRepository is the authoritative store for cart rows. Every call is
// scoped to userID; rows owned by other users are never visible or mutable.
type CartRepository interface {
	// GetCartItems returns the user's rows joined with their product snapshots.
	GetCartItems(ctx context.Context, userID string) ([]domain.CartItem, error)

	// AddToCart upserts a row, adding quantity to an existing row for the same product.
	AddToCart(ctx context.Context, userID, productID string, quantity int) error

	// UpdateCartItem sets the quantity of an existing row.
	UpdateCartItem(ctx context.Context, userID, itemID string, quantity int) error

	RemoveFromCart(ctx context.Context, userID, itemID string) error

	// ClearCart deletes every row owned by the user.
	ClearCart(ctx context.Context, userID string) error
}
