package port

import (
	"context"

	"github.com/rl1809/storefront/internal/core/domain"
)

type ProductRepository interface {
	ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	ListCategories(ctx context.Context) ([]string, error)
	UpsertProduct(ctx context.Context, product domain.Product) error

	// GetInventory retrieves the stock view of a product
	GetInventory(ctx context.Context, productID string) (*domain.Inventory, error)

	// UpdateInventory sets stock with a version check for optimistic locking
	UpdateInventory(ctx context.Context, inventory domain.Inventory) error
}
