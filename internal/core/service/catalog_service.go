package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// CatalogService serves product browsing. Single-product reads go through the
// cache; listings always hit the repository.
type CatalogService struct {
	products port.ProductRepository
	cache    port.ProductCache
	log      logrus.FieldLogger
}

func NewCatalogService(products port.ProductRepository, cache port.ProductCache, log logrus.FieldLogger) *CatalogService {
	return &CatalogService{
		products: products,
		cache:    cache,
		log:      log.WithField("component", "catalog"),
	}
}

func (s *CatalogService) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	filter.Category = strings.TrimSpace(filter.Category)
	filter.Search = strings.TrimSpace(filter.Search)
	if filter.Limit <= 0 {
		filter.Limit = defaultPageSize
	}
	if filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	products, err := s.products.ListProducts(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

func (s *CatalogService) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	cached, err := s.cache.GetProduct(ctx, id)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, port.ErrCacheMiss) {
		s.log.WithField("product_id", id).WithError(err).Warn("product cache read failed")
	}

	product, err := s.products.GetProduct(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}

	if err := s.cache.SetProduct(ctx, *product); err != nil {
		s.log.WithField("product_id", id).WithError(err).Warn("product cache write failed")
	}
	return product, nil
}

func (s *CatalogService) Categories(ctx context.Context) ([]string, error) {
	categories, err := s.products.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

// SaveProduct creates or replaces a catalog entry and drops its cached copy.
func (s *CatalogService) SaveProduct(ctx context.Context, product domain.Product) error {
	if strings.TrimSpace(product.ID) == "" || strings.TrimSpace(product.Name) == "" {
		return fmt.Errorf("%w: product id and name are required", ErrInvalidInput)
	}
	if product.Price.IsNegative() || product.Stock < 0 {
		return fmt.Errorf("%w: price and stock must not be negative", ErrInvalidInput)
	}

	if err := s.products.UpsertProduct(ctx, product); err != nil {
		return fmt.Errorf("save product: %w", err)
	}
	s.invalidate(ctx, product.ID)
	return nil
}

// Restock adds delta to a product's stock. A concurrent stock change between
// the read and the write surfaces as domain.ErrStockConflict.
func (s *CatalogService) Restock(ctx context.Context, productID string, delta int) (*domain.Inventory, error) {
	inv, err := s.products.GetInventory(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("get inventory: %w", err)
	}

	if inv.Stock+delta < 0 {
		return nil, domain.ErrInsufficientStock
	}
	inv.Stock += delta

	if err := s.products.UpdateInventory(ctx, *inv); err != nil {
		return nil, fmt.Errorf("update inventory: %w", err)
	}
	inv.Version++

	s.invalidate(ctx, productID)
	s.log.WithFields(logrus.Fields{"product_id": productID, "stock": inv.Stock}).Info("product restocked")
	return inv, nil
}

func (s *CatalogService) invalidate(ctx context.Context, productID string) {
	if err := s.cache.InvalidateProduct(ctx, productID); err != nil {
		s.log.WithField("product_id", productID).WithError(err).Warn("product cache invalidation failed")
	}
}
