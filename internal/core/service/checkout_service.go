package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

var (
	ErrDuplicateRequest = errors.New("duplicate request")
	ErrEmptyCart        = errors.New("cart is empty")
)

// CheckoutService turns a session's cart into an order.
type CheckoutService struct {
	carts    port.CartRepository
	orders   port.OrderRepository
	sessions port.SessionStore
	cache    port.ProductCache
	log      logrus.FieldLogger
	now      func() time.Time
}

func NewCheckoutService(carts port.CartRepository, orders port.OrderRepository, sessions port.SessionStore, cache port.ProductCache, log logrus.FieldLogger) *CheckoutService {
	return &CheckoutService{
		carts:    carts,
		orders:   orders,
		sessions: sessions,
		cache:    cache,
		log:      log.WithField("component", "checkout"),
		now:      time.Now,
	}
}

// Checkout places an order for everything in the session's cart. requestID
// makes retries safe: a second call with the same id is rejected with
// ErrDuplicateRequest once an order was placed for it. A checkout that fails
// before the order commits releases the id for reuse.
func (s *CheckoutService) Checkout(ctx context.Context, session *Session, requestID string) (*domain.Order, error) {
	user := session.Auth.Current()
	if user == nil {
		return nil, ErrNotAuthenticated
	}
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return nil, fmt.Errorf("%w: request id is required", ErrInvalidInput)
	}

	idempotencyKey := fmt.Sprintf("checkout:%s:%s", user.ID, requestID)
	ok, err := s.sessions.SetIdempotency(ctx, idempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("idempotency check failed: %w", err)
	}
	if !ok {
		return nil, ErrDuplicateRequest
	}

	order, err := s.placeOrder(ctx, user.ID)
	if err != nil {
		if relErr := s.sessions.ReleaseIdempotency(ctx, idempotencyKey); relErr != nil {
			s.log.WithField("request_id", requestID).WithError(relErr).Warn("failed to release idempotency key")
		}
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"order_id": order.ID, "user_id": user.ID, "total": order.Total.StringFixed(2)}).Info("order placed")

	// stock changed for every ordered product
	for _, item := range order.Items {
		if err := s.cache.InvalidateProduct(ctx, item.ProductID); err != nil {
			s.log.WithField("product_id", item.ProductID).WithError(err).Warn("product cache invalidation failed")
		}
	}

	// the order consumed the cart rows it was built from
	session.Cart.Refresh(ctx)

	return order, nil
}

func (s *CheckoutService) placeOrder(ctx context.Context, userID string) (*domain.Order, error) {
	// Price from the repository, not from the session's possibly stale view.
	items, err := s.carts.GetCartItems(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	order, err := s.buildOrder(userID, items)
	if err != nil {
		return nil, err
	}

	if err := s.orders.CreateOrder(ctx, order); err != nil {
		s.log.WithField("order_id", order.ID).WithError(err).Error("failed to save order")
		return nil, fmt.Errorf("create order: %w", err)
	}
	return &order, nil
}

func (s *CheckoutService) ListOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	orders, err := s.orders.ListOrders(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

func (s *CheckoutService) buildOrder(userID string, items []domain.CartItem) (domain.Order, error) {
	orderItems := make([]domain.OrderItem, 0, len(items))
	for _, item := range items {
		if item.Product == nil {
			return domain.Order{}, fmt.Errorf("cart item %s: %w", item.ID, domain.ErrProductNotFound)
		}
		orderItems = append(orderItems, domain.OrderItem{
			ProductID: item.ProductID,
			Name:      item.Product.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.Product.Price,
		})
	}

	now := s.now().UTC()
	return domain.Order{
		ID:        uuid.NewString(),
		UserID:    userID,
		Status:    domain.OrderStatusPending,
		Items:     orderItems,
		Total:     domain.OrderTotal(orderItems),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
