package domain

import "errors"

// Storage-level rule violations. Adapters return these so callers can map them
// without knowing which backend enforced the rule.
var (
	ErrProductNotFound   = errors.New("product not found")
	ErrCartItemNotFound  = errors.New("cart item not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrUserNotFound      = errors.New("user not found")
	ErrEmailTaken        = errors.New("email already registered")
	ErrOrderNotFound     = errors.New("order not found")
	ErrStockConflict     = errors.New("stock version conflict")
)
