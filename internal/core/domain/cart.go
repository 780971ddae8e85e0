package domain

import "github.com/shopspring/decimal"

// CartItem is one persisted cart row, optionally joined with its product.
type CartItem struct {
	ID        string
	UserID    string
	ProductID string
	Quantity  int
	Product   *Product
}

// LineTotal is price times quantity, or zero when the product snapshot is absent.
func (i CartItem) LineTotal() decimal.Decimal {
	if i.Product == nil {
		return decimal.Zero
	}
	return i.Product.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
