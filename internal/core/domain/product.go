package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is read-only catalog data as far as the cart is concerned.
type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	ImageURL    string          `json:"image_url"`
	Category    string          `json:"category"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ProductFilter narrows a catalog listing. Zero values mean "no constraint".
type ProductFilter struct {
	Category string
	Search   string
	Limit    int
	Offset   int
}

func (p Product) InStock() bool {
	return p.Stock > 0
}
