package domain

import "time"

// Inventory is the stock view of a product. Version guards concurrent restocks.
type Inventory struct {
	ProductID string
	Stock     int
	Version   int
	UpdatedAt time.Time
}
