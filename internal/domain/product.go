package domain

import "github.com/shopspring/decimal"

// Product is the catalog snapshot taken when a product is added to a cart.
type Product struct {
	ID    int64           `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Stock int             `json:"stock"`
}
