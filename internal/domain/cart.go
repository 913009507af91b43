package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// Cart is the persisted state of a ledger. Totals are not stored, they are
// derived from these fields.
type Cart struct {
	OwnerID    string
	Currency   currency.Unit
	Items      []CartItem
	Payments   []Payment
	Discount   decimal.Decimal
	CustomerID *int64
	Notes      string

	// SaleKey identifies the sale built from the cart's current contents.
	// It is assigned when checkout starts and dropped by any change, so
	// resubmitting an unchanged cart reuses it.
	SaleKey   uuid.UUID
	UpdatedAt time.Time
}

// IsEmpty reports whether the cart holds nothing worth keeping.
func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0 &&
		len(c.Payments) == 0 &&
		c.Discount.IsZero() &&
		c.CustomerID == nil &&
		c.Notes == ""
}

type CartItem struct {
	ProductID int64
	Product   Product
	Quantity  int
	UnitPrice decimal.Decimal
	Discount  decimal.Decimal
}

// Gross is quantity × unit price, before the line discount.
func (i CartItem) Gross() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Net is the line's contribution to the subtotal. It may be negative when
// the line discount exceeds the gross.
func (i CartItem) Net() decimal.Decimal {
	return i.Gross().Sub(i.Discount)
}

type Totals struct {
	Subtotal  decimal.Decimal
	Total     decimal.Decimal
	ItemCount int
	TotalPaid decimal.Decimal
	Remaining decimal.Decimal
	Change    decimal.Decimal
}

// CanFinalize reports whether a sale can be closed: at least one unit in
// the cart and payments covering the total. Lines never hold less than one
// unit, so ItemCount is zero only for a cart without lines.
func (t Totals) CanFinalize() bool {
	return t.ItemCount > 0 && t.TotalPaid.GreaterThanOrEqual(t.Total)
}

// Clone returns a deep copy of the cart.
func (c Cart) Clone() Cart {
	out := c
	if c.Items != nil {
		out.Items = make([]CartItem, len(c.Items))
		copy(out.Items, c.Items)
	}
	if c.Payments != nil {
		out.Payments = make([]Payment, len(c.Payments))
		copy(out.Payments, c.Payments)
	}
	if c.CustomerID != nil {
		id := *c.CustomerID
		out.CustomerID = &id
	}
	return out
}
