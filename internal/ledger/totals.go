package ledger

import (
	"github.com/nikolayk812/pdv-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

// Compute derives the totals of a cart.
//
// Line nets are summed without a per-line floor; only the total is
// clamped at zero, after the cart discount.
func Compute(cart domain.Cart) domain.Totals {
	subtotal := decimal.Zero
	itemCount := 0
	for _, item := range cart.Items {
		subtotal = subtotal.Add(item.Net())
		itemCount += item.Quantity
	}

	total := domain.NonNegative(subtotal.Sub(cart.Discount))

	paid := decimal.Zero
	for _, p := range cart.Payments {
		paid = paid.Add(p.Amount)
	}

	return domain.Totals{
		Subtotal:  subtotal,
		Total:     total,
		ItemCount: itemCount,
		TotalPaid: paid,
		Remaining: domain.NonNegative(total.Sub(paid)),
		Change:    domain.NonNegative(paid.Sub(total)),
	}
}
