package http

import (
	"time"

	"github.com/nikolayk812/pdv-ledger/internal/domain"
	"github.com/nikolayk812/pdv-ledger/internal/ledger"
	"github.com/shopspring/decimal"
)

type AddItemRequestDTO struct {
	Product  domain.Product `json:"product"`
	Quantity int            `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity *int `json:"quantity"`
}

type DiscountRequestDTO struct {
	Discount decimal.Decimal `json:"discount"`
}

type AddPaymentRequestDTO struct {
	Method       string          `json:"method"`
	Amount       decimal.Decimal `json:"amount"`
	Installments int             `json:"installments"`
}

type CustomerRequestDTO struct {
	CustomerID *int64 `json:"customer_id"`
}

type NotesRequestDTO struct {
	Notes string `json:"notes"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

type CartResponse struct {
	OwnerID     string           `json:"owner_id"`
	Currency    string           `json:"currency"`
	Items       []CartItemDTO    `json:"items"`
	Payments    []domain.Payment `json:"payments"`
	Discount    decimal.Decimal  `json:"discount"`
	CustomerID  *int64           `json:"customer_id"`
	Notes       string           `json:"notes"`
	UpdatedAt   *time.Time       `json:"updated_at,omitempty"`
	Totals      TotalsDTO        `json:"totals"`
	CanFinalize bool             `json:"can_finalize"`
}

type CartItemDTO struct {
	ProductID int64           `json:"product_id"`
	Product   domain.Product  `json:"product"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Discount  decimal.Decimal `json:"discount"`
	Total     decimal.Decimal `json:"total"`
}

type TotalsDTO struct {
	Subtotal  decimal.Decimal `json:"subtotal"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"item_count"`
	TotalPaid decimal.Decimal `json:"total_paid"`
	Remaining decimal.Decimal `json:"remaining"`
	Change    decimal.Decimal `json:"change"`
}

// newCartResponse derives totals from the same snapshot it renders, so the
// body is consistent even if the ledger changes concurrently.
func newCartResponse(cart domain.Cart) CartResponse {
	totals := ledger.Compute(cart)

	resp := CartResponse{
		OwnerID:    cart.OwnerID,
		Currency:   cart.Currency.String(),
		Items:      make([]CartItemDTO, 0, len(cart.Items)),
		Payments:   make([]domain.Payment, 0, len(cart.Payments)),
		Discount:   cart.Discount,
		CustomerID: cart.CustomerID,
		Notes:      cart.Notes,
		Totals: TotalsDTO{
			Subtotal:  totals.Subtotal,
			Total:     totals.Total,
			ItemCount: totals.ItemCount,
			TotalPaid: totals.TotalPaid,
			Remaining: totals.Remaining,
			Change:    totals.Change,
		},
		CanFinalize: totals.CanFinalize(),
	}
	if !cart.UpdatedAt.IsZero() {
		updated := cart.UpdatedAt
		resp.UpdatedAt = &updated
	}

	for _, item := range cart.Items {
		resp.Items = append(resp.Items, CartItemDTO{
			ProductID: item.ProductID,
			Product:   item.Product,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Discount:  item.Discount,
			Total:     item.Net(),
		})
	}
	resp.Payments = append(resp.Payments, cart.Payments...)

	return resp
}
