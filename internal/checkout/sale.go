package checkout

import (
	"github.com/google/uuid"
	"github.com/nikolayk812/pdv-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

// SaleRequest is the body sent to the order API to register a sale.
type SaleRequest struct {
	IdempotencyKey uuid.UUID       `json:"idempotency_key"`
	RegisterID     string          `json:"register_id"`
	CustomerID     *int64          `json:"customer_id,omitempty"`
	Notes          string          `json:"notes,omitempty"`
	Currency       string          `json:"currency"`
	Items          []SaleItem      `json:"items"`
	Payments       []SalePayment   `json:"payments"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	Discount       decimal.Decimal `json:"discount"`
	Total          decimal.Decimal `json:"total"`
	TotalPaid      decimal.Decimal `json:"total_paid"`
	Change         decimal.Decimal `json:"change"`
}

type SaleItem struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Discount  decimal.Decimal `json:"discount"`
	Total     decimal.Decimal `json:"total"`
}

type SalePayment struct {
	Method       domain.PaymentMethod `json:"method"`
	Amount       decimal.Decimal      `json:"amount"`
	Installments int                  `json:"installments"`
}

// SaleResult is what the order API returns for a registered sale.
type SaleResult struct {
	ID string `json:"id"`
}

// NewSaleRequest builds the request for cart. A cart without a sale key
// gets a fresh one.
func NewSaleRequest(cart domain.Cart, totals domain.Totals) SaleRequest {
	req := SaleRequest{
		IdempotencyKey: cart.SaleKey,
		RegisterID:     cart.OwnerID,
		CustomerID:     cart.CustomerID,
		Notes:          cart.Notes,
		Currency:       cart.Currency.String(),
		Items:          make([]SaleItem, 0, len(cart.Items)),
		Payments:       make([]SalePayment, 0, len(cart.Payments)),
		Subtotal:       totals.Subtotal,
		Discount:       cart.Discount,
		Total:          totals.Total,
		TotalPaid:      totals.TotalPaid,
		Change:         totals.Change,
	}

	if req.IdempotencyKey == uuid.Nil {
		req.IdempotencyKey = uuid.New()
	}

	for _, item := range cart.Items {
		req.Items = append(req.Items, SaleItem{
			ProductID: item.ProductID,
			Name:      item.Product.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Discount:  item.Discount,
			Total:     item.Net(),
		})
	}
	for _, p := range cart.Payments {
		req.Payments = append(req.Payments, SalePayment(p))
	}

	return req
}
