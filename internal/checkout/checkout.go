// Package checkout hands a settled cart over to the order API.
package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/nikolayk812/pdv-ledger/internal/ledger"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var ErrNotReady = errors.New("sale cannot be finalized: cart is empty or not fully paid")

type SaleSubmitter interface {
	SubmitSale(ctx context.Context, sale SaleRequest) (SaleResult, error)
}

type Receipt struct {
	SaleID string          `json:"sale_id"`
	Total  decimal.Decimal `json:"total"`
	Change decimal.Decimal `json:"change"`

	// CartCleared is false when the cart changed while the sale was being
	// submitted; the changed cart is kept for the operator to review.
	CartCleared bool `json:"cart_cleared"`
}

type Service struct {
	submitter SaleSubmitter
	logger    *zap.Logger
}

func NewService(submitter SaleSubmitter, logger *zap.Logger) *Service {
	return &Service{
		submitter: submitter,
		logger:    logger,
	}
}

// Checkout submits the ledger's sale and clears the ledger once the order
// API has accepted it. The ledger is left untouched on any error, and a
// retry of the unchanged cart is sent under the same idempotency key.
func (s *Service) Checkout(ctx context.Context, l *ledger.Ledger) (Receipt, error) {
	cart, ok := l.PrepareSale()
	if !ok {
		return Receipt{}, ErrNotReady
	}

	totals := ledger.Compute(cart)
	sale := NewSaleRequest(cart, totals)

	result, err := s.submitter.SubmitSale(ctx, sale)
	if err != nil {
		return Receipt{}, fmt.Errorf("submitter.SubmitSale: %w", err)
	}

	cleared := l.ClearSale(sale.IdempotencyKey)
	if !cleared {
		s.logger.Warn("cart changed during checkout, not cleared",
			zap.String("owner_id", cart.OwnerID),
			zap.String("sale_id", result.ID))
	}

	s.logger.Info("sale finalized",
		zap.String("owner_id", cart.OwnerID),
		zap.String("sale_id", result.ID),
		zap.String("idempotency_key", sale.IdempotencyKey.String()),
		zap.String("total", totals.Total.String()),
		zap.Int("items", totals.ItemCount))

	return Receipt{
		SaleID:      result.ID,
		Total:       totals.Total,
		Change:      totals.Change,
		CartCleared: cleared,
	}, nil
}
