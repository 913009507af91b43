package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nikolayk812/pdv-ledger/internal/checkout"
	"github.com/nikolayk812/pdv-ledger/internal/domain"
	"github.com/nikolayk812/pdv-ledger/internal/ledger"
	"go.uber.org/zap"
)

// LedgerProvider hands out an owner's ledger together with a func that
// releases it once the request is done.
type LedgerProvider interface {
	Acquire(ctx context.Context, ownerID string) (*ledger.Ledger, func(), error)
}

type CheckoutService interface {
	Checkout(ctx context.Context, l *ledger.Ledger) (checkout.Receipt, error)
}

type CartHandler struct {
	ledgers  LedgerProvider
	checkout CheckoutService
	logger   *zap.Logger
	timeout  time.Duration
}

func NewCartHandler(ledgers LedgerProvider, checkoutSvc CheckoutService, logger *zap.Logger, timeout time.Duration) *CartHandler {
	return &CartHandler{
		ledgers:  ledgers,
		checkout: checkoutSvc,
		logger:   logger,
		timeout:  timeout,
	}
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	l, release, ok := h.ledger(w, r)
	if !ok {
		return
	}
	defer release()

	respondJSON(w, http.StatusOK, newCartResponse(l.Snapshot()))
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(l *ledger.Ledger) {
		l.Clear()
	})
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequestDTO
	if !decode(w, r, &req) {
		return
	}

	if req.Product.ID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product.id must be positive")
		return
	}
	if req.Product.Price.IsNegative() {
		respondError(w, http.StatusBadRequest, "invalid_price", "product.price must not be negative")
		return
	}
	if req.Quantity < 0 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must not be negative")
		return
	}

	h.mutateWithStatus(w, r, http.StatusCreated, func(l *ledger.Ledger) {
		l.AddItem(req.Product, req.Quantity)
		h.logger.Debug("item added",
			zap.String("owner_id", l.OwnerID()),
			zap.Int64("product_id", req.Product.ID),
			zap.Int("quantity", req.Quantity))
	})
}

func (h *CartHandler) ClearItems(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(l *ledger.Ledger) {
		l.ClearItems()
	})
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}
	var req UpdateQuantityRequestDTO
	if !decode(w, r, &req) {
		return
	}
	if req.Quantity == nil {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity is required")
		return
	}

	h.mutate(w, r, func(l *ledger.Ledger) {
		l.UpdateQuantity(productID, *req.Quantity)
	})
}

func (h *CartHandler) UpdateItemDiscount(w http.ResponseWriter, r *http.Request) {
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}
	var req DiscountRequestDTO
	if !decode(w, r, &req) {
		return
	}

	h.mutate(w, r, func(l *ledger.Ledger) {
		l.UpdateItemDiscount(productID, req.Discount)
	})
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	h.mutate(w, r, func(l *ledger.Ledger) {
		l.RemoveItem(productID)
	})
}

func (h *CartHandler) AddPayment(w http.ResponseWriter, r *http.Request) {
	var req AddPaymentRequestDTO
	if !decode(w, r, &req) {
		return
	}

	method, err := domain.ParsePaymentMethod(req.Method)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_payment_method", err.Error())
		return
	}
	if !req.Amount.IsPositive() {
		respondError(w, http.StatusBadRequest, "invalid_amount", "amount must be positive")
		return
	}
	if req.Installments < 0 {
		respondError(w, http.StatusBadRequest, "invalid_installments", "installments must not be negative")
		return
	}

	h.mutateWithStatus(w, r, http.StatusCreated, func(l *ledger.Ledger) {
		l.AddPayment(method, req.Amount, req.Installments)
	})
}

func (h *CartHandler) ClearPayments(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(l *ledger.Ledger) {
		l.ClearPayments()
	})
}

func (h *CartHandler) RemovePayment(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_index", "index must be an integer")
		return
	}

	h.mutate(w, r, func(l *ledger.Ledger) {
		l.RemovePayment(index)
	})
}

func (h *CartHandler) SetDiscount(w http.ResponseWriter, r *http.Request) {
	var req DiscountRequestDTO
	if !decode(w, r, &req) {
		return
	}

	h.mutate(w, r, func(l *ledger.Ledger) {
		l.SetDiscount(req.Discount)
	})
}

func (h *CartHandler) SetCustomer(w http.ResponseWriter, r *http.Request) {
	var req CustomerRequestDTO
	if !decode(w, r, &req) {
		return
	}

	h.mutate(w, r, func(l *ledger.Ledger) {
		l.SetCustomer(req.CustomerID)
	})
}

func (h *CartHandler) SetNotes(w http.ResponseWriter, r *http.Request) {
	var req NotesRequestDTO
	if !decode(w, r, &req) {
		return
	}

	h.mutate(w, r, func(l *ledger.Ledger) {
		l.SetNotes(req.Notes)
	})
}

func (h *CartHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	l, release, ok := h.ledger(w, r)
	if !ok {
		return
	}
	defer release()

	receipt, err := h.checkout.Checkout(ctx, l)
	if errors.Is(err, checkout.ErrNotReady) {
		respondError(w, http.StatusConflict, "not_ready", err.Error())
		return
	}
	if err != nil {
		h.logger.Error("checkout failed", zap.String("owner_id", l.OwnerID()), zap.Error(err))
		respondError(w, http.StatusBadGateway, "checkout_failed", err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, receipt)
}

func (h *CartHandler) mutate(w http.ResponseWriter, r *http.Request, fn func(l *ledger.Ledger)) {
	h.mutateWithStatus(w, r, http.StatusOK, fn)
}

func (h *CartHandler) mutateWithStatus(w http.ResponseWriter, r *http.Request, status int, fn func(l *ledger.Ledger)) {
	l, release, ok := h.ledger(w, r)
	if !ok {
		return
	}
	defer release()

	fn(l)
	respondJSON(w, status, newCartResponse(l.Snapshot()))
}

func (h *CartHandler) ledger(w http.ResponseWriter, r *http.Request) (*ledger.Ledger, func(), bool) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	ownerID := chi.URLParam(r, "ownerID")
	l, release, err := h.ledgers.Acquire(ctx, ownerID)
	if err != nil {
		h.logger.Error("load ledger", zap.String("owner_id", ownerID), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "ledger_unavailable", "could not load cart")
		return nil, nil, false
	}
	return l, release, true
}

func productIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "productID must be an integer")
		return 0, false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, details string) {
	respondJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Code:    code,
		Details: details,
	})
}
