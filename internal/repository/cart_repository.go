package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikolayk812/pdv-ledger/internal/domain"
	"github.com/nikolayk812/pdv-ledger/internal/port"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

const (
	getCartSQL = `SELECT currency, discount, customer_id, notes, sale_key, updated_at
FROM carts WHERE owner_id = $1`

	getItemsSQL = `SELECT product_id, product_name, product_price, product_stock, quantity, unit_price, discount
FROM cart_items WHERE owner_id = $1 ORDER BY position`

	getPaymentsSQL = `SELECT method, amount, installments
FROM cart_payments WHERE owner_id = $1 ORDER BY position`

	upsertCartSQL = `INSERT INTO carts (owner_id, currency, discount, customer_id, notes, sale_key, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (owner_id) DO UPDATE
SET currency = EXCLUDED.currency,
    discount = EXCLUDED.discount,
    customer_id = EXCLUDED.customer_id,
    notes = EXCLUDED.notes,
    sale_key = EXCLUDED.sale_key,
    updated_at = EXCLUDED.updated_at`

	deleteItemsSQL    = `DELETE FROM cart_items WHERE owner_id = $1`
	deletePaymentsSQL = `DELETE FROM cart_payments WHERE owner_id = $1`

	insertItemSQL = `INSERT INTO cart_items
(owner_id, position, product_id, product_name, product_price, product_stock, quantity, unit_price, discount)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	insertPaymentSQL = `INSERT INTO cart_payments (owner_id, position, method, amount, installments)
VALUES ($1, $2, $3, $4, $5)`

	deleteCartSQL = `DELETE FROM carts WHERE owner_id = $1`
)

type cartRepository struct {
	q    querier
	pool *pgxpool.Pool
}

func NewCart(pool *pgxpool.Pool) (port.CartRepository, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}

	return &cartRepository{
		q:    pool,
		pool: pool,
	}, nil
}

func NewCartWithTx(tx pgx.Tx) port.CartRepository {
	return &cartRepository{
		q:    tx,
		pool: nil, // use provided transaction instead
	}
}

func (r *cartRepository) GetCart(ctx context.Context, ownerID string) (domain.Cart, error) {
	if ownerID == "" {
		return domain.Cart{}, fmt.Errorf("ownerID is empty")
	}

	var (
		cart         = domain.Cart{OwnerID: ownerID}
		currencyCode string
		customerID   *int64
		saleKey      *uuid.UUID
	)

	err := r.q.QueryRow(ctx, getCartSQL, ownerID).
		Scan(&currencyCode, &cart.Discount, &customerID, &cart.Notes, &saleKey, &cart.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Cart{}, port.ErrCartNotFound
	}
	if err != nil {
		return domain.Cart{}, fmt.Errorf("q.QueryRow carts: %w", err)
	}

	cart.Currency, err = currency.ParseISO(currencyCode)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("currency[%s] is not valid: %w", currencyCode, err)
	}
	cart.CustomerID = customerID
	if saleKey != nil {
		cart.SaleKey = *saleKey
	}

	itemRows, err := r.q.Query(ctx, getItemsSQL, ownerID)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("q.Query cart_items: %w", err)
	}
	cart.Items, err = pgx.CollectRows(itemRows, scanCartItem)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("pgx.CollectRows cart_items: %w", err)
	}

	paymentRows, err := r.q.Query(ctx, getPaymentsSQL, ownerID)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("q.Query cart_payments: %w", err)
	}
	cart.Payments, err = pgx.CollectRows(paymentRows, scanPayment)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("pgx.CollectRows cart_payments: %w", err)
	}

	return cart, nil
}

func (r *cartRepository) SaveCart(ctx context.Context, cart domain.Cart) error {
	if cart.OwnerID == "" {
		return fmt.Errorf("ownerID is empty")
	}

	_, err := withTx(ctx, r.txBeginner(), r.q, func(q querier) (struct{}, error) {
		return struct{}{}, saveCart(ctx, q, cart)
	})
	return err
}

func (r *cartRepository) DeleteCart(ctx context.Context, ownerID string) (bool, error) {
	if ownerID == "" {
		return false, fmt.Errorf("ownerID is empty")
	}

	tag, err := r.q.Exec(ctx, deleteCartSQL, ownerID)
	if err != nil {
		return false, fmt.Errorf("q.Exec: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// txBeginner returns nil when the repository is bound to a caller's transaction.
func (r *cartRepository) txBeginner() txBeginner {
	if r.pool == nil {
		return nil
	}
	return r.pool
}

func saveCart(ctx context.Context, q querier, cart domain.Cart) error {
	unit := cart.Currency
	if unit == (currency.Unit{}) {
		unit = domain.DefaultCurrency
	}

	batch := &pgx.Batch{}
	batch.Queue(upsertCartSQL,
		cart.OwnerID, unit.String(), cart.Discount, cart.CustomerID, cart.Notes, saleKey(cart), updatedAt(cart))
	batch.Queue(deleteItemsSQL, cart.OwnerID)
	batch.Queue(deletePaymentsSQL, cart.OwnerID)

	for i, item := range cart.Items {
		batch.Queue(insertItemSQL,
			cart.OwnerID, i, item.ProductID,
			item.Product.Name, item.Product.Price, item.Product.Stock,
			item.Quantity, item.UnitPrice, item.Discount)
	}
	for i, p := range cart.Payments {
		batch.Queue(insertPaymentSQL, cart.OwnerID, i, string(p.Method), p.Amount, p.Installments)
	}

	if err := q.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("q.SendBatch: %w", err)
	}

	return nil
}

func scanCartItem(row pgx.CollectableRow) (domain.CartItem, error) {
	var (
		item         domain.CartItem
		productPrice decimal.Decimal
	)

	err := row.Scan(
		&item.ProductID,
		&item.Product.Name,
		&productPrice,
		&item.Product.Stock,
		&item.Quantity,
		&item.UnitPrice,
		&item.Discount,
	)
	if err != nil {
		return domain.CartItem{}, err
	}

	item.Product.ID = item.ProductID
	item.Product.Price = productPrice

	return item, nil
}

func scanPayment(row pgx.CollectableRow) (domain.Payment, error) {
	var (
		p      domain.Payment
		method string
	)

	if err := row.Scan(&method, &p.Amount, &p.Installments); err != nil {
		return domain.Payment{}, err
	}

	parsed, err := domain.ParsePaymentMethod(method)
	if err != nil {
		return domain.Payment{}, err
	}
	p.Method = parsed

	return p, nil
}

// saleKey maps the zero key to NULL.
func saleKey(cart domain.Cart) *uuid.UUID {
	if cart.SaleKey == uuid.Nil {
		return nil
	}
	key := cart.SaleKey
	return &key
}

func updatedAt(cart domain.Cart) time.Time {
	if cart.UpdatedAt.IsZero() {
		return time.Now().UTC()
	}
	return cart.UpdatedAt
}
