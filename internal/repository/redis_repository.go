package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nikolayk812/pdv-ledger/internal/domain"
	"github.com/nikolayk812/pdv-ledger/internal/port"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

type redisCartRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCart stores each cart as a JSON value. A zero ttl keeps carts
// until they are deleted.
func NewRedisCart(client *redis.Client, ttl time.Duration) (port.CartRepository, error) {
	if client == nil {
		return nil, fmt.Errorf("client is nil")
	}

	return &redisCartRepository{
		client: client,
		ttl:    ttl,
	}, nil
}

func (r *redisCartRepository) GetCart(ctx context.Context, ownerID string) (domain.Cart, error) {
	if ownerID == "" {
		return domain.Cart{}, fmt.Errorf("ownerID is empty")
	}

	data, err := r.client.Get(ctx, cartKey(ownerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Cart{}, port.ErrCartNotFound
	}
	if err != nil {
		return domain.Cart{}, fmt.Errorf("client.Get: %w", err)
	}

	var rec cartRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return domain.Cart{}, fmt.Errorf("json.Unmarshal: %w", err)
	}

	cart, err := rec.toDomain()
	if err != nil {
		return domain.Cart{}, fmt.Errorf("rec.toDomain: %w", err)
	}

	return cart, nil
}

func (r *redisCartRepository) SaveCart(ctx context.Context, cart domain.Cart) error {
	if cart.OwnerID == "" {
		return fmt.Errorf("ownerID is empty")
	}

	data, err := json.Marshal(newCartRecord(cart))
	if err != nil {
		return fmt.Errorf("json.Marshal: %w", err)
	}

	if err := r.client.Set(ctx, cartKey(cart.OwnerID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("client.Set: %w", err)
	}

	return nil
}

func (r *redisCartRepository) DeleteCart(ctx context.Context, ownerID string) (bool, error) {
	if ownerID == "" {
		return false, fmt.Errorf("ownerID is empty")
	}

	n, err := r.client.Del(ctx, cartKey(ownerID)).Result()
	if err != nil {
		return false, fmt.Errorf("client.Del: %w", err)
	}

	return n > 0, nil
}

func cartKey(ownerID string) string {
	return fmt.Sprintf("cart:%s", ownerID)
}

// cartRecord is the JSON layout of a stored cart.
type cartRecord struct {
	OwnerID    string           `json:"owner_id"`
	Currency   string           `json:"currency"`
	Items      []cartItemRecord `json:"items"`
	Payments   []domain.Payment `json:"payments"`
	Discount   decimal.Decimal  `json:"discount"`
	CustomerID *int64           `json:"customer_id,omitempty"`
	Notes      string           `json:"notes,omitempty"`
	SaleKey    uuid.UUID        `json:"sale_key"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

type cartItemRecord struct {
	ProductID int64           `json:"product_id"`
	Product   domain.Product  `json:"product"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Discount  decimal.Decimal `json:"discount"`
}

func newCartRecord(cart domain.Cart) cartRecord {
	unit := cart.Currency
	if unit == (currency.Unit{}) {
		unit = domain.DefaultCurrency
	}

	rec := cartRecord{
		OwnerID:    cart.OwnerID,
		Currency:   unit.String(),
		Payments:   cart.Payments,
		Discount:   cart.Discount,
		CustomerID: cart.CustomerID,
		Notes:      cart.Notes,
		SaleKey:    cart.SaleKey,
		UpdatedAt:  updatedAt(cart),
	}
	for _, item := range cart.Items {
		rec.Items = append(rec.Items, cartItemRecord(item))
	}

	return rec
}

func (rec cartRecord) toDomain() (domain.Cart, error) {
	unit, err := currency.ParseISO(rec.Currency)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("currency[%s] is not valid: %w", rec.Currency, err)
	}

	for _, p := range rec.Payments {
		if _, err := domain.ParsePaymentMethod(string(p.Method)); err != nil {
			return domain.Cart{}, err
		}
	}

	cart := domain.Cart{
		OwnerID:    rec.OwnerID,
		Currency:   unit,
		Payments:   rec.Payments,
		Discount:   rec.Discount,
		CustomerID: rec.CustomerID,
		Notes:      rec.Notes,
		SaleKey:    rec.SaleKey,
		UpdatedAt:  rec.UpdatedAt,
	}
	for _, item := range rec.Items {
		cart.Items = append(cart.Items, domain.CartItem(item))
	}

	return cart, nil
}
