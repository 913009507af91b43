package port

import (
	"context"
	"errors"

	"github.com/nikolayk812/pdv-ledger/internal/domain"
)

var ErrCartNotFound = errors.New("cart not found")

// CartRepository stores one cart snapshot per owner.
type CartRepository interface {
	// GetCart returns ErrCartNotFound when nothing is stored for ownerID.
	GetCart(ctx context.Context, ownerID string) (domain.Cart, error)
	// SaveCart replaces the stored snapshot of cart.OwnerID.
	SaveCart(ctx context.Context, cart domain.Cart) error
	DeleteCart(ctx context.Context, ownerID string) (bool, error)
}
