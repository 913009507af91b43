package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/nikolayk812/pdv-ledger/internal/domain"
	"github.com/nikolayk812/pdv-ledger/internal/port"
)

// memoryCartRepository keeps carts in process memory. Carts do not survive
// a restart; it is meant for local runs and tests.
type memoryCartRepository struct {
	mu    sync.RWMutex
	carts map[string]domain.Cart
}

func NewMemoryCart() port.CartRepository {
	return &memoryCartRepository{
		carts: make(map[string]domain.Cart),
	}
}

func (r *memoryCartRepository) GetCart(_ context.Context, ownerID string) (domain.Cart, error) {
	if ownerID == "" {
		return domain.Cart{}, fmt.Errorf("ownerID is empty")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	cart, ok := r.carts[ownerID]
	if !ok {
		return domain.Cart{}, port.ErrCartNotFound
	}

	return cart.Clone(), nil
}

func (r *memoryCartRepository) SaveCart(_ context.Context, cart domain.Cart) error {
	if cart.OwnerID == "" {
		return fmt.Errorf("ownerID is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored := cart.Clone()
	stored.UpdatedAt = updatedAt(cart)
	r.carts[cart.OwnerID] = stored

	return nil
}

func (r *memoryCartRepository) DeleteCart(_ context.Context, ownerID string) (bool, error) {
	if ownerID == "" {
		return false, fmt.Errorf("ownerID is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.carts[ownerID]
	delete(r.carts, ownerID)

	return ok, nil
}
