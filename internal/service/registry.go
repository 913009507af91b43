package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nikolayk812/pdv-ledger/internal/ledger"
	"github.com/nikolayk812/pdv-ledger/internal/persist"
	"github.com/nikolayk812/pdv-ledger/internal/port"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/currency"
)

// Registry hands out one ledger per owner (register). Ledgers are
// rehydrated from the repository on first use and persisted by a
// background saver after every mutation. A ledger that is empty once its
// last holder releases it is dropped together with its saver.
type Registry struct {
	repo     port.CartRepository
	logger   *zap.Logger
	currency currency.Unit

	sfg singleflight.Group // one repository load per owner

	mu       sync.Mutex
	entries  map[string]*entry
	draining map[string]chan struct{} // evicted owners whose saver is still closing
	closed   bool
}

type entry struct {
	ledger      *ledger.Ledger
	saver       *persist.Saver
	unsubscribe func()
	refs        int
}

func NewRegistry(repo port.CartRepository, logger *zap.Logger, unit currency.Unit) *Registry {
	return &Registry{
		repo:     repo,
		logger:   logger,
		currency: unit,
		entries:  make(map[string]*entry),
		draining: make(map[string]chan struct{}),
	}
}

var ErrRegistryClosed = errors.New("registry closed")

// Acquire returns the owner's ledger and a release func the caller must
// call once done with it. The ledger must not be used after release.
func (r *Registry) Acquire(ctx context.Context, ownerID string) (*ledger.Ledger, func(), error) {
	if ownerID == "" {
		return nil, nil, fmt.Errorf("ownerID is empty")
	}

	for {
		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			return nil, nil, ErrRegistryClosed
		}
		if e, ok := r.entries[ownerID]; ok {
			e.refs++
			r.mu.Unlock()

			var once sync.Once
			return e.ledger, func() {
				once.Do(func() { r.release(ownerID, e) })
			}, nil
		}
		r.mu.Unlock()

		// the loaded entry is picked up on the next pass
		_, err, _ := r.sfg.Do(ownerID, func() (any, error) {
			return nil, r.load(ctx, ownerID)
		})
		if err != nil {
			return nil, nil, err
		}
	}
}

// Len is the number of ledgers held in memory.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Registry) load(ctx context.Context, ownerID string) error {
	r.mu.Lock()
	_, ok := r.entries[ownerID]
	draining := r.draining[ownerID]
	r.mu.Unlock()
	if ok {
		return nil
	}

	// an evicted ledger may still be deleting its stored cart
	if draining != nil {
		select {
		case <-draining:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	var l *ledger.Ledger

	cart, err := r.repo.GetCart(ctx, ownerID)
	switch {
	case errors.Is(err, port.ErrCartNotFound):
		l = ledger.New(ownerID, ledger.WithCurrency(r.currency))
		r.logger.Debug("new cart", zap.String("owner_id", ownerID))
	case err != nil:
		return fmt.Errorf("repo.GetCart: %w", err)
	default:
		l = ledger.Restore(cart)
		r.logger.Info("cart restored",
			zap.String("owner_id", ownerID),
			zap.Int("items", len(cart.Items)),
			zap.Int("payments", len(cart.Payments)))
	}

	saver := persist.NewSaver(r.repo, r.logger)
	unsubscribe := l.Subscribe(saver)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		unsubscribe()
		_ = saver.Close(ctx)
		return ErrRegistryClosed
	}
	r.entries[ownerID] = &entry{ledger: l, saver: saver, unsubscribe: unsubscribe}

	return nil
}

func (r *Registry) release(ownerID string, e *entry) {
	r.mu.Lock()
	e.refs--
	if e.refs > 0 || r.closed || r.entries[ownerID] != e || !e.ledger.Snapshot().IsEmpty() {
		r.mu.Unlock()
		return
	}
	delete(r.entries, ownerID)
	done := make(chan struct{})
	r.draining[ownerID] = done
	r.mu.Unlock()

	e.unsubscribe()
	// the saver bounds each write with its own timeout
	if err := e.saver.Close(context.Background()); err != nil {
		r.logger.Error("close saver", zap.String("owner_id", ownerID), zap.Error(err))
	}

	r.mu.Lock()
	delete(r.draining, ownerID)
	r.mu.Unlock()
	close(done)

	r.logger.Debug("cart evicted", zap.String("owner_id", ownerID))
}

// Close flushes every pending snapshot and stops the savers.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	entries := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	draining := make([]chan struct{}, 0, len(r.draining))
	for _, done := range r.draining {
		draining = append(draining, done)
	}
	r.mu.Unlock()

	var errs []error
	for _, e := range entries {
		if err := e.saver.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("saver.Close[%s]: %w", e.ledger.OwnerID(), err))
		}
	}
	for _, done := range draining {
		select {
		case <-done:
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("wait evicted savers: %w", ctx.Err()))
			return errors.Join(errs...)
		}
	}

	return errors.Join(errs...)
}
