// Package persist writes ledger snapshots to a repository in the background.
package persist

import (
	"context"
	"sync"
	"time"

	"github.com/nikolayk812/pdv-ledger/internal/domain"
	"github.com/nikolayk812/pdv-ledger/internal/port"
	"go.uber.org/zap"
)

const (
	defaultWriteTimeout = 5 * time.Second
	defaultRetryDelay   = time.Second
)

type Option func(*Saver)

// WithRetryDelay sets how long a failed write waits before it is retried.
func WithRetryDelay(d time.Duration) Option {
	return func(s *Saver) {
		s.retryDelay = d
	}
}

func WithWriteTimeout(d time.Duration) Option {
	return func(s *Saver) {
		s.writeTimeout = d
	}
}

// Saver is a ledger listener that persists the latest cart snapshot on its
// own goroutine. Snapshots arriving while a write is in flight are
// coalesced, so only the newest one is written next. A failed write is
// retried after a delay until it succeeds or a newer snapshot replaces it.
// A cart with nothing in it is deleted instead of saved.
type Saver struct {
	repo         port.CartRepository
	logger       *zap.Logger
	writeTimeout time.Duration
	retryDelay   time.Duration

	mu      sync.Mutex
	pending *domain.Cart

	signal    chan struct{}
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func NewSaver(repo port.CartRepository, logger *zap.Logger, opts ...Option) *Saver {
	s := &Saver{
		repo:         repo,
		logger:       logger,
		writeTimeout: defaultWriteTimeout,
		retryDelay:   defaultRetryDelay,
		signal:       make(chan struct{}, 1),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	go s.run()

	return s
}

// CartChanged implements ledger.Listener. It never blocks on I/O.
func (s *Saver) CartChanged(cart domain.Cart) {
	s.mu.Lock()
	s.pending = &cart
	s.mu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
}

// Close writes the pending snapshot, if any, and stops the goroutine.
func (s *Saver) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		close(s.stop)
	})

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Saver) run() {
	defer close(s.done)

	var retry *time.Timer
	defer func() {
		if retry != nil {
			retry.Stop()
		}
	}()

	for {
		var retryC <-chan time.Time
		if retry != nil {
			retryC = retry.C
		}

		select {
		case <-s.signal:
		case <-retryC:
			retry = nil
		case <-s.stop:
			s.flush()
			return
		}

		if !s.flush() && retry == nil {
			retry = time.NewTimer(s.retryDelay)
		}
	}
}

// flush writes the pending snapshot. It reports false when the write
// failed and the snapshot is still pending.
func (s *Saver) flush() bool {
	s.mu.Lock()
	cart := s.pending
	s.pending = nil
	s.mu.Unlock()

	if cart == nil {
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
	defer cancel()

	if err := s.write(ctx, *cart); err != nil {
		s.logger.Error("persist cart", zap.String("owner_id", cart.OwnerID), zap.Error(err))

		// keep it for the next attempt unless a newer snapshot arrived
		s.mu.Lock()
		if s.pending == nil {
			s.pending = cart
		}
		s.mu.Unlock()
		return false
	}

	s.logger.Debug("cart persisted",
		zap.String("owner_id", cart.OwnerID),
		zap.Int("items", len(cart.Items)),
		zap.Int("payments", len(cart.Payments)))
	return true
}

func (s *Saver) write(ctx context.Context, cart domain.Cart) error {
	if cart.IsEmpty() {
		_, err := s.repo.DeleteCart(ctx, cart.OwnerID)
		return err
	}
	return s.repo.SaveCart(ctx, cart)
}
