// Package ledger holds the point-of-sale cart: line items, payments and
// discounts, with totals that are settled after every mutation.
//
// Ledger operations never fail. Inputs are normalised instead: a quantity
// of zero or less removes the line, negative discounts become zero, and
// out-of-range payment indexes are ignored. Business rules such as stock
// availability belong to the caller.
package ledger

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nikolayk812/pdv-ledger/internal/domain"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// Listener is notified with a copy of the cart after every mutation.
// It is called with the ledger's write lock held, so it must return
// quickly and must not call back into the ledger.
type Listener interface {
	CartChanged(cart domain.Cart)
}

type ListenerFunc func(cart domain.Cart)

func (f ListenerFunc) CartChanged(cart domain.Cart) {
	f(cart)
}

type Option func(*Ledger)

func WithCurrency(unit currency.Unit) Option {
	return func(l *Ledger) {
		l.cart.Currency = unit
	}
}

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

type Ledger struct {
	mu     sync.RWMutex
	cart   domain.Cart
	index  map[int64]int // productID -> position in cart.Items
	totals domain.Totals

	listeners    []subscription
	nextListener int

	now func() time.Time
}

type subscription struct {
	id       int
	listener Listener
}

// New returns an empty ledger for ownerID.
func New(ownerID string, opts ...Option) *Ledger {
	return Restore(domain.Cart{OwnerID: ownerID}, opts...)
}

// Restore rebuilds a ledger from a persisted cart. Lines for the same
// product are merged, lines with a quantity below one are dropped and
// negative discounts are clamped, so a restored ledger holds the same
// invariants as one built through its operations.
func Restore(cart domain.Cart, opts ...Option) *Ledger {
	l := &Ledger{
		cart: domain.Cart{
			OwnerID:   cart.OwnerID,
			Currency:  cart.Currency,
			Discount:  domain.NonNegative(cart.Discount),
			Notes:     cart.Notes,
			SaleKey:   cart.SaleKey,
			UpdatedAt: cart.UpdatedAt,
		},
		index: make(map[int64]int),
		now:   time.Now,
	}
	if l.cart.Currency == (currency.Unit{}) {
		l.cart.Currency = domain.DefaultCurrency
	}
	if cart.CustomerID != nil {
		id := *cart.CustomerID
		l.cart.CustomerID = &id
	}

	for _, item := range cart.Items {
		if item.Quantity < 1 {
			continue
		}
		item.Discount = domain.NonNegative(item.Discount)
		if pos, ok := l.index[item.ProductID]; ok {
			l.cart.Items[pos].Quantity += item.Quantity
			continue
		}
		l.index[item.ProductID] = len(l.cart.Items)
		l.cart.Items = append(l.cart.Items, item)
	}

	for _, p := range cart.Payments {
		if p.Installments < 1 {
			p.Installments = 1
		}
		l.cart.Payments = append(l.cart.Payments, p)
	}

	for _, opt := range opts {
		opt(l)
	}

	l.recompute()
	return l
}

// Subscribe registers a listener and returns a function that removes it.
func (l *Ledger) Subscribe(listener Listener) (unsubscribe func()) {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.nextListener
	l.nextListener++
	l.listeners = append(l.listeners, subscription{id: id, listener: listener})

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		for i, s := range l.listeners {
			if s.id == id {
				l.listeners = append(l.listeners[:i], l.listeners[i+1:]...)
				return
			}
		}
	}
}

func (l *Ledger) OwnerID() string {
	return l.cart.OwnerID
}

func (l *Ledger) Currency() currency.Unit {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cart.Currency
}

// Snapshot returns a deep copy of the current cart.
func (l *Ledger) Snapshot() domain.Cart {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cart.Clone()
}

func (l *Ledger) Totals() domain.Totals {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.totals
}

// Due is the amount still to be collected, in the ledger's currency.
func (l *Ledger) Due() domain.Money {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return domain.NewMoney(l.totals.Remaining, l.cart.Currency)
}

// CanFinalizeSale reports whether the cart has at least one item and the
// payments cover the total.
func (l *Ledger) CanFinalizeSale() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.totals.CanFinalize()
}

// PrepareSale returns a snapshot of a cart that can be finalized, with a
// sale key assigned. The key is kept until the cart changes, so preparing
// the same cart again yields the same key. It reports false when the sale
// cannot be finalized.
func (l *Ledger) PrepareSale() (domain.Cart, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.totals.CanFinalize() {
		return domain.Cart{}, false
	}
	if l.cart.SaleKey == uuid.Nil {
		l.cart.SaleKey = uuid.New()
		l.notify()
	}
	return l.cart.Clone(), true
}

// ClearSale clears the ledger only if it still holds the sale identified
// by key. It reports whether the ledger was cleared.
func (l *Ledger) ClearSale(key uuid.UUID) bool {
	var cleared bool
	l.mutate(true, func() bool {
		if key == uuid.Nil || l.cart.SaleKey != key {
			return false
		}
		l.reset()
		cleared = true
		return true
	})
	return cleared
}

// AddItem adds quantity units of product. Repeated additions of the same
// product increase the quantity of its existing line; the unit price of
// that line is kept. A quantity below one is treated as one.
func (l *Ledger) AddItem(product domain.Product, quantity int) {
	if quantity < 1 {
		quantity = 1
	}

	l.mutate(true, func() bool {
		if pos, ok := l.index[product.ID]; ok {
			l.cart.Items[pos].Quantity += quantity
			return true
		}

		l.index[product.ID] = len(l.cart.Items)
		l.cart.Items = append(l.cart.Items, domain.CartItem{
			ProductID: product.ID,
			Product:   product,
			Quantity:  quantity,
			UnitPrice: product.Price,
			Discount:  decimal.Zero,
		})
		return true
	})
}

func (l *Ledger) RemoveItem(productID int64) {
	l.mutate(true, func() bool {
		return l.removeItem(productID)
	})
}

// UpdateQuantity sets the absolute quantity of a line. Zero or less
// removes it.
func (l *Ledger) UpdateQuantity(productID int64, quantity int) {
	l.mutate(true, func() bool {
		if quantity <= 0 {
			return l.removeItem(productID)
		}

		pos, ok := l.index[productID]
		if !ok {
			return false
		}
		l.cart.Items[pos].Quantity = quantity
		return true
	})
}

// UpdateItemDiscount sets the absolute discount of a line. The discount is
// not limited to the line's gross.
func (l *Ledger) UpdateItemDiscount(productID int64, discount decimal.Decimal) {
	l.mutate(true, func() bool {
		pos, ok := l.index[productID]
		if !ok {
			return false
		}
		l.cart.Items[pos].Discount = domain.NonNegative(discount)
		return true
	})
}

func (l *Ledger) ClearItems() {
	l.mutate(true, func() bool {
		l.cart.Items = nil
		clear(l.index)
		return true
	})
}

// AddPayment appends a payment. Overpayment is allowed; it shows up as
// change.
func (l *Ledger) AddPayment(method domain.PaymentMethod, amount decimal.Decimal, installments int) {
	if installments < 1 {
		installments = 1
	}

	l.mutate(true, func() bool {
		l.cart.Payments = append(l.cart.Payments, domain.Payment{
			Method:       method,
			Amount:       amount,
			Installments: installments,
		})
		return true
	})
}

func (l *Ledger) RemovePayment(index int) {
	l.mutate(true, func() bool {
		if index < 0 || index >= len(l.cart.Payments) {
			return false
		}
		l.cart.Payments = append(l.cart.Payments[:index], l.cart.Payments[index+1:]...)
		return true
	})
}

func (l *Ledger) ClearPayments() {
	l.mutate(true, func() bool {
		l.cart.Payments = nil
		return true
	})
}

// SetDiscount sets the cart-wide discount applied after line discounts.
func (l *Ledger) SetDiscount(discount decimal.Decimal) {
	l.mutate(true, func() bool {
		l.cart.Discount = domain.NonNegative(discount)
		return true
	})
}

// SetCustomer attaches a customer reference. Nil detaches it.
func (l *Ledger) SetCustomer(customerID *int64) {
	l.mutate(false, func() bool {
		if customerID == nil {
			l.cart.CustomerID = nil
			return true
		}
		id := *customerID
		l.cart.CustomerID = &id
		return true
	})
}

func (l *Ledger) SetNotes(notes string) {
	l.mutate(false, func() bool {
		l.cart.Notes = notes
		return true
	})
}

// Clear resets items, payments, discount, customer and notes.
func (l *Ledger) Clear() {
	l.mutate(true, func() bool {
		l.reset()
		return true
	})
}

func (l *Ledger) reset() {
	l.cart.Items = nil
	l.cart.Payments = nil
	l.cart.Discount = decimal.Zero
	l.cart.CustomerID = nil
	l.cart.Notes = ""
	clear(l.index)
}

// mutate runs fn under the write lock. When fn reports a change the sale
// key is dropped, the totals are recomputed (if requested) and listeners
// are notified before the lock is released, so they observe mutations in
// order.
func (l *Ledger) mutate(recompute bool, fn func() bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !fn() {
		return
	}
	l.cart.SaleKey = uuid.Nil
	if recompute {
		l.recompute()
	}
	l.cart.UpdatedAt = l.now()
	l.notify()
}

// notify must be called with the write lock held.
func (l *Ledger) notify() {
	if len(l.listeners) == 0 {
		return
	}
	snapshot := l.cart.Clone()
	for _, s := range l.listeners {
		s.listener.CartChanged(snapshot)
	}
}

func (l *Ledger) removeItem(productID int64) bool {
	pos, ok := l.index[productID]
	if !ok {
		return false
	}

	l.cart.Items = append(l.cart.Items[:pos], l.cart.Items[pos+1:]...)
	delete(l.index, productID)
	for i := pos; i < len(l.cart.Items); i++ {
		l.index[l.cart.Items[i].ProductID] = i
	}
	return true
}

func (l *Ledger) recompute() {
	l.totals = Compute(l.cart)
}
