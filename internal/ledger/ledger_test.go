package ledger_test

import (
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/nikolayk812/pdv-ledger/internal/domain"
	"github.com/nikolayk812/pdv-ledger/internal/ledger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/currency"
)

func TestCheckoutFlow(t *testing.T) {
	p1 := domain.Product{ID: 1, Name: "P1", Price: dec("10.00"), Stock: 5}

	twoUnits := func() *ledger.Ledger {
		l := ledger.New("register-1")
		l.AddItem(p1, 2)
		return l
	}

	t.Run("adding an item prices the cart", func(t *testing.T) {
		totals := twoUnits().Totals()
		assertDecimal(t, "20.00", totals.Subtotal)
		assertDecimal(t, "20.00", totals.Total)
		assert.Equal(t, 2, totals.ItemCount)
	})

	t.Run("line discount lowers subtotal and total", func(t *testing.T) {
		l := twoUnits()
		l.UpdateItemDiscount(p1.ID, dec("5.00"))

		totals := l.Totals()
		assertDecimal(t, "15.00", totals.Subtotal)
		assertDecimal(t, "15.00", totals.Total)
	})

	t.Run("cart discount above subtotal floors total at zero", func(t *testing.T) {
		l := twoUnits()
		l.UpdateItemDiscount(p1.ID, dec("5.00"))
		l.SetDiscount(dec("20.00"))

		totals := l.Totals()
		assertDecimal(t, "15.00", totals.Subtotal)
		assertDecimal(t, "0", totals.Total)
	})

	t.Run("split payment covering total makes sale ready", func(t *testing.T) {
		l := twoUnits()
		l.AddPayment(domain.PaymentCash, dec("15.00"), 1)
		l.AddPayment(domain.PaymentPix, dec("5.00"), 1)

		totals := l.Totals()
		assertDecimal(t, "20.00", totals.TotalPaid)
		assertDecimal(t, "0", totals.Remaining)
		assert.True(t, l.CanFinalizeSale())
	})

	t.Run("removing the last item blocks a paid sale", func(t *testing.T) {
		l := twoUnits()
		l.AddPayment(domain.PaymentCash, dec("15.00"), 1)
		l.AddPayment(domain.PaymentPix, dec("5.00"), 1)
		l.RemoveItem(p1.ID)

		assert.Empty(t, l.Snapshot().Items)
		assertDecimal(t, "0", l.Totals().Total)
		assertDecimal(t, "20.00", l.Totals().TotalPaid)
		assert.False(t, l.CanFinalizeSale())
	})
}

func TestAddItem(t *testing.T) {
	tests := []struct {
		name       string
		quantities []int
		wantQty    int
	}{
		{
			name:       "single add: ok",
			quantities: []int{3},
			wantQty:    3,
		},
		{
			name:       "repeated adds are merged: ok",
			quantities: []int{1, 2, 4},
			wantQty:    7,
		},
		{
			name:       "non-positive quantity defaults to one: ok",
			quantities: []int{0, -3},
			wantQty:    2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := ledger.New(gofakeit.UUID())
			product := randomProduct()

			for _, q := range tt.quantities {
				l.AddItem(product, q)
			}

			items := l.Snapshot().Items
			require.Len(t, items, 1)
			assert.Equal(t, product.ID, items[0].ProductID)
			assert.Equal(t, tt.wantQty, items[0].Quantity)
			assert.Equal(t, tt.wantQty, l.Totals().ItemCount)
		})
	}
}

func TestAddItem_KeepsFirstUnitPrice(t *testing.T) {
	l := ledger.New(gofakeit.UUID())
	product := domain.Product{ID: 7, Name: "coffee", Price: dec("4.50")}

	l.AddItem(product, 1)
	product.Price = dec("9.99")
	l.AddItem(product, 1)

	items := l.Snapshot().Items
	require.Len(t, items, 1)
	assertDecimal(t, "4.50", items[0].UnitPrice)
	assertDecimal(t, "9.00", l.Totals().Subtotal)
}

func TestAddItem_PreservesInsertionOrder(t *testing.T) {
	l := ledger.New(gofakeit.UUID())
	for _, id := range []int64{30, 10, 20} {
		l.AddItem(domain.Product{ID: id, Price: dec("1")}, 1)
	}
	l.RemoveItem(10)
	l.AddItem(domain.Product{ID: 5, Price: dec("1")}, 1)
	l.AddItem(domain.Product{ID: 30, Price: dec("1")}, 1)

	var ids []int64
	for _, item := range l.Snapshot().Items {
		ids = append(ids, item.ProductID)
	}
	assert.Equal(t, []int64{30, 20, 5}, ids)
	assert.Equal(t, 4, l.Totals().ItemCount)
}

func TestUpdateQuantity(t *testing.T) {
	tests := []struct {
		name      string
		quantity  int
		wantLines int
		wantCount int
	}{
		{name: "absolute set: ok", quantity: 5, wantLines: 2, wantCount: 6},
		{name: "zero removes line: ok", quantity: 0, wantLines: 1, wantCount: 1},
		{name: "negative removes line: ok", quantity: -4, wantLines: 1, wantCount: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := ledger.New(gofakeit.UUID())
			target := domain.Product{ID: 1, Price: dec("2.50")}
			other := domain.Product{ID: 2, Price: dec("1.00")}
			l.AddItem(target, 3)
			l.AddItem(other, 1)

			l.UpdateQuantity(target.ID, tt.quantity)

			assert.Len(t, l.Snapshot().Items, tt.wantLines)
			assert.Equal(t, tt.wantCount, l.Totals().ItemCount)
		})
	}
}

func TestUpdateQuantity_NonPositiveEqualsRemove(t *testing.T) {
	for _, q := range []int{0, -1, -gofakeit.IntRange(2, 100)} {
		viaUpdate := ledger.New("a", ledger.WithClock(fixedClock))
		viaRemove := ledger.New("a", ledger.WithClock(fixedClock))
		for _, l := range []*ledger.Ledger{viaUpdate, viaRemove} {
			l.AddItem(domain.Product{ID: 1, Price: dec("3")}, 2)
			l.AddItem(domain.Product{ID: 2, Price: dec("4")}, 1)
		}

		viaUpdate.UpdateQuantity(1, q)
		viaRemove.RemoveItem(1)

		assert.Empty(t, cmp.Diff(viaRemove.Snapshot(), viaUpdate.Snapshot(), cartCmpOpts()))
		assert.Empty(t, cmp.Diff(viaRemove.Totals(), viaUpdate.Totals(), cartCmpOpts()))
	}
}

func TestUnknownProductIsNoop(t *testing.T) {
	l := ledger.New(gofakeit.UUID())
	l.AddItem(domain.Product{ID: 1, Price: dec("10")}, 1)
	before := l.Snapshot()

	l.RemoveItem(99)
	l.UpdateQuantity(99, 3)
	l.UpdateItemDiscount(99, dec("1"))

	assert.Empty(t, cmp.Diff(before, l.Snapshot(), cartCmpOpts()))
}

func TestItemDiscount(t *testing.T) {
	t.Run("negative clamps to zero: ok", func(t *testing.T) {
		l := ledger.New(gofakeit.UUID())
		l.AddItem(domain.Product{ID: 1, Price: dec("10")}, 1)

		l.UpdateItemDiscount(1, dec("-3"))

		assertDecimal(t, "0", l.Snapshot().Items[0].Discount)
		assertDecimal(t, "10", l.Totals().Total)
	})

	t.Run("discount above gross offsets other lines: ok", func(t *testing.T) {
		l := ledger.New(gofakeit.UUID())
		l.AddItem(domain.Product{ID: 1, Price: dec("10")}, 1)
		l.AddItem(domain.Product{ID: 2, Price: dec("8")}, 1)

		l.UpdateItemDiscount(1, dec("15"))

		assertDecimal(t, "3", l.Totals().Subtotal)
		assertDecimal(t, "3", l.Totals().Total)
	})

	t.Run("negative subtotal floors total only: ok", func(t *testing.T) {
		l := ledger.New(gofakeit.UUID())
		l.AddItem(domain.Product{ID: 1, Price: dec("10")}, 1)

		l.UpdateItemDiscount(1, dec("25"))

		assertDecimal(t, "-15", l.Totals().Subtotal)
		assertDecimal(t, "0", l.Totals().Total)
	})
}

func TestTotalNeverNegative(t *testing.T) {
	for range 50 {
		l := ledger.New(gofakeit.UUID())
		for range gofakeit.IntRange(1, 5) {
			p := randomProduct()
			l.AddItem(p, gofakeit.IntRange(1, 10))
			l.UpdateItemDiscount(p.ID, decimal.NewFromFloat(gofakeit.Price(0, 2000)))
		}
		l.SetDiscount(decimal.NewFromFloat(gofakeit.Price(0, 2000)))
		l.AddPayment(domain.PaymentCash, decimal.NewFromFloat(gofakeit.Price(0, 5000)), 1)

		totals := l.Totals()
		assert.False(t, totals.Total.IsNegative())
		assert.False(t, totals.Remaining.IsNegative())
		assert.False(t, totals.Change.IsNegative())
	}
}

func TestItemCountIsSumOfQuantities(t *testing.T) {
	l := ledger.New(gofakeit.UUID())
	want := 0
	for i := range gofakeit.IntRange(1, 20) {
		q := gofakeit.IntRange(1, 9)
		l.AddItem(domain.Product{ID: int64(i + 1), Price: dec("1")}, q)
		want += q
	}

	assert.Equal(t, want, l.Totals().ItemCount)
}

func TestPayments(t *testing.T) {
	l := ledger.New(gofakeit.UUID())
	l.AddItem(domain.Product{ID: 1, Price: dec("100")}, 1)

	l.AddPayment(domain.PaymentCreditCard, dec("60"), 3)
	l.AddPayment(domain.PaymentPix, dec("30"), 0)

	snapshot := l.Snapshot()
	require.Len(t, snapshot.Payments, 2)
	assert.Equal(t, 3, snapshot.Payments[0].Installments)
	assert.Equal(t, 1, snapshot.Payments[1].Installments)
	assertDecimal(t, "90", l.Totals().TotalPaid)
	assertDecimal(t, "10", l.Totals().Remaining)
	assertDecimal(t, "10", l.Due().Amount)
	assert.Equal(t, currency.BRL, l.Due().Currency)
	assert.False(t, l.CanFinalizeSale())

	l.RemovePayment(5)
	l.RemovePayment(-1)
	assert.Len(t, l.Snapshot().Payments, 2)

	l.RemovePayment(0)
	snapshot = l.Snapshot()
	require.Len(t, snapshot.Payments, 1)
	assert.Equal(t, domain.PaymentPix, snapshot.Payments[0].Method)

	l.AddPayment(domain.PaymentCash, dec("100"), 1)
	assertDecimal(t, "0", l.Totals().Remaining)
	assertDecimal(t, "30", l.Totals().Change)
	assert.True(t, l.CanFinalizeSale())

	l.ClearPayments()
	assert.Empty(t, l.Snapshot().Payments)
	assertDecimal(t, "0", l.Totals().TotalPaid)
	assert.False(t, l.CanFinalizeSale())
}

func TestCanFinalizeSale(t *testing.T) {
	tests := []struct {
		name  string
		setup func(l *ledger.Ledger)
		want  bool
	}{
		{
			name:  "empty cart without payments: not ready",
			setup: func(*ledger.Ledger) {},
			want:  false,
		},
		{
			name: "empty cart with payments: not ready",
			setup: func(l *ledger.Ledger) {
				l.AddPayment(domain.PaymentCash, dec("50"), 1)
			},
			want: false,
		},
		{
			name: "underpaid: not ready",
			setup: func(l *ledger.Ledger) {
				l.AddItem(domain.Product{ID: 1, Price: dec("10")}, 1)
				l.AddPayment(domain.PaymentCash, dec("9.99"), 1)
			},
			want: false,
		},
		{
			name: "exactly paid: ready",
			setup: func(l *ledger.Ledger) {
				l.AddItem(domain.Product{ID: 1, Price: dec("10")}, 1)
				l.AddPayment(domain.PaymentDebitCard, dec("10"), 1)
			},
			want: true,
		},
		{
			name: "fully discounted item without payment: ready",
			setup: func(l *ledger.Ledger) {
				l.AddItem(domain.Product{ID: 1, Price: dec("10")}, 1)
				l.SetDiscount(dec("10"))
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := ledger.New(gofakeit.UUID())
			tt.setup(l)
			assert.Equal(t, tt.want, l.CanFinalizeSale())
		})
	}
}

func TestPrepareSale(t *testing.T) {
	l := ledger.New("register-1")

	_, ok := l.PrepareSale()
	assert.False(t, ok)

	l.AddItem(domain.Product{ID: 1, Price: dec("10")}, 1)
	l.AddPayment(domain.PaymentCash, dec("10"), 1)

	first, ok := l.PrepareSale()
	require.True(t, ok)
	assert.NotEqual(t, uuid.Nil, first.SaleKey)

	second, ok := l.PrepareSale()
	require.True(t, ok)
	assert.Equal(t, first.SaleKey, second.SaleKey)
	assert.Equal(t, first.SaleKey, l.Snapshot().SaleKey)

	l.SetNotes("changed")
	assert.Equal(t, uuid.Nil, l.Snapshot().SaleKey)

	third, ok := l.PrepareSale()
	require.True(t, ok)
	assert.NotEqual(t, first.SaleKey, third.SaleKey)
}

func TestClearSale(t *testing.T) {
	newReady := func() *ledger.Ledger {
		l := ledger.New("register-1")
		l.AddItem(domain.Product{ID: 1, Price: dec("10")}, 1)
		l.AddPayment(domain.PaymentCash, dec("10"), 1)
		return l
	}

	t.Run("unchanged cart is cleared", func(t *testing.T) {
		l := newReady()
		cart, ok := l.PrepareSale()
		require.True(t, ok)

		assert.True(t, l.ClearSale(cart.SaleKey))
		assert.Empty(t, l.Snapshot().Items)
		assert.Empty(t, l.Snapshot().Payments)
		assert.Equal(t, uuid.Nil, l.Snapshot().SaleKey)
	})

	t.Run("cart changed after prepare is kept", func(t *testing.T) {
		l := newReady()
		cart, ok := l.PrepareSale()
		require.True(t, ok)
		l.AddItem(domain.Product{ID: 2, Price: dec("1")}, 1)

		assert.False(t, l.ClearSale(cart.SaleKey))
		assert.Len(t, l.Snapshot().Items, 2)
	})

	t.Run("nil key never clears", func(t *testing.T) {
		l := newReady()
		assert.False(t, l.ClearSale(uuid.Nil))
		assert.Len(t, l.Snapshot().Items, 1)
	})
}

func TestPrepareSaleNotifiesListeners(t *testing.T) {
	l := ledger.New("register-1")
	l.AddItem(domain.Product{ID: 1, Price: dec("10")}, 1)
	l.AddPayment(domain.PaymentCash, dec("10"), 1)

	var got []domain.Cart
	l.Subscribe(ledger.ListenerFunc(func(cart domain.Cart) {
		got = append(got, cart)
	}))

	cart, ok := l.PrepareSale()
	require.True(t, ok)
	_, ok = l.PrepareSale()
	require.True(t, ok)

	require.Len(t, got, 1)
	assert.Equal(t, cart.SaleKey, got[0].SaleKey)
}

func TestSetters(t *testing.T) {
	l := ledger.New(gofakeit.UUID())
	customerID := int64(gofakeit.IntRange(1, 1000))

	l.SetCustomer(&customerID)
	customerID++
	l.SetNotes("deliver after 6pm")

	snapshot := l.Snapshot()
	require.NotNil(t, snapshot.CustomerID)
	assert.Equal(t, customerID-1, *snapshot.CustomerID)
	assert.Equal(t, "deliver after 6pm", snapshot.Notes)

	l.SetCustomer(nil)
	assert.Nil(t, l.Snapshot().CustomerID)

	l.SetDiscount(dec("-5"))
	assertDecimal(t, "0", l.Snapshot().Discount)
}

func TestClear(t *testing.T) {
	l := ledger.New("register-9", ledger.WithCurrency(currency.USD))
	customerID := int64(3)
	l.AddItem(randomProduct(), 2)
	l.AddPayment(domain.PaymentCash, dec("10"), 1)
	l.SetDiscount(dec("1"))
	l.SetCustomer(&customerID)
	l.SetNotes("note")

	l.Clear()
	once := l.Snapshot()
	onceTotals := l.Totals()
	l.Clear()

	assert.Empty(t, once.Items)
	assert.Empty(t, once.Payments)
	assert.Nil(t, once.CustomerID)
	assert.Empty(t, once.Notes)
	assertDecimal(t, "0", once.Discount)
	assert.Equal(t, "register-9", once.OwnerID)
	assert.Equal(t, currency.USD, once.Currency)
	assert.Equal(t, 0, onceTotals.ItemCount)
	assertDecimal(t, "0", onceTotals.Total)
	assertDecimal(t, "0", onceTotals.TotalPaid)

	assert.Empty(t, cmp.Diff(once, l.Snapshot(), cartCmpOpts()))
	assert.Empty(t, cmp.Diff(onceTotals, l.Totals(), cartCmpOpts()))
}

func TestClearItems_KeepsPaymentsAndDiscount(t *testing.T) {
	l := ledger.New(gofakeit.UUID())
	l.AddItem(randomProduct(), 1)
	l.AddPayment(domain.PaymentCash, dec("5"), 1)
	l.SetDiscount(dec("2"))

	l.ClearItems()

	snapshot := l.Snapshot()
	assert.Empty(t, snapshot.Items)
	assert.Len(t, snapshot.Payments, 1)
	assertDecimal(t, "2", snapshot.Discount)
	assert.Equal(t, 0, l.Totals().ItemCount)

	// index must be reset as well
	l.AddItem(domain.Product{ID: 1, Price: dec("1")}, 1)
	assert.Len(t, l.Snapshot().Items, 1)
}

func TestSnapshotIsDetached(t *testing.T) {
	l := ledger.New(gofakeit.UUID())
	l.AddItem(domain.Product{ID: 1, Price: dec("10")}, 1)
	customerID := int64(1)
	l.SetCustomer(&customerID)

	snapshot := l.Snapshot()
	snapshot.Items[0].Quantity = 99
	*snapshot.CustomerID = 42

	assert.Equal(t, 1, l.Snapshot().Items[0].Quantity)
	assert.Equal(t, int64(1), *l.Snapshot().CustomerID)
}

func TestRestore(t *testing.T) {
	customerID := int64(11)
	stored := domain.Cart{
		OwnerID:  "register-2",
		Currency: currency.EUR,
		Items: []domain.CartItem{
			{ProductID: 1, Quantity: 2, UnitPrice: dec("5"), Discount: dec("1")},
			{ProductID: 2, Quantity: 0, UnitPrice: dec("3")},
			{ProductID: 1, Quantity: 1, UnitPrice: dec("5")},
			{ProductID: 3, Quantity: 1, UnitPrice: dec("4"), Discount: dec("-2")},
		},
		Payments: []domain.Payment{
			{Method: domain.PaymentCash, Amount: dec("6"), Installments: 0},
		},
		Discount:   dec("-1"),
		CustomerID: &customerID,
		Notes:      "restored",
		SaleKey:    uuid.New(),
	}

	l := ledger.Restore(stored)

	snapshot := l.Snapshot()
	require.Len(t, snapshot.Items, 2)
	assert.Equal(t, int64(1), snapshot.Items[0].ProductID)
	assert.Equal(t, 3, snapshot.Items[0].Quantity)
	assertDecimal(t, "0", snapshot.Items[1].Discount)
	assert.Equal(t, 1, snapshot.Payments[0].Installments)
	assertDecimal(t, "0", snapshot.Discount)
	assert.Equal(t, currency.EUR, l.Currency())
	assert.Equal(t, stored.SaleKey, snapshot.SaleKey)

	totals := l.Totals()
	assertDecimal(t, "18", totals.Subtotal)
	assertDecimal(t, "12", totals.Remaining)
	assert.Equal(t, 4, totals.ItemCount)

	l.UpdateQuantity(3, 0)
	assert.Len(t, l.Snapshot().Items, 1)
}

func TestNewDefaultsCurrency(t *testing.T) {
	l := ledger.New(gofakeit.UUID())
	assert.Equal(t, domain.DefaultCurrency, l.Currency())
}

func TestListeners(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	l := ledger.New("register-3", ledger.WithClock(func() time.Time { return now }))

	var got []domain.Cart
	unsubscribe := l.Subscribe(ledger.ListenerFunc(func(cart domain.Cart) {
		got = append(got, cart)
	}))

	l.AddItem(domain.Product{ID: 1, Price: dec("2")}, 1)
	l.RemoveItem(42) // no-op, no notification
	l.SetNotes("n")
	l.RemovePayment(0) // no-op

	require.Len(t, got, 2)
	assert.Len(t, got[0].Items, 1)
	assert.Equal(t, now, got[0].UpdatedAt)
	assert.Equal(t, "n", got[1].Notes)

	got[0].Items[0].Quantity = 50
	assert.Equal(t, 1, l.Snapshot().Items[0].Quantity)

	unsubscribe()
	l.Clear()
	assert.Len(t, got, 2)
}

func TestConcurrentMutations(t *testing.T) {
	l := ledger.New(gofakeit.UUID())

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			for range 10 {
				l.AddItem(domain.Product{ID: id % 5, Price: dec("1")}, 1)
				_ = l.Totals()
				_ = l.CanFinalizeSale()
			}
		}(int64(i))
	}
	wg.Wait()

	assert.Equal(t, 200, l.Totals().ItemCount)
	assert.Len(t, l.Snapshot().Items, 5)
	assertDecimal(t, "200", l.Totals().Total)
}
