package ledger_test

import (
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/go-cmp/cmp"
	"github.com/nikolayk812/pdv-ledger/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"golang.org/x/text/currency"
)

var fixedClock = func() time.Time {
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "want %s, got %s", want, got)
}

func randomProduct() domain.Product {
	return domain.Product{
		ID:    int64(gofakeit.IntRange(1, 1_000_000)),
		Name:  gofakeit.ProductName(),
		Price: decimal.NewFromFloat(gofakeit.Price(1, 100)),
		Stock: gofakeit.IntRange(0, 50),
	}
}

func cartCmpOpts() cmp.Options {
	return cmp.Options{
		cmp.Comparer(func(x, y decimal.Decimal) bool {
			return x.Equal(y)
		}),
		cmp.Comparer(func(x, y currency.Unit) bool {
			return x.String() == y.String()
		}),
	}
}
