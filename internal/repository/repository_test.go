package repository_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
	"github.com/nikolayk812/pdv-ledger/internal/domain"
	"github.com/nikolayk812/pdv-ledger/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"golang.org/x/text/currency"
)

func startPostgres(ctx context.Context) (*postgres.PostgresContainer, string, error) {
	postgresContainer, err := postgres.Run(ctx, "postgres:17.6-alpine3.22",
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		return nil, "", fmt.Errorf("postgres.Run: %w", err)
	}

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, "", fmt.Errorf("pc.ConnectionString: %w", err)
	}

	if err := repository.Migrate(connStr); err != nil {
		return nil, "", fmt.Errorf("repository.Migrate: %w", err)
	}

	return postgresContainer, connStr, nil
}

func randomCart() domain.Cart {
	customerID := int64(gofakeit.IntRange(1, 1_000_000))

	cart := domain.Cart{
		OwnerID:    gofakeit.UUID(),
		Currency:   randomCurrency(),
		Discount:   decimal.NewFromFloat(gofakeit.Price(0, 10)),
		CustomerID: &customerID,
		Notes:      gofakeit.Sentence(5),
		SaleKey:    uuid.New(),
	}

	for i := range gofakeit.IntRange(1, 4) {
		product := randomProduct(int64(i + 1))
		cart.Items = append(cart.Items, domain.CartItem{
			ProductID: product.ID,
			Product:   product,
			Quantity:  gofakeit.IntRange(1, 10),
			UnitPrice: product.Price,
			Discount:  decimal.NewFromFloat(gofakeit.Price(0, 1)),
		})
	}

	for range gofakeit.IntRange(0, 3) {
		cart.Payments = append(cart.Payments, domain.Payment{
			Method:       domain.PaymentPix,
			Amount:       decimal.NewFromFloat(gofakeit.Price(1, 100)),
			Installments: gofakeit.IntRange(1, 12),
		})
	}

	return cart
}

func randomProduct(id int64) domain.Product {
	return domain.Product{
		ID:    id,
		Name:  gofakeit.ProductName(),
		Price: decimal.NewFromFloat(gofakeit.Price(1, 100)),
		Stock: gofakeit.IntRange(0, 100),
	}
}

func randomCurrency() currency.Unit {
	var (
		result currency.Unit
		err    error
	)

	for {
		// tag is not a recognized currency
		result, err = currency.ParseISO(gofakeit.CurrencyShort())
		if err == nil {
			break
		}
	}

	return result
}

func assertCart(t *testing.T, expected, actual domain.Cart) {
	t.Helper()

	opts := cmp.Options{
		cmpopts.IgnoreFields(domain.Cart{}, "UpdatedAt"),
		cmpopts.EquateEmpty(),
		cmp.Comparer(func(x, y currency.Unit) bool {
			return x.String() == y.String()
		}),
		cmp.Comparer(func(x, y decimal.Decimal) bool {
			return x.Equal(y)
		}),
	}

	diff := cmp.Diff(expected, actual, opts)
	assert.Empty(t, diff)

	assert.False(t, actual.UpdatedAt.IsZero())
}
