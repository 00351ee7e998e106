package dbkeeper

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/drstein77/oilcheckout/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewDBKeeper_EmptyDSN(t *testing.T) {
	kp := NewDBKeeper(context.Background(), func() string { return "" }, "../../migrations", zap.NewNop())
	assert.Nil(t, kp)
}

func TestNewDBKeeper_BadDSN(t *testing.T) {
	kp := NewDBKeeper(context.Background(), func() string { return "postgres://%zz" }, "../../migrations", zap.NewNop())
	assert.Nil(t, kp)
}

func TestParseTotals(t *testing.T) {
	got, err := parseTotals("₹", "45.00", "5.99", "3.60", "54.59")
	require.NoError(t, err)
	assert.Equal(t, "54.59", got.Total.StringFixed(2))
	assert.Equal(t, "₹", got.Currency)

	_, err = parseTotals("₹", "45.00", "x", "3.60", "54.59")
	assert.Error(t, err)
}

// TestDBKeeper_RoundTrip needs a disposable database in TEST_DATABASE_URI.
func TestDBKeeper_RoundTrip(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URI")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URI is not set")
	}
	ctx := context.Background()
	kp := NewDBKeeper(ctx, func() string { return dsn }, "../../migrations", zap.NewNop())
	require.NotNil(t, kp)
	defer kp.Close()
	require.True(t, kp.Ping(ctx))

	order := models.Order{
		ID:            uuid.NewString(),
		SessionID:     "s1",
		CartID:        "c1",
		Address:       models.Address{Street: "1 Mint St", City: "Kochi", PostalCode: "682001", Country: "IN"},
		PaymentMethod: models.PaymentUPI,
		Items: []models.CartItem{{
			Product:  models.Product{ID: "eucalyptus", Name: "Eucalyptus", UnitPrice: decimal.RequireFromString("45.00")},
			Quantity: 1,
		}},
		Totals: models.Totals{
			Subtotal: decimal.RequireFromString("45.00"),
			Shipping: decimal.RequireFromString("5.99"),
			Tax:      decimal.RequireFromString("3.60"),
			Total:    decimal.RequireFromString("54.59"),
			Currency: "₹",
		},
		Reference: "pay-1",
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, kp.InsertOrder(ctx, order))
	assert.Error(t, kp.InsertOrder(ctx, order))

	orders, err := kp.LoadOrders(ctx)
	require.NoError(t, err)
	var found *models.Order
	for i := range orders {
		if orders[i].ID == order.ID {
			found = &orders[i]
		}
	}
	require.NotNil(t, found)
	assert.True(t, found.Totals.Equal(order.Totals))
	assert.Equal(t, order.Address, found.Address)
	assert.Len(t, found.Items, 1)
}
