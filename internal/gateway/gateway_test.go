package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/drstein77/oilcheckout/internal/checkout"
	"github.com/drstein77/oilcheckout/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memRecorder struct {
	orders []models.Order
	err    error
}

func (r *memRecorder) SaveOrder(_ context.Context, o models.Order) error {
	if r.err != nil {
		return r.err
	}
	r.orders = append(r.orders, o)
	return nil
}

func request(total string) models.OrderRequest {
	amount := decimal.RequireFromString(total)
	return models.OrderRequest{
		SessionID:     "s1",
		Address:       models.Address{Street: "4 Jasmine Rd", City: "Mysuru", PostalCode: "570001", Country: "IN"},
		PaymentMethod: models.PaymentCreditCard,
		Totals:        models.Totals{Subtotal: amount, Shipping: decimal.Zero, Tax: decimal.Zero, Total: amount, Currency: "₹"},
		Cart: models.Cart{ID: "c1", Items: []models.CartItem{{
			Product:  models.Product{ID: "sandalwood", UnitPrice: amount},
			Quantity: 1,
		}}},
	}
}

func TestPlaceOrder_RecordsAuthorizedOrder(t *testing.T) {
	rec := &memRecorder{}
	g := NewOrderGateway(&Sandbox{}, rec, zap.NewNop())

	conf, err := g.PlaceOrder(context.Background(), request("64.80"))
	require.NoError(t, err)

	require.Len(t, rec.orders, 1)
	o := rec.orders[0]
	assert.Equal(t, conf.OrderID, o.ID)
	assert.Equal(t, conf.Reference, o.Reference)
	assert.Equal(t, "c1", o.CartID)
	assert.Contains(t, conf.Reference, "sbx_credit_card_")
	assert.Equal(t, "64.80", conf.Total.StringFixed(2))
}

func TestPlaceOrder_Declined(t *testing.T) {
	limit := decimal.RequireFromString("50")
	rec := &memRecorder{}
	g := NewOrderGateway(&Sandbox{DeclineAbove: &limit}, rec, zap.NewNop())

	_, err := g.PlaceOrder(context.Background(), request("64.80"))

	var gwErr *checkout.GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, "card declined", gwErr.Reason)
	assert.ErrorIs(t, err, ErrDeclined)
	assert.Empty(t, rec.orders)
}

func TestPlaceOrder_Cancelled(t *testing.T) {
	g := NewOrderGateway(&Sandbox{Latency: time.Minute}, &memRecorder{}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.PlaceOrder(ctx, request("10.00"))

	var gwErr *checkout.GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, "payment request timed out", gwErr.Reason)
}

func TestPlaceOrder_RecorderFailure(t *testing.T) {
	g := NewOrderGateway(&Sandbox{}, &memRecorder{err: errors.New("disk full")}, zap.NewNop())

	_, err := g.PlaceOrder(context.Background(), request("10.00"))

	var gwErr *checkout.GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.Contains(t, gwErr.Reason, "could not be recorded")
}

func TestPlaceOrder_RejectsBadRequests(t *testing.T) {
	g := NewOrderGateway(&Sandbox{}, &memRecorder{}, zap.NewNop())

	req := request("10.00")
	req.Cart.Items = nil
	_, err := g.PlaceOrder(context.Background(), req)
	assert.Error(t, err)

	req = request("10.00")
	req.PaymentMethod = "cheque"
	_, err = g.PlaceOrder(context.Background(), req)
	assert.Error(t, err)
}
