package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/drstein77/oilcheckout/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeKeeper struct {
	inserted []models.Order
	loaded   []models.Order
	failWith error
}

func (k *fakeKeeper) InsertOrder(_ context.Context, o models.Order) error {
	if k.failWith != nil {
		return k.failWith
	}
	k.inserted = append(k.inserted, o)
	return nil
}

func (k *fakeKeeper) LoadOrders(context.Context) ([]models.Order, error) {
	return k.loaded, nil
}

func (k *fakeKeeper) Ping(context.Context) bool { return true }
func (k *fakeKeeper) Close() bool               { return true }

func item(id, price string, qty int) models.CartItem {
	return models.CartItem{
		Product:  models.Product{ID: id, Name: id, UnitPrice: decimal.RequireFromString(price)},
		Quantity: qty,
	}
}

func TestPutCart_MergesAndNotifies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage(ctx, nil, zap.NewNop())

	var seen []models.Cart
	cancel := s.Subscribe("c1", func(c models.Cart) { seen = append(seen, c) })

	cart, err := s.PutCart(ctx, "c1", []models.CartItem{
		item("lavender", "12.00", 1),
		item("rose", "30.00", 1),
		item("lavender", "12.00", 2),
	})
	require.NoError(t, err)
	require.Len(t, cart.Items, 2)
	assert.Equal(t, "lavender", cart.Items[0].Product.ID)
	assert.Equal(t, 3, cart.Items[0].Quantity)
	require.Len(t, seen, 1)

	cancel()
	require.NoError(t, s.ClearCart(ctx, "c1"))
	assert.Len(t, seen, 1)

	got, err := s.GetCart(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, got.IsEmpty())
}

func TestPutCart_RejectsBadItems(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage(ctx, nil, zap.NewNop())

	_, err := s.PutCart(ctx, "c1", []models.CartItem{item("x", "1.00", 0)})
	assert.ErrorIs(t, err, models.ErrValidation)
	_, err = s.PutCart(ctx, "c1", []models.CartItem{item("x", "-1.00", 1)})
	assert.ErrorIs(t, err, models.ErrValidation)
	_, err = s.PutCart(ctx, " ", nil)
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestCartView_ReadsLatest(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage(ctx, nil, zap.NewNop())
	view := s.Cart("c1")

	_, err := s.PutCart(ctx, "c1", []models.CartItem{item("rose", "30.00", 1)})
	require.NoError(t, err)
	snap, err := view.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Items, 1)

	// mutating the snapshot must not change the store
	snap.Items[0].Quantity = 99
	again, err := view.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, again.Items[0].Quantity)
}

func TestSaveOrder_PersistsThroughKeeper(t *testing.T) {
	ctx := context.Background()
	keeper := &fakeKeeper{loaded: []models.Order{{ID: "old", CreatedAt: time.Unix(1, 0)}}}
	s := NewMemoryStorage(ctx, keeper, zap.NewNop())

	_, err := s.GetOrder(ctx, "old")
	require.NoError(t, err)

	order := models.Order{ID: "new", CartID: "c1", CreatedAt: time.Unix(2, 0)}
	require.NoError(t, s.SaveOrder(ctx, order))
	require.Len(t, keeper.inserted, 1)

	err = s.SaveOrder(ctx, order)
	assert.ErrorIs(t, err, ErrConflict)

	orders := s.Orders(ctx)
	require.Len(t, orders, 2)
	assert.Equal(t, "old", orders[0].ID)

	_, err = s.GetOrder(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveOrder_KeeperFailureIsNotRecorded(t *testing.T) {
	ctx := context.Background()
	keeper := &fakeKeeper{failWith: errors.New("connection refused")}
	s := NewMemoryStorage(ctx, keeper, zap.NewNop())

	err := s.SaveOrder(ctx, models.Order{ID: "o1"})
	require.Error(t, err)
	_, err = s.GetOrder(ctx, "o1")
	assert.ErrorIs(t, err, ErrNotFound)
}
