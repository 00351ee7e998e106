package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/drstein77/oilcheckout/internal/checkout"
	"github.com/drstein77/oilcheckout/internal/models"
	"go.uber.org/zap"
)

// ErrConflict indicates a data conflict in the store.
var (
	ErrConflict = errors.New("data conflict")
	ErrNotFound = errors.New("not found")
)

type Log interface {
	Info(string, ...zap.Field)
	Error(string, ...zap.Field)
}

// Keeper interface for database operations
type Keeper interface {
	InsertOrder(context.Context, models.Order) error
	LoadOrders(context.Context) ([]models.Order, error)
	Ping(context.Context) bool
	Close() bool
}

// MemoryStorage keeps carts in memory and orders in memory backed by the
// keeper when one is configured.
type MemoryStorage struct {
	mx     sync.RWMutex
	carts  map[string]models.Cart
	orders map[string]models.Order

	subMx   sync.Mutex
	subs    map[string]map[int]func(models.Cart)
	nextSub int

	keeper Keeper
	log    Log
	now    func() time.Time
}

// NewMemoryStorage creates a new MemoryStorage instance, loading previously
// recorded orders from the keeper.
func NewMemoryStorage(ctx context.Context, keeper Keeper, log Log) *MemoryStorage {
	s := &MemoryStorage{
		carts:  make(map[string]models.Cart),
		orders: make(map[string]models.Order),
		subs:   make(map[string]map[int]func(models.Cart)),
		keeper: keeper,
		log:    log,
		now:    time.Now,
	}

	if keeper != nil {
		orders, err := keeper.LoadOrders(ctx)
		if err != nil {
			log.Error("cannot load orders", zap.Error(err))
		}
		for _, o := range orders {
			s.orders[o.ID] = o
		}
		log.Info("orders loaded", zap.Int("count", len(orders)))
	}

	return s
}

// PutCart replaces the items of a cart, creating it if needed.
func (s *MemoryStorage) PutCart(ctx context.Context, cartID string, items []models.CartItem) (models.Cart, error) {
	cartID = strings.TrimSpace(cartID)
	if cartID == "" {
		return models.Cart{}, &models.ValidationError{Field: "cart id", Reason: "must not be empty"}
	}
	merged, err := mergeItems(items)
	if err != nil {
		return models.Cart{}, err
	}

	cart := models.Cart{ID: cartID, Items: merged, UpdatedAt: s.now()}
	s.mx.Lock()
	s.carts[cartID] = cart
	s.mx.Unlock()

	s.notify(cart)
	return cart.Clone(), nil
}

// GetCart returns the cart; an unknown cart is empty.
func (s *MemoryStorage) GetCart(ctx context.Context, cartID string) (models.Cart, error) {
	s.mx.RLock()
	defer s.mx.RUnlock()
	cart, ok := s.carts[cartID]
	if !ok {
		return models.Cart{ID: cartID, Items: []models.CartItem{}}, nil
	}
	return cart.Clone(), nil
}

// ClearCart empties the cart.
func (s *MemoryStorage) ClearCart(ctx context.Context, cartID string) error {
	s.mx.Lock()
	_, ok := s.carts[cartID]
	delete(s.carts, cartID)
	s.mx.Unlock()

	if ok {
		s.notify(models.Cart{ID: cartID, Items: []models.CartItem{}, UpdatedAt: s.now()})
	}
	return nil
}

// Cart returns a read-only view of one cart for a checkout session.
func (s *MemoryStorage) Cart(cartID string) checkout.CartSource {
	return cartView{store: s, id: cartID}
}

// Subscribe calls fn after every change of the cart until cancelled.
func (s *MemoryStorage) Subscribe(cartID string, fn func(models.Cart)) (cancel func()) {
	s.subMx.Lock()
	defer s.subMx.Unlock()
	s.nextSub++
	key := s.nextSub
	if s.subs[cartID] == nil {
		s.subs[cartID] = make(map[int]func(models.Cart))
	}
	s.subs[cartID][key] = fn

	return func() {
		s.subMx.Lock()
		defer s.subMx.Unlock()
		delete(s.subs[cartID], key)
		if len(s.subs[cartID]) == 0 {
			delete(s.subs, cartID)
		}
	}
}

func (s *MemoryStorage) notify(cart models.Cart) {
	s.subMx.Lock()
	fns := make([]func(models.Cart), 0, len(s.subs[cart.ID]))
	for _, fn := range s.subs[cart.ID] {
		fns = append(fns, fn)
	}
	s.subMx.Unlock()

	for _, fn := range fns {
		fn(cart.Clone())
	}
}

// SaveOrder records a confirmed order. Order ids are unique.
func (s *MemoryStorage) SaveOrder(ctx context.Context, order models.Order) error {
	s.mx.RLock()
	_, exists := s.orders[order.ID]
	s.mx.RUnlock()
	if exists {
		return fmt.Errorf("order %s: %w", order.ID, ErrConflict)
	}

	if s.keeper != nil {
		if err := s.keeper.InsertOrder(ctx, order); err != nil {
			return fmt.Errorf("failed to persist order %s: %w", order.ID, err)
		}
	}

	s.mx.Lock()
	defer s.mx.Unlock()
	if _, exists := s.orders[order.ID]; exists {
		return fmt.Errorf("order %s: %w", order.ID, ErrConflict)
	}
	s.orders[order.ID] = order
	s.log.Info("order recorded", zap.String("order", order.ID), zap.String("cart", order.CartID))
	return nil
}

func (s *MemoryStorage) GetOrder(ctx context.Context, id string) (models.Order, error) {
	s.mx.RLock()
	defer s.mx.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return models.Order{}, fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	return o, nil
}

// Orders returns every recorded order, oldest first.
func (s *MemoryStorage) Orders(ctx context.Context) []models.Order {
	s.mx.RLock()
	defer s.mx.RUnlock()
	out := make([]models.Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Ping reports whether the backing database is reachable; without a keeper
// the storage is always available.
func (s *MemoryStorage) Ping(ctx context.Context) bool {
	if s.keeper == nil {
		return true
	}
	return s.keeper.Ping(ctx)
}

func (s *MemoryStorage) Close() {
	if s.keeper != nil {
		s.keeper.Close()
	}
}

// mergeItems folds repeated products into one line, keeping first-seen order.
func mergeItems(items []models.CartItem) ([]models.CartItem, error) {
	merged := make([]models.CartItem, 0, len(items))
	index := make(map[string]int, len(items))
	for i, item := range items {
		if strings.TrimSpace(item.Product.ID) == "" {
			return nil, &models.ValidationError{Field: fmt.Sprintf("item %d", i), Reason: "product id is required"}
		}
		if item.Quantity < 1 {
			return nil, &models.ValidationError{Field: fmt.Sprintf("item %d (%s)", i, item.Product.ID), Reason: "quantity must be at least 1"}
		}
		if item.Product.UnitPrice.IsNegative() {
			return nil, &models.ValidationError{Field: fmt.Sprintf("item %d (%s)", i, item.Product.ID), Reason: "unit price must not be negative"}
		}
		if j, ok := index[item.Product.ID]; ok {
			merged[j].Quantity += item.Quantity
			continue
		}
		index[item.Product.ID] = len(merged)
		merged = append(merged, item)
	}
	return merged, nil
}

type cartView struct {
	store *MemoryStorage
	id    string
}

func (v cartView) Snapshot(ctx context.Context) (models.Cart, error) {
	return v.store.GetCart(ctx, v.id)
}
