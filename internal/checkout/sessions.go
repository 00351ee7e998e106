package checkout

import (
	"context"
	"errors"
	"sync"

	"github.com/drstein77/oilcheckout/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrSessionNotFound = errors.New("checkout session not found")

// Carts gives access to a cart by id and to its change notifications.
type Carts interface {
	Cart(cartID string) CartSource
	Subscribe(cartID string, fn func(models.Cart)) (cancel func())
}

type registered struct {
	ctrl  *Controller
	unsub func()
}

// Sessions keeps the active checkouts, one Controller per session.
type Sessions struct {
	mx       sync.RWMutex
	sessions map[string]registered

	cfg      Config
	carts    Carts
	gateway  Gateway
	notifier Notifier
	log      Log
}

func NewSessions(cfg Config, carts Carts, gateway Gateway, notifier Notifier, log Log) *Sessions {
	return &Sessions{
		sessions: make(map[string]registered),
		cfg:      cfg,
		carts:    carts,
		gateway:  gateway,
		notifier: notifier,
		log:      log,
	}
}

// Begin starts a checkout for cartID. Cart changes refresh its totals.
func (s *Sessions) Begin(cartID string) *Controller {
	id := uuid.NewString()
	ctrl := NewController(id, cartID, s.cfg, s.carts.Cart(cartID), s.gateway, s.notifier, s.log)

	unsub := s.carts.Subscribe(cartID, func(models.Cart) {
		if err := ctrl.Refresh(context.Background()); err != nil {
			s.log.Warn("cannot refresh checkout totals", zap.String("session", id), zap.Error(err))
		}
	})

	s.mx.Lock()
	s.sessions[id] = registered{ctrl: ctrl, unsub: unsub}
	s.mx.Unlock()

	s.log.Info("checkout started", zap.String("session", id), zap.String("cart", cartID))
	return ctrl
}

func (s *Sessions) Get(id string) (*Controller, error) {
	s.mx.RLock()
	defer s.mx.RUnlock()
	r, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return r.ctrl, nil
}

// Discard drops the session and cancels anything it still has in flight.
func (s *Sessions) Discard(id string) error {
	s.mx.Lock()
	r, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mx.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	r.unsub()
	r.ctrl.Close()
	s.log.Info("checkout discarded", zap.String("session", id))
	return nil
}

func (s *Sessions) Len() int {
	s.mx.RLock()
	defer s.mx.RUnlock()
	return len(s.sessions)
}

// CloseAll discards every session, used on shutdown.
func (s *Sessions) CloseAll() {
	s.mx.Lock()
	all := s.sessions
	s.sessions = make(map[string]registered)
	s.mx.Unlock()

	for _, r := range all {
		r.unsub()
		r.ctrl.Close()
	}
}
