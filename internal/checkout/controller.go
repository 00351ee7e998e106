// Package checkout drives one shopper's checkout through its steps and
// coordinates the single in-flight order placement.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/drstein77/oilcheckout/internal/models"
	"github.com/drstein77/oilcheckout/internal/notify"
	"github.com/drstein77/oilcheckout/internal/totals"
	"go.uber.org/zap"
)

type Step int

const (
	StepCart Step = iota
	StepAddress
	StepPayment
	StepReview
	StepPlacing
	StepCompleted
)

var stepNames = [...]string{"cart", "address", "payment", "review", "placing", "completed"}

func (s Step) String() string {
	if s < 0 || int(s) >= len(stepNames) {
		return fmt.Sprintf("step(%d)", int(s))
	}
	return stepNames[s]
}

func (s Step) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// CartSource returns the current cart. It is re-read on every recompute.
type CartSource interface {
	Snapshot(ctx context.Context) (models.Cart, error)
}

// Gateway places an order with the external payment backend. It may block
// for a long time and is called at most once per attempt.
type Gateway interface {
	PlaceOrder(ctx context.Context, req models.OrderRequest) (*models.OrderConfirmation, error)
}

type Notifier interface {
	Enqueue(msg notify.Message) uint64
}

type Log interface {
	Info(string, ...zap.Field)
	Warn(string, ...zap.Field)
	Error(string, ...zap.Field)
}

type Config struct {
	Pricing              totals.Config
	DefaultPaymentMethod models.PaymentMethod
}

// View is a read-only copy of the session state.
type View struct {
	ID            string                    `json:"id"`
	CartID        string                    `json:"cart_id"`
	Step          Step                      `json:"step"`
	Address       *models.Address           `json:"address,omitempty"`
	PaymentMethod models.PaymentMethod      `json:"payment_method,omitempty"`
	Processing    bool                      `json:"processing"`
	Totals        models.Totals             `json:"totals"`
	LastError     string                    `json:"last_error,omitempty"`
	Confirmation  *models.OrderConfirmation `json:"confirmation,omitempty"`
}

type session struct {
	step         Step
	address      *models.Address
	method       models.PaymentMethod
	processing   bool
	totals       models.Totals
	cart         models.Cart
	lastErr      error
	confirmation *models.OrderConfirmation
}

// Controller is the state machine of a single checkout session. Operations
// are serialized; only the gateway call runs without the lock held.
type Controller struct {
	id     string
	cartID string

	mx      sync.Mutex
	s       session
	attempt uint64
	cancel  context.CancelFunc

	cfg      Config
	cart     CartSource
	gateway  Gateway
	notifier Notifier
	log      Log
}

func NewController(id, cartID string, cfg Config, cart CartSource, gateway Gateway, notifier Notifier, log Log) *Controller {
	return &Controller{
		id:     id,
		cartID: cartID,
		s: session{
			step:   StepCart,
			method: cfg.DefaultPaymentMethod,
		},
		cfg:      cfg,
		cart:     cart,
		gateway:  gateway,
		notifier: notifier,
		log:      log,
	}
}

func (c *Controller) ID() string {
	return c.id
}

func (c *Controller) Step() Step {
	c.mx.Lock()
	defer c.mx.Unlock()
	return c.s.step
}

func (c *Controller) Address() *models.Address {
	c.mx.Lock()
	defer c.mx.Unlock()
	if c.s.address == nil {
		return nil
	}
	a := *c.s.address
	return &a
}

func (c *Controller) PaymentMethod() models.PaymentMethod {
	c.mx.Lock()
	defer c.mx.Unlock()
	return c.s.method
}

func (c *Controller) Totals() models.Totals {
	c.mx.Lock()
	defer c.mx.Unlock()
	return c.s.totals
}

func (c *Controller) Processing() bool {
	c.mx.Lock()
	defer c.mx.Unlock()
	return c.s.processing
}

// LastError is the most recent gateway failure, cleared by the next attempt.
func (c *Controller) LastError() error {
	c.mx.Lock()
	defer c.mx.Unlock()
	return c.s.lastErr
}

func (c *Controller) View() View {
	c.mx.Lock()
	defer c.mx.Unlock()

	v := View{
		ID:            c.id,
		CartID:        c.cartID,
		Step:          c.s.step,
		PaymentMethod: c.s.method,
		Processing:    c.s.processing,
		Totals:        c.s.totals,
		Confirmation:  c.s.confirmation,
	}
	if c.s.address != nil {
		a := *c.s.address
		v.Address = &a
	}
	if c.s.lastErr != nil {
		var gwErr *GatewayError
		if errors.As(c.s.lastErr, &gwErr) {
			v.LastError = gwErr.Reason
		} else {
			v.LastError = c.s.lastErr.Error()
		}
	}
	return v
}

// SelectAddress sets the delivery address while on the address step.
func (c *Controller) SelectAddress(addr models.Address) error {
	c.mx.Lock()
	defer c.mx.Unlock()

	if err := c.guardLocked(StepAddress, "select address"); err != nil {
		return err
	}
	if missing := addr.MissingFields(); len(missing) > 0 {
		return &models.ValidationError{Field: "address", Reason: fmt.Sprintf("missing %v", missing)}
	}
	c.s.address = &addr
	return nil
}

// SelectPaymentMethod sets the payment method while on the payment step.
func (c *Controller) SelectPaymentMethod(m models.PaymentMethod) error {
	c.mx.Lock()
	defer c.mx.Unlock()

	if err := c.guardLocked(StepPayment, "select payment method"); err != nil {
		return err
	}
	if !m.Valid() {
		return c.transitionErr("select payment method", fmt.Sprintf("unknown payment method %q", m))
	}
	c.s.method = m
	return nil
}

// Proceed moves to the next step if the current step's data is complete.
func (c *Controller) Proceed(ctx context.Context) (Step, error) {
	c.mx.Lock()
	defer c.mx.Unlock()

	if c.s.processing {
		return c.s.step, ErrAlreadyProcessing
	}

	var next Step
	switch c.s.step {
	case StepCart:
		if err := c.recomputeLocked(ctx, "proceed"); err != nil {
			return c.s.step, err
		}
		next = StepAddress
	case StepAddress:
		if c.s.address == nil {
			return c.s.step, c.transitionErr("proceed", "no delivery address selected")
		}
		next = StepPayment
	case StepPayment:
		if c.s.method == "" {
			return c.s.step, c.transitionErr("proceed", "no payment method selected")
		}
		if err := c.recomputeLocked(ctx, "proceed"); err != nil {
			return c.s.step, err
		}
		next = StepReview
	case StepReview:
		return c.s.step, c.transitionErr("proceed", "the order is confirmed with place order")
	default:
		return c.s.step, c.transitionErr("proceed", "checkout is finished")
	}

	c.moveLocked(next)
	return next, nil
}

// Back returns to the previous step keeping every selection. From the
// placing step it abandons the in-flight attempt and returns to review.
func (c *Controller) Back() (Step, error) {
	c.mx.Lock()
	defer c.mx.Unlock()

	switch c.s.step {
	case StepAddress:
		c.moveLocked(StepCart)
	case StepPayment:
		c.moveLocked(StepAddress)
	case StepReview:
		c.moveLocked(StepPayment)
	case StepPlacing:
		c.abortLocked()
	case StepCart:
		return c.s.step, c.transitionErr("back", "already on the first step")
	default:
		return c.s.step, c.transitionErr("back", "checkout is finished")
	}
	return c.s.step, nil
}

// Refresh recomputes totals after a cart change. It does nothing outside
// the address, payment and review steps.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mx.Lock()
	defer c.mx.Unlock()

	switch c.s.step {
	case StepAddress, StepPayment, StepReview:
	default:
		return nil
	}
	cart, err := c.cart.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("failed to read cart: %w", err)
	}
	t, err := totals.Compute(cart, c.cfg.Pricing)
	if err != nil {
		return err
	}
	c.s.cart, c.s.totals = cart, t
	return nil
}

// PlaceOrder submits the reviewed order to the gateway and blocks until it
// answers. Only one call can be in flight; concurrent calls get
// ErrAlreadyProcessing and never reach the gateway.
func (c *Controller) PlaceOrder(ctx context.Context) (*models.OrderConfirmation, error) {
	req, attempt, pctx, err := c.beginPlacing(ctx)
	if err != nil {
		return nil, err
	}

	conf, gwErr := c.gateway.PlaceOrder(pctx, req)
	if gwErr == nil && conf == nil {
		gwErr = NewGatewayError("no confirmation received")
	}

	msg, result, err := c.finishPlacing(attempt, conf, gwErr)
	if msg != nil {
		c.notifier.Enqueue(*msg)
	}
	return result, err
}

func (c *Controller) beginPlacing(ctx context.Context) (models.OrderRequest, uint64, context.Context, error) {
	c.mx.Lock()
	defer c.mx.Unlock()

	if c.s.processing {
		return models.OrderRequest{}, 0, nil, ErrAlreadyProcessing
	}
	if c.s.step != StepReview {
		return models.OrderRequest{}, 0, nil, c.transitionErr("place order", "order must be reviewed first")
	}

	reviewed := c.s.totals
	if err := c.recomputeLocked(ctx, "place order"); err != nil {
		return models.OrderRequest{}, 0, nil, err
	}
	if !c.s.totals.Equal(reviewed) {
		c.log.Info("totals changed before placing order", zap.String("session", c.id))
		return models.OrderRequest{}, 0, nil, ErrTotalsChanged
	}

	c.attempt++
	pctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.s.processing = true
	c.s.lastErr = nil
	c.moveLocked(StepPlacing)

	req := models.OrderRequest{
		SessionID:     c.id,
		Address:       *c.s.address,
		PaymentMethod: c.s.method,
		Totals:        c.s.totals,
		Cart:          c.s.cart.Clone(),
	}
	return req, c.attempt, pctx, nil
}

func (c *Controller) finishPlacing(attempt uint64, conf *models.OrderConfirmation, gwErr error) (*notify.Message, *models.OrderConfirmation, error) {
	c.mx.Lock()
	defer c.mx.Unlock()

	if attempt != c.attempt || c.s.step != StepPlacing {
		c.log.Warn("discarding gateway reply for superseded attempt",
			zap.String("session", c.id), zap.Uint64("attempt", attempt), zap.Error(gwErr))
		return nil, nil, ErrStaleAttempt
	}
	c.releaseLocked()

	if gwErr != nil {
		failure := asGatewayError(gwErr)
		c.s.lastErr = failure
		c.moveLocked(StepReview)
		c.log.Error("order placement failed", zap.String("session", c.id), zap.Error(gwErr))
		return &notify.Message{
			Title:       "Payment failed",
			Description: failure.Reason,
			Severity:    models.SeverityError,
		}, nil, failure
	}

	c.s.confirmation = conf
	c.moveLocked(StepCompleted)
	c.log.Info("order placed", zap.String("session", c.id), zap.String("order", conf.OrderID))
	return &notify.Message{
		Title: "Order placed",
		Description: fmt.Sprintf("Order %s confirmed. Total charged: %s%s",
			conf.OrderID, c.s.totals.Currency, c.s.totals.Total.StringFixed(totals.Places)),
		Severity: models.SeveritySuccess,
	}, conf, nil
}

// Close abandons the session, cancelling an in-flight gateway call.
func (c *Controller) Close() {
	c.mx.Lock()
	defer c.mx.Unlock()
	if c.s.step == StepPlacing {
		c.abortLocked()
	}
}

func (c *Controller) guardLocked(want Step, event string) error {
	if c.s.processing {
		return ErrAlreadyProcessing
	}
	if c.s.step != want {
		return c.transitionErr(event, fmt.Sprintf("only allowed on the %s step", want))
	}
	return nil
}

func (c *Controller) recomputeLocked(ctx context.Context, event string) error {
	cart, err := c.cart.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("failed to read cart: %w", err)
	}
	if cart.IsEmpty() {
		return c.transitionErr(event, "cart is empty")
	}
	t, err := totals.Compute(cart, c.cfg.Pricing)
	if err != nil {
		return err
	}
	c.s.cart, c.s.totals = cart, t
	return nil
}

func (c *Controller) abortLocked() {
	c.attempt++
	c.releaseLocked()
	c.moveLocked(StepReview)
	c.log.Warn("order placement abandoned", zap.String("session", c.id))
}

func (c *Controller) releaseLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.s.processing = false
}

func (c *Controller) moveLocked(next Step) {
	c.log.Info("checkout step changed",
		zap.String("session", c.id), zap.Stringer("from", c.s.step), zap.Stringer("to", next))
	c.s.step = next
}

func (c *Controller) transitionErr(event, reason string) *TransitionError {
	return &TransitionError{From: c.s.step, Event: event, Reason: reason}
}
