// Package gateway places checkout orders: it authorizes the payment with an
// external processor and records the confirmed order.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/drstein77/oilcheckout/internal/checkout"
	"github.com/drstein77/oilcheckout/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrDeclined is returned by processors that refuse a payment.
var ErrDeclined = errors.New("payment declined")

// DeclineError carries the processor's explanation of a refusal.
type DeclineError struct {
	Reason string
}

func (e *DeclineError) Error() string {
	return "payment declined: " + e.Reason
}

func (e *DeclineError) Is(target error) bool {
	return target == ErrDeclined
}

// Processor is the opaque external payment processor.
type Processor interface {
	Authorize(ctx context.Context, method models.PaymentMethod, amount decimal.Decimal, currency string) (reference string, err error)
}

// Recorder stores confirmed orders.
type Recorder interface {
	SaveOrder(ctx context.Context, order models.Order) error
}

type Log interface {
	Info(string, ...zap.Field)
	Error(string, ...zap.Field)
}

// OrderGateway implements checkout.Gateway.
type OrderGateway struct {
	processor Processor
	orders    Recorder
	log       Log
	now       func() time.Time
}

func NewOrderGateway(processor Processor, orders Recorder, log Log) *OrderGateway {
	return &OrderGateway{
		processor: processor,
		orders:    orders,
		log:       log,
		now:       time.Now,
	}
}

// PlaceOrder authorizes the order total and records the order. Failures are
// returned as *checkout.GatewayError with a reason fit for the shopper.
func (g *OrderGateway) PlaceOrder(ctx context.Context, req models.OrderRequest) (*models.OrderConfirmation, error) {
	if req.Cart.IsEmpty() {
		return nil, checkout.NewGatewayError("the cart is empty")
	}
	if !req.PaymentMethod.Valid() {
		return nil, checkout.NewGatewayError(fmt.Sprintf("payment method %q is not supported", req.PaymentMethod))
	}

	ref, err := g.processor.Authorize(ctx, req.PaymentMethod, req.Totals.Total, req.Totals.Currency)
	if err != nil {
		g.log.Error("payment authorization failed", zap.String("session", req.SessionID), zap.Error(err))
		var decline *DeclineError
		switch {
		case errors.As(err, &decline):
			return nil, &checkout.GatewayError{Reason: decline.Reason, Err: err}
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil, &checkout.GatewayError{Reason: "payment request timed out", Err: err}
		default:
			return nil, &checkout.GatewayError{Reason: "payment processor unavailable", Err: err}
		}
	}

	order := models.Order{
		ID:            uuid.NewString(),
		SessionID:     req.SessionID,
		CartID:        req.Cart.ID,
		Address:       req.Address,
		PaymentMethod: req.PaymentMethod,
		Items:         req.Cart.Clone().Items,
		Totals:        req.Totals,
		Reference:     ref,
		CreatedAt:     g.now().UTC(),
	}
	// the payment is already authorized; record it even if ctx is cancelled
	if err := g.orders.SaveOrder(context.WithoutCancel(ctx), order); err != nil {
		g.log.Error("cannot record authorized order",
			zap.String("order", order.ID), zap.String("reference", ref), zap.Error(err))
		return nil, &checkout.GatewayError{Reason: "order could not be recorded, your payment will be refunded", Err: err}
	}

	g.log.Info("order confirmed", zap.String("order", order.ID), zap.String("reference", ref))
	return &models.OrderConfirmation{
		OrderID:   order.ID,
		Reference: ref,
		Total:     req.Totals.Total,
		PlacedAt:  order.CreatedAt,
	}, nil
}
