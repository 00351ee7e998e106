package checkout

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition matches every *TransitionError.
	ErrInvalidTransition = errors.New("invalid checkout transition")
	// ErrAlreadyProcessing rejects operations while an order is being placed.
	ErrAlreadyProcessing = errors.New("order placement already in progress")
	// ErrTotalsChanged means the cart changed after review; the refreshed
	// totals must be confirmed before the order is placed.
	ErrTotalsChanged = errors.New("order totals changed since review")
	// ErrStaleAttempt is returned to a PlaceOrder caller whose attempt was
	// cancelled before the gateway replied.
	ErrStaleAttempt = errors.New("order attempt was superseded")
)

// TransitionError is a guard violation. The session is left unchanged.
type TransitionError struct {
	From   Step
	Event  string
	Reason string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s from %s: %s", e.Event, e.From, e.Reason)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// GatewayError is a failed order placement. Reason is shown to the shopper.
type GatewayError struct {
	Reason string
	Err    error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("order placement failed: %s: %v", e.Reason, e.Err)
	}
	return "order placement failed: " + e.Reason
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// NewGatewayError builds a GatewayError with a human-readable reason.
func NewGatewayError(reason string) *GatewayError {
	return &GatewayError{Reason: reason}
}

// asGatewayError keeps gateway-supplied reasons and wraps anything else.
func asGatewayError(err error) *GatewayError {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &GatewayError{Reason: "payment request timed out", Err: err}
	}
	return &GatewayError{Reason: "payment service unavailable", Err: err}
}
