package gateway

import (
	"context"
	"time"

	"github.com/drstein77/oilcheckout/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Sandbox is a stand-in processor for development and demos. It waits for
// Latency and declines totals above DeclineAbove when that limit is set.
type Sandbox struct {
	Latency      time.Duration
	DeclineAbove *decimal.Decimal
}

func (s *Sandbox) Authorize(ctx context.Context, method models.PaymentMethod, amount decimal.Decimal, currency string) (string, error) {
	if s.Latency > 0 {
		timer := time.NewTimer(s.Latency)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if !amount.IsPositive() {
		return "", &DeclineError{Reason: "amount must be positive"}
	}
	if s.DeclineAbove != nil && amount.GreaterThan(*s.DeclineAbove) {
		return "", &DeclineError{Reason: "card declined"}
	}
	return "sbx_" + string(method) + "_" + uuid.NewString(), nil
}
