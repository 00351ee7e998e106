// Package totals derives the order breakdown (subtotal, shipping, tax and
// grand total) from a cart snapshot.
package totals

import (
	"fmt"

	"github.com/drstein77/oilcheckout/internal/models"
	"github.com/shopspring/decimal"
)

// Places is the minor-unit precision of every amount.
const Places = 2

// Config holds the pricing rules shared by every totals computation.
type Config struct {
	FreeShippingThreshold decimal.Decimal
	FlatShippingFee       decimal.Decimal
	TaxRate               decimal.Decimal
	Currency              string
}

// Validate checks that amounts are non-negative and the tax rate is in [0,1).
func (c Config) Validate() error {
	if c.FreeShippingThreshold.IsNegative() {
		return &models.ValidationError{Field: "free shipping threshold", Reason: "must not be negative"}
	}
	if c.FlatShippingFee.IsNegative() {
		return &models.ValidationError{Field: "flat shipping fee", Reason: "must not be negative"}
	}
	if c.TaxRate.IsNegative() || c.TaxRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return &models.ValidationError{Field: "tax rate", Reason: "must be in [0, 1)"}
	}
	return nil
}

// Compute returns the totals for cart under cfg. The components are rounded
// to Places individually and the total is their exact sum.
func Compute(cart models.Cart, cfg Config) (models.Totals, error) {
	zero := models.Totals{
		Subtotal: decimal.Zero,
		Shipping: decimal.Zero,
		Tax:      decimal.Zero,
		Total:    decimal.Zero,
		Currency: cfg.Currency,
	}

	subtotal := decimal.Zero
	for i, item := range cart.Items {
		if err := validateItem(i, item, cfg.Currency); err != nil {
			return zero, err
		}
		line := item.Product.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		subtotal = subtotal.Add(line)
	}
	if len(cart.Items) == 0 {
		return zero, nil
	}

	subtotal = round(subtotal)
	shipping := round(cfg.FlatShippingFee)
	if subtotal.GreaterThanOrEqual(cfg.FreeShippingThreshold) {
		shipping = decimal.Zero
	}
	tax := round(subtotal.Mul(cfg.TaxRate))

	return models.Totals{
		Subtotal: subtotal,
		Shipping: shipping,
		Tax:      tax,
		Total:    subtotal.Add(shipping).Add(tax),
		Currency: cfg.Currency,
	}, nil
}

func validateItem(i int, item models.CartItem, currency string) error {
	field := fmt.Sprintf("item %d (%s)", i, item.Product.ID)
	if item.Product.UnitPrice.IsNegative() {
		return &models.ValidationError{Field: field, Reason: "unit price must not be negative"}
	}
	if item.Quantity < 1 {
		return &models.ValidationError{Field: field, Reason: "quantity must be at least 1"}
	}
	if item.Product.Currency != "" && currency != "" && item.Product.Currency != currency {
		return &models.ValidationError{
			Field:  field,
			Reason: fmt.Sprintf("currency %q differs from %q", item.Product.Currency, currency),
		}
	}
	return nil
}

// round is half-up at Places; amounts reaching it are never negative, so
// decimal's half-away-from-zero gives the same result.
func round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}
