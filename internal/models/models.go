package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Currency  string          `json:"currency,omitempty"`
}

type CartItem struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

// Cart is a read-only snapshot of the shopper's cart.
type Cart struct {
	ID        string     `json:"id"`
	Items     []CartItem `json:"items"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// IsEmpty reports whether the cart has no line items.
func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Clone returns a copy that does not share the items slice.
func (c Cart) Clone() Cart {
	items := make([]CartItem, len(c.Items))
	copy(items, c.Items)
	c.Items = items
	return c
}

// Totals is the monetary breakdown of a cart snapshot.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Shipping decimal.Decimal `json:"shipping"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
	Currency string          `json:"currency"`
}

// Equal compares amounts numerically, so 5.9 equals 5.90.
func (t Totals) Equal(o Totals) bool {
	return t.Currency == o.Currency &&
		t.Subtotal.Equal(o.Subtotal) &&
		t.Shipping.Equal(o.Shipping) &&
		t.Tax.Equal(o.Tax) &&
		t.Total.Equal(o.Total)
}

type Address struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// MissingFields lists the required address fields that are blank.
func (a Address) MissingFields() []string {
	var missing []string
	check := func(name, v string) {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	check("street", a.Street)
	check("city", a.City)
	check("postal_code", a.PostalCode)
	check("country", a.Country)
	return missing
}

type PaymentMethod string

const (
	PaymentUPI        PaymentMethod = "upi"
	PaymentCreditCard PaymentMethod = "credit_card"
	PaymentDebitCard  PaymentMethod = "debit_card"
	PaymentWallet     PaymentMethod = "wallet"
	PaymentNetBanking PaymentMethod = "net_banking"
)

// PaymentMethods is the closed set of selectable methods, in display order.
var PaymentMethods = []PaymentMethod{
	PaymentUPI,
	PaymentCreditCard,
	PaymentDebitCard,
	PaymentWallet,
	PaymentNetBanking,
}

func (m PaymentMethod) Valid() bool {
	for _, known := range PaymentMethods {
		if m == known {
			return true
		}
	}
	return false
}

func (m PaymentMethod) String() string {
	return string(m)
}

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notification is a transient user-facing message. DurationMs is zero for
// messages that are never dismissed automatically.
type Notification struct {
	ID          uint64    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Severity    Severity  `json:"severity"`
	CreatedAt   time.Time `json:"created_at"`
	DurationMs  int64     `json:"duration_ms"`
}

// OrderRequest is what the checkout hands to the order placement gateway.
type OrderRequest struct {
	SessionID     string        `json:"session_id"`
	Address       Address       `json:"address"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	Totals        Totals        `json:"totals"`
	Cart          Cart          `json:"cart"`
}

type OrderConfirmation struct {
	OrderID   string          `json:"order_id"`
	Reference string          `json:"reference"`
	Total     decimal.Decimal `json:"total"`
	PlacedAt  time.Time       `json:"placed_at"`
}

// Order is the recorded outcome of a confirmed order.
type Order struct {
	ID            string        `json:"id"`
	SessionID     string        `json:"session_id"`
	CartID        string        `json:"cart_id"`
	Address       Address       `json:"address"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	Items         []CartItem    `json:"items"`
	Totals        Totals        `json:"totals"`
	Reference     string        `json:"reference"`
	CreatedAt     time.Time     `json:"created_at"`
}
