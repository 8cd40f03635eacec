package cart

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/pos-checkout/pkg/enums"
)

var (
	// ErrEmptyCart is returned when an order is assembled from a cart without lines.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrInvalidPaymentMethod is returned for payment tags outside cash, bank-transfer and card.
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	// ErrSubmissionInProgress is returned for mutations attempted while an order is in flight.
	ErrSubmissionInProgress = errors.New("order submission in progress")
	// ErrInvalidProduct is returned when a catalog reference cannot become a cart line.
	ErrInvalidProduct = errors.New("invalid product")
)

// Product is the catalog reference added to the cart.
type Product struct {
	ID    int64
	Name  string
	SKU   string
	Price decimal.Decimal
	Stock int
}

// Customer is a registered customer an order can be attributed to.
type Customer struct {
	ID    int64
	Name  string
	Phone string
}

// Line is one product in the cart. UnitPrice and Stock are captured when the
// product is first added and never refreshed.
type Line struct {
	ProductID int64
	Name      string
	SKU       string
	UnitPrice decimal.Decimal
	Quantity  int
	Stock     int
}

// Total is UnitPrice times Quantity.
func (l Line) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Warnings lists stock problems for display; they never block the sale.
func (l Line) Warnings() []enums.CartItemWarningType {
	switch {
	case l.Stock <= 0:
		return []enums.CartItemWarningType{enums.CartItemWarningTypeOutOfStock}
	case l.Quantity > l.Stock:
		return []enums.CartItemWarningType{enums.CartItemWarningTypeExceedsStock}
	default:
		return nil
	}
}

// Totals is the derived money summary of a cart.
type Totals struct {
	Subtotal   decimal.Decimal
	Tax        decimal.Decimal
	GrandTotal decimal.Decimal
	TaxRate    decimal.Decimal
	LineCount  int
	ItemCount  int
}

// OrderPayload is the submission assembled from a cart.
type OrderPayload struct {
	UserID        int64
	CustomerID    *int64
	OrderDate     time.Time
	TotalAmount   decimal.Decimal
	Note          string
	PaymentMethod enums.PaymentMethod
	Status        enums.OrderStatus
	Items         []OrderPayloadItem
}

type OrderPayloadItem struct {
	ProductID int64
	Quantity  int
	UnitPrice decimal.Decimal
	Discount  decimal.Decimal
}

// Receipt describes an order the backend accepted.
type Receipt struct {
	OrderID     int64
	TotalAmount decimal.Decimal
	SubmittedAt time.Time
}

// Snapshot is what observers see after each mutation.
type Snapshot struct {
	Lines  []Line
	Totals Totals
	State  enums.CartState
}
