package checkoutdto

import (
	"time"

	"github.com/angelmondragon/pos-checkout/pkg/enums"
)

// SessionView is the checkout screen state exposed through the API.
// Money values are decimal strings so no precision is lost in transit.
type SessionView struct {
	SessionID            string              `json:"session_id"`
	State                enums.CartState     `json:"state"`
	Lines                []Line              `json:"lines"`
	Subtotal             string              `json:"subtotal"`
	Tax                  string              `json:"tax"`
	GrandTotal           string              `json:"grand_total"`
	TaxRate              string              `json:"tax_rate"`
	LineCount            int                 `json:"line_count"`
	ItemCount            int                 `json:"item_count"`
	Customer             *Customer           `json:"customer"`
	PaymentMethod        enums.PaymentMethod `json:"payment_method"`
	ProductCount         int                 `json:"product_count"`
	CustomerCount        int                 `json:"customer_count"`
	CustomersUnavailable bool                `json:"customers_unavailable,omitempty"`
	OpenedAt             time.Time           `json:"opened_at"`
	UpdatedAt            time.Time           `json:"updated_at"`
}

// Line is one cart row with its derived total and stock warnings.
type Line struct {
	ProductID    int64                       `json:"product_id"`
	Name         string                      `json:"name"`
	SKU          string                      `json:"sku"`
	UnitPrice    string                      `json:"unit_price"`
	Quantity     int                         `json:"quantity"`
	LineTotal    string                      `json:"line_total"`
	Stock        int                         `json:"stock"`
	ExceedsStock bool                        `json:"exceeds_stock"`
	Warnings     []enums.CartItemWarningType `json:"warnings,omitempty"`
}

type Product struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	SKU   string `json:"sku"`
	Price string `json:"price"`
	Stock int    `json:"stock"`
}

type Customer struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

// SubmitResponse carries the accepted order and the reset screen state.
type SubmitResponse struct {
	OrderID     int64       `json:"order_id"`
	TotalAmount string      `json:"total_amount"`
	SubmittedAt time.Time   `json:"submitted_at"`
	Session     SessionView `json:"session"`
}
