package storeapi

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog entry as served by GET /products/.
type Product struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	SKU          string          `json:"sku"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	Stock        int             `json:"stock"`
	Unit         string          `json:"unit,omitempty"`
	CategoryName string          `json:"category_name,omitempty"`
	BrandName    string          `json:"brand_name,omitempty"`
}

// Customer is a registered customer as served by GET /customers/.
type Customer struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Address    string `json:"address,omitempty"`
	OrderCount int    `json:"order_count,omitempty"`
}

// OrderCreate is the sale handed to POST /orders/.
type OrderCreate struct {
	UserID        int64
	CustomerID    *int64
	OrderDate     time.Time
	TotalAmount   decimal.Decimal
	Note          string
	PaymentMethod string
	Status        string
	Items         []OrderItemCreate
}

type OrderItemCreate struct {
	ProductID int64
	Quantity  int
	UnitPrice decimal.Decimal
	Discount  decimal.Decimal
}

// Order is the backend's view of a created order.
type Order struct {
	ID            int64           `json:"id"`
	UserID        int64           `json:"user_id"`
	CustomerID    *int64          `json:"customer_id"`
	OrderDate     string          `json:"order_date"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Note          string          `json:"note"`
	PaymentMethod string          `json:"payment_method"`
	Status        string          `json:"status"`
}

// Amounts are json.Number so decimals reach the wire as exact numeric literals.
type orderCreateBody struct {
	UserID        int64           `json:"user_id"`
	CustomerID    *int64          `json:"customer_id"`
	OrderDate     string          `json:"order_date"`
	TotalAmount   json.Number     `json:"total_amount"`
	Note          string          `json:"note"`
	PaymentMethod string          `json:"payment_method"`
	Status        string          `json:"status"`
	Items         []orderItemBody `json:"items"`
}

type orderItemBody struct {
	ProductID int64       `json:"product_id"`
	Quantity  int         `json:"quantity"`
	UnitPrice json.Number `json:"unit_price"`
	Discount  json.Number `json:"discount"`
}
