package checkoutdto

// AddLineRequest adds one unit of a catalog product to the cart.
type AddLineRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
}

// SelectCustomerRequest attributes the sale to a customer; a null id means walk-in.
type SelectCustomerRequest struct {
	CustomerID *int64 `json:"customer_id" validate:"omitempty,gt=0"`
}

// PaymentMethodRequest picks the tender for the sale.
type PaymentMethodRequest struct {
	PaymentMethod string `json:"payment_method" validate:"required,payment_method"`
}
