package checkout

import (
	"context"
	"errors"

	"github.com/angelmondragon/pos-checkout/internal/cart"
	pkgerrors "github.com/angelmondragon/pos-checkout/pkg/errors"
	"github.com/angelmondragon/pos-checkout/pkg/storeapi"
)

// StoreBackend is the slice of the store REST API a checkout needs.
type StoreBackend interface {
	ListProducts(ctx context.Context, token string) ([]storeapi.Product, error)
	ListCustomers(ctx context.Context, token string) ([]storeapi.Customer, error)
	CreateOrder(ctx context.Context, token string, order storeapi.OrderCreate) (*storeapi.Order, error)
}

// storeSubmitter forwards cart orders to the backend on behalf of one operator.
type storeSubmitter struct {
	backend StoreBackend
	token   string
}

func (s storeSubmitter) SubmitOrder(ctx context.Context, payload cart.OrderPayload) (int64, error) {
	items := make([]storeapi.OrderItemCreate, 0, len(payload.Items))
	for _, item := range payload.Items {
		items = append(items, storeapi.OrderItemCreate{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Discount:  item.Discount,
		})
	}

	created, err := s.backend.CreateOrder(ctx, s.token, storeapi.OrderCreate{
		UserID:        payload.UserID,
		CustomerID:    payload.CustomerID,
		OrderDate:     payload.OrderDate,
		TotalAmount:   payload.TotalAmount,
		Note:          payload.Note,
		PaymentMethod: payload.PaymentMethod.String(),
		Status:        payload.Status.String(),
		Items:         items,
	})
	if err != nil {
		return 0, err
	}
	if created == nil {
		return 0, nil
	}
	return created.ID, nil
}

func toCartProduct(p storeapi.Product) cart.Product {
	return cart.Product{
		ID:    p.ID,
		Name:  p.Name,
		SKU:   p.SKU,
		Price: p.SellingPrice,
		Stock: p.Stock,
	}
}

func toCartCustomer(c storeapi.Customer) cart.Customer {
	return cart.Customer{
		ID:    c.ID,
		Name:  c.Name,
		Phone: c.Phone,
	}
}

// submissionError turns a backend failure into the error shown to the cashier.
func submissionError(err error) error {
	var apiErr *storeapi.APIError
	if errors.As(err, &apiErr) {
		return pkgerrors.Wrap(pkgerrors.CodeSubmissionFailed, err, apiErr.Detail).
			WithDetails(map[string]any{"backend_status": apiErr.Status})
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return pkgerrors.Wrap(pkgerrors.CodeSubmissionFailed, err, "order submission timed out")
	}
	return pkgerrors.Wrap(pkgerrors.CodeSubmissionFailed, err, "order submission failed")
}

// cartError maps cart sentinel errors onto API codes.
func cartError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, cart.ErrEmptyCart):
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "cart is empty")
	case errors.Is(err, cart.ErrInvalidPaymentMethod):
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method")
	case errors.Is(err, cart.ErrInvalidProduct):
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product")
	case errors.Is(err, cart.ErrSubmissionInProgress):
		return pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "order submission in progress")
	default:
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cart operation failed")
	}
}
