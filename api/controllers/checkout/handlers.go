package checkout

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	checkoutdto "github.com/angelmondragon/pos-checkout/api/controllers/checkout/dto"
	"github.com/angelmondragon/pos-checkout/api/middleware"
	"github.com/angelmondragon/pos-checkout/api/responses"
	"github.com/angelmondragon/pos-checkout/api/validators"
	checkoutsvc "github.com/angelmondragon/pos-checkout/internal/checkout"
	pkgerrors "github.com/angelmondragon/pos-checkout/pkg/errors"
	"github.com/angelmondragon/pos-checkout/pkg/logger"
)

const (
	sessionIDParam = "sessionId"
	productIDParam = "productId"

	maxSessionIDLength = 64
	maxQueryLength     = 100
	maxSearchLimit     = 100
)

// OpenSession starts a checkout for the authenticated operator.
func OpenSession(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		view, err := svc.Open(r.Context(), operatorFromRequest(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newSessionView(view))
	}
}

func GetSession(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return withSession(svc, logg, func(ctx context.Context, op checkoutsvc.Operator, sessionID string, w http.ResponseWriter, r *http.Request) error {
		view, err := svc.Get(ctx, op, sessionID)
		if err != nil {
			return err
		}
		responses.WriteSuccess(w, newSessionView(view))
		return nil
	})
}

// CloseSession discards the cart, mirroring the operator leaving the screen.
func CloseSession(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return withSession(svc, logg, func(ctx context.Context, op checkoutsvc.Operator, sessionID string, w http.ResponseWriter, r *http.Request) error {
		if err := svc.Close(ctx, op, sessionID); err != nil {
			return err
		}
		responses.WriteNoContent(w)
		return nil
	})
}

func AddLine(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return withSession(svc, logg, func(ctx context.Context, op checkoutsvc.Operator, sessionID string, w http.ResponseWriter, r *http.Request) error {
		var payload checkoutdto.AddLineRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return err
		}
		view, err := svc.AddProduct(ctx, op, sessionID, payload.ProductID)
		if err != nil {
			return err
		}
		responses.WriteSuccess(w, newSessionView(view))
		return nil
	})
}

type lineOperation func(ctx context.Context, op checkoutsvc.Operator, sessionID string, productID int64) (*checkoutsvc.View, error)

func IncrementLine(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return lineHandler(nil, nil, logg)
	}
	return lineHandler(svc, svc.Increment, logg)
}

func DecrementLine(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return lineHandler(nil, nil, logg)
	}
	return lineHandler(svc, svc.Decrement, logg)
}

func RemoveLine(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return lineHandler(nil, nil, logg)
	}
	return lineHandler(svc, svc.Remove, logg)
}

func lineHandler(svc checkoutsvc.Service, apply lineOperation, logg *logger.Logger) http.HandlerFunc {
	return withSession(svc, logg, func(ctx context.Context, op checkoutsvc.Operator, sessionID string, w http.ResponseWriter, r *http.Request) error {
		productID, err := validators.ParsePathID(r, productIDParam)
		if err != nil {
			return err
		}
		view, err := apply(ctx, op, sessionID, productID)
		if err != nil {
			return err
		}
		responses.WriteSuccess(w, newSessionView(view))
		return nil
	})
}

func SelectCustomer(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return withSession(svc, logg, func(ctx context.Context, op checkoutsvc.Operator, sessionID string, w http.ResponseWriter, r *http.Request) error {
		var payload checkoutdto.SelectCustomerRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return err
		}
		view, err := svc.SelectCustomer(ctx, op, sessionID, payload.CustomerID)
		if err != nil {
			return err
		}
		responses.WriteSuccess(w, newSessionView(view))
		return nil
	})
}

func SetPaymentMethod(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return withSession(svc, logg, func(ctx context.Context, op checkoutsvc.Operator, sessionID string, w http.ResponseWriter, r *http.Request) error {
		var payload checkoutdto.PaymentMethodRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return err
		}
		view, err := svc.SetPaymentMethod(ctx, op, sessionID, payload.PaymentMethod)
		if err != nil {
			return err
		}
		responses.WriteSuccess(w, newSessionView(view))
		return nil
	})
}

// SearchProducts backs the product autocomplete.
func SearchProducts(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return withSession(svc, logg, func(ctx context.Context, op checkoutsvc.Operator, sessionID string, w http.ResponseWriter, r *http.Request) error {
		limit, err := validators.ParseQueryInt(r, "limit", 0, 1, maxSearchLimit)
		if err != nil {
			return err
		}
		query := validators.NormalizeSearchQuery(r.URL.Query().Get("q"), maxQueryLength)
		products, err := svc.SearchProducts(ctx, op, sessionID, query, limit)
		if err != nil {
			return err
		}
		responses.WriteResults(w, newProducts(products), query, limit, len(products))
		return nil
	})
}

// SearchCustomers backs the customer picker.
func SearchCustomers(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return withSession(svc, logg, func(ctx context.Context, op checkoutsvc.Operator, sessionID string, w http.ResponseWriter, r *http.Request) error {
		limit, err := validators.ParseQueryInt(r, "limit", 0, 1, maxSearchLimit)
		if err != nil {
			return err
		}
		query := validators.NormalizeSearchQuery(r.URL.Query().Get("q"), maxQueryLength)
		customers, err := svc.SearchCustomers(ctx, op, sessionID, query, limit)
		if err != nil {
			return err
		}
		responses.WriteResults(w, newCustomers(customers), query, limit, len(customers))
		return nil
	})
}

// Submit sends the cart to the store backend as a completed order.
func Submit(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return withSession(svc, logg, func(ctx context.Context, op checkoutsvc.Operator, sessionID string, w http.ResponseWriter, r *http.Request) error {
		result, err := svc.Submit(ctx, op, sessionID)
		if err != nil {
			return err
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newSubmitResponse(result))
		return nil
	})
}

type sessionHandler func(ctx context.Context, op checkoutsvc.Operator, sessionID string, w http.ResponseWriter, r *http.Request) error

func withSession(svc checkoutsvc.Service, logg *logger.Logger, fn sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		sessionID := validators.SanitizeString(chi.URLParam(r, sessionIDParam), maxSessionIDLength)
		if sessionID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "session id required"))
			return
		}
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithSessionID(ctx, sessionID)
		}
		if err := fn(ctx, operatorFromRequest(r), sessionID, w, r.WithContext(ctx)); err != nil {
			responses.WriteError(ctx, logg, w, err)
		}
	}
}

func operatorFromRequest(r *http.Request) checkoutsvc.Operator {
	ctx := r.Context()
	return checkoutsvc.Operator{
		UserID: middleware.UserIDFromContext(ctx),
		Role:   middleware.RoleFromContext(ctx),
		Token:  middleware.TokenFromContext(ctx),
	}
}
