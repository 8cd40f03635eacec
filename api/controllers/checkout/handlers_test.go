package checkout

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	checkoutdto "github.com/angelmondragon/pos-checkout/api/controllers/checkout/dto"
	"github.com/angelmondragon/pos-checkout/api/middleware"
	"github.com/angelmondragon/pos-checkout/internal/cart"
	checkoutsvc "github.com/angelmondragon/pos-checkout/internal/checkout"
	"github.com/angelmondragon/pos-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/pos-checkout/pkg/errors"
	"github.com/angelmondragon/pos-checkout/pkg/types"
)

type stubService struct {
	view    *checkoutsvc.View
	result  *checkoutsvc.SubmitResult
	err     error
	calls   []string
	lastOp  checkoutsvc.Operator
	lastID  int64
	lastCID *int64
	method  string
	query   string
	limit   int
}

func (s *stubService) record(name string, op checkoutsvc.Operator) {
	s.calls = append(s.calls, name)
	s.lastOp = op
}

func (s *stubService) Open(_ context.Context, op checkoutsvc.Operator) (*checkoutsvc.View, error) {
	s.record("open", op)
	return s.view, s.err
}

func (s *stubService) Get(_ context.Context, op checkoutsvc.Operator, _ string) (*checkoutsvc.View, error) {
	s.record("get", op)
	return s.view, s.err
}

func (s *stubService) Close(_ context.Context, op checkoutsvc.Operator, _ string) error {
	s.record("close", op)
	return s.err
}

func (s *stubService) AddProduct(_ context.Context, op checkoutsvc.Operator, _ string, productID int64) (*checkoutsvc.View, error) {
	s.record("add", op)
	s.lastID = productID
	return s.view, s.err
}

func (s *stubService) Increment(_ context.Context, op checkoutsvc.Operator, _ string, productID int64) (*checkoutsvc.View, error) {
	s.record("increment", op)
	s.lastID = productID
	return s.view, s.err
}

func (s *stubService) Decrement(_ context.Context, op checkoutsvc.Operator, _ string, productID int64) (*checkoutsvc.View, error) {
	s.record("decrement", op)
	s.lastID = productID
	return s.view, s.err
}

func (s *stubService) Remove(_ context.Context, op checkoutsvc.Operator, _ string, productID int64) (*checkoutsvc.View, error) {
	s.record("remove", op)
	s.lastID = productID
	return s.view, s.err
}

func (s *stubService) SelectCustomer(_ context.Context, op checkoutsvc.Operator, _ string, customerID *int64) (*checkoutsvc.View, error) {
	s.record("customer", op)
	s.lastCID = customerID
	return s.view, s.err
}

func (s *stubService) SetPaymentMethod(_ context.Context, op checkoutsvc.Operator, _ string, method string) (*checkoutsvc.View, error) {
	s.record("payment", op)
	s.method = method
	return s.view, s.err
}

func (s *stubService) SearchProducts(_ context.Context, op checkoutsvc.Operator, _ string, query string, limit int) ([]cart.Product, error) {
	s.record("products", op)
	s.query, s.limit = query, limit
	return []cart.Product{{ID: 1, Name: "Coffee", SKU: "CF-1", Price: decimal.RequireFromString("25000"), Stock: 3}}, s.err
}

func (s *stubService) SearchCustomers(_ context.Context, op checkoutsvc.Operator, _ string, query string, limit int) ([]cart.Customer, error) {
	s.record("customers", op)
	s.query, s.limit = query, limit
	return []cart.Customer{{ID: 9, Name: "Lan", Phone: "0901"}}, s.err
}

func (s *stubService) Submit(_ context.Context, op checkoutsvc.Operator, _ string) (*checkoutsvc.SubmitResult, error) {
	s.record("submit", op)
	return s.result, s.err
}

func sampleView() *checkoutsvc.View {
	lines := []cart.Line{
		{ProductID: 1, Name: "Coffee", SKU: "CF-1", UnitPrice: decimal.RequireFromString("25000"), Quantity: 4, Stock: 3},
		{ProductID: 2, Name: "Tea", SKU: "TE-1", UnitPrice: decimal.RequireFromString("12.5"), Quantity: 1, Stock: 10},
	}
	return &checkoutsvc.View{
		SessionID:     "s1",
		State:         enums.CartStateBuilding,
		Lines:         lines,
		Totals:        cart.ComputeTotals(lines, decimal.RequireFromString("0.1")),
		PaymentMethod: enums.PaymentMethodCash,
		ProductCount:  2,
		CustomerCount: 1,
		OpenedAt:      time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		UpdatedAt:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func newRouter(svc checkoutsvc.Service) http.Handler {
	r := chi.NewRouter()
	r.Post("/sessions", OpenSession(svc, nil))
	r.Route("/sessions/{sessionId}", func(r chi.Router) {
		r.Get("/", GetSession(svc, nil))
		r.Delete("/", CloseSession(svc, nil))
		r.Post("/lines", AddLine(svc, nil))
		r.Post("/lines/{productId}/increment", IncrementLine(svc, nil))
		r.Post("/lines/{productId}/decrement", DecrementLine(svc, nil))
		r.Delete("/lines/{productId}", RemoveLine(svc, nil))
		r.Put("/customer", SelectCustomer(svc, nil))
		r.Put("/payment-method", SetPaymentMethod(svc, nil))
		r.Get("/products", SearchProducts(svc, nil))
		r.Get("/customers", SearchCustomers(svc, nil))
		r.Post("/submit", Submit(svc, nil))
	})
	return r
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	req = req.WithContext(middleware.WithOperator(req.Context(), 5, enums.OperatorRoleStaff, "tok-5"))
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	return resp
}

func decodeView(t *testing.T, resp *httptest.ResponseRecorder) checkoutdto.SessionView {
	t.Helper()
	var envelope struct {
		Data checkoutdto.SessionView `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return envelope.Data
}

func TestOpenSessionReturnsView(t *testing.T) {
	svc := &stubService{view: sampleView()}
	resp := doRequest(t, newRouter(svc), http.MethodPost, "/sessions", "")

	require.Equal(t, http.StatusCreated, resp.Code)
	view := decodeView(t, resp)
	assert.Equal(t, "s1", view.SessionID)
	assert.Equal(t, int64(5), svc.lastOp.UserID)
	assert.Equal(t, "tok-5", svc.lastOp.Token)
	assert.Equal(t, enums.OperatorRoleStaff, svc.lastOp.Role)
}

func TestSessionViewRendersMoneyAndWarnings(t *testing.T) {
	svc := &stubService{view: sampleView()}
	resp := doRequest(t, newRouter(svc), http.MethodGet, "/sessions/s1", "")

	require.Equal(t, http.StatusOK, resp.Code)
	view := decodeView(t, resp)
	require.Len(t, view.Lines, 2)
	assert.Equal(t, "100000", view.Lines[0].LineTotal)
	assert.True(t, view.Lines[0].ExceedsStock)
	assert.Equal(t, []enums.CartItemWarningType{enums.CartItemWarningTypeExceedsStock}, view.Lines[0].Warnings)
	assert.False(t, view.Lines[1].ExceedsStock)
	assert.Equal(t, "100012.5", view.Subtotal)
	assert.Equal(t, "10001.25", view.Tax)
	assert.Equal(t, "110013.75", view.GrandTotal)
	assert.Equal(t, "0.1", view.TaxRate)
	assert.Equal(t, 5, view.ItemCount)
	assert.Nil(t, view.Customer)
	assert.Equal(t, enums.PaymentMethodCash, view.PaymentMethod)
}

func TestAddLineValidatesBody(t *testing.T) {
	svc := &stubService{view: sampleView()}
	router := newRouter(svc)

	resp := doRequest(t, router, http.MethodPost, "/sessions/s1/lines", `{"product_id":0}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Empty(t, svc.calls)

	resp = doRequest(t, router, http.MethodPost, "/sessions/s1/lines", `{"product_id":2}`)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, []string{"add"}, svc.calls)
	assert.Equal(t, int64(2), svc.lastID)
}

func TestLineOperationsRouteToService(t *testing.T) {
	tests := []struct {
		method string
		path   string
		call   string
	}{
		{http.MethodPost, "/sessions/s1/lines/7/increment", "increment"},
		{http.MethodPost, "/sessions/s1/lines/7/decrement", "decrement"},
		{http.MethodDelete, "/sessions/s1/lines/7", "remove"},
	}
	for _, tt := range tests {
		svc := &stubService{view: sampleView()}
		resp := doRequest(t, newRouter(svc), tt.method, tt.path, "")
		require.Equal(t, http.StatusOK, resp.Code, tt.call)
		assert.Equal(t, []string{tt.call}, svc.calls)
		assert.Equal(t, int64(7), svc.lastID)
	}

	svc := &stubService{view: sampleView()}
	resp := doRequest(t, newRouter(svc), http.MethodPost, "/sessions/s1/lines/abc/increment", "")
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Empty(t, svc.calls)
}

func TestSelectCustomerAcceptsWalkIn(t *testing.T) {
	svc := &stubService{view: sampleView()}
	router := newRouter(svc)

	resp := doRequest(t, router, http.MethodPut, "/sessions/s1/customer", `{"customer_id":9}`)
	require.Equal(t, http.StatusOK, resp.Code)
	require.NotNil(t, svc.lastCID)
	assert.Equal(t, int64(9), *svc.lastCID)

	resp = doRequest(t, router, http.MethodPut, "/sessions/s1/customer", `{"customer_id":null}`)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Nil(t, svc.lastCID)
}

func TestSetPaymentMethodRejectsUnknownTag(t *testing.T) {
	svc := &stubService{view: sampleView()}
	router := newRouter(svc)

	resp := doRequest(t, router, http.MethodPut, "/sessions/s1/payment-method", `{"payment_method":"crypto"}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Empty(t, svc.calls)

	resp = doRequest(t, router, http.MethodPut, "/sessions/s1/payment-method", `{"payment_method":"bank-transfer"}`)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "bank-transfer", svc.method)
}

func TestSearchPassesQueryAndLimit(t *testing.T) {
	svc := &stubService{}
	router := newRouter(svc)

	resp := doRequest(t, router, http.MethodGet, "/sessions/s1/products?q=%20cof%20&limit=5", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "cof", svc.query)
	assert.Equal(t, 5, svc.limit)

	var envelope struct {
		Data []checkoutdto.Product `json:"data"`
		Meta types.ResultMeta      `json:"meta"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.Len(t, envelope.Data, 1)
	assert.Equal(t, "25000", envelope.Data[0].Price)
	assert.Equal(t, types.ResultMeta{Query: "cof", Limit: 5, Count: 1}, envelope.Meta)

	resp = doRequest(t, router, http.MethodGet, "/sessions/s1/customers?q=lan", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 0, svc.limit)

	resp = doRequest(t, router, http.MethodGet, "/sessions/s1/customers?limit=1000", "")
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestSubmitSuccess(t *testing.T) {
	empty := sampleView()
	empty.Lines = nil
	empty.State = enums.CartStateEmpty
	svc := &stubService{result: &checkoutsvc.SubmitResult{
		Receipt: cart.Receipt{OrderID: 41, TotalAmount: decimal.RequireFromString("110013.75"), SubmittedAt: time.Now()},
		View:    *empty,
	}}

	resp := doRequest(t, newRouter(svc), http.MethodPost, "/sessions/s1/submit", "")
	require.Equal(t, http.StatusCreated, resp.Code)

	var envelope struct {
		Data checkoutdto.SubmitResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	assert.Equal(t, int64(41), envelope.Data.OrderID)
	assert.Equal(t, "110013.75", envelope.Data.TotalAmount)
	assert.Equal(t, enums.CartStateEmpty, envelope.Data.Session.State)
	assert.NotNil(t, envelope.Data.Session.Lines)
	assert.Empty(t, envelope.Data.Session.Lines)
}

func TestSubmitFailureSurfacesBackendDetail(t *testing.T) {
	svc := &stubService{err: pkgerrors.New(pkgerrors.CodeSubmissionFailed, "Not enough stock for product 1")}

	resp := doRequest(t, newRouter(svc), http.MethodPost, "/sessions/s1/submit", "")
	require.Equal(t, http.StatusBadGateway, resp.Code)

	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	assert.Equal(t, string(pkgerrors.CodeSubmissionFailed), envelope.Error.Code)
	assert.Equal(t, "Not enough stock for product 1", envelope.Error.Message)
}

func TestCloseSessionReturnsNoContent(t *testing.T) {
	svc := &stubService{}
	resp := doRequest(t, newRouter(svc), http.MethodDelete, "/sessions/s1", "")
	assert.Equal(t, http.StatusNoContent, resp.Code)
	assert.Equal(t, []string{"close"}, svc.calls)
}

func TestHandlersRejectNilService(t *testing.T) {
	resp := doRequest(t, newRouter(nil), http.MethodPost, "/sessions/s1/lines/1/increment", "")
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
}
