package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/pos-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/pos-checkout/pkg/errors"
	"github.com/angelmondragon/pos-checkout/pkg/logger"
	"github.com/angelmondragon/pos-checkout/pkg/metrics"
	"github.com/angelmondragon/pos-checkout/pkg/storeapi"
)

var testNow = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

type fakeBackend struct {
	mu            sync.Mutex
	products      []storeapi.Product
	customers     []storeapi.Customer
	productsErr   error
	customersErr  error
	productCalls  int
	customerCalls int
	orders        []storeapi.OrderCreate
	tokens        []string
	createFn      func(storeapi.OrderCreate) (*storeapi.Order, error)
}

func (f *fakeBackend) ListProducts(ctx context.Context, token string) ([]storeapi.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.productCalls++
	return f.products, f.productsErr
}

func (f *fakeBackend) ListCustomers(ctx context.Context, token string) ([]storeapi.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.customerCalls++
	return f.customers, f.customersErr
}

func (f *fakeBackend) CreateOrder(ctx context.Context, token string, order storeapi.OrderCreate) (*storeapi.Order, error) {
	f.mu.Lock()
	f.orders = append(f.orders, order)
	f.tokens = append(f.tokens, token)
	fn := f.createFn
	f.mu.Unlock()
	if fn != nil {
		return fn(order)
	}
	return &storeapi.Order{ID: int64(100 + len(f.orders))}, nil
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		products: []storeapi.Product{
			{ID: 1, Name: "Cà phê sữa", SKU: "CF-01", SellingPrice: decimal.NewFromInt(50000), Stock: 10},
			{ID: 2, Name: "Green Tea", SKU: "TE-02", SellingPrice: decimal.NewFromInt(30000), Stock: 1},
			{ID: 3, Name: "Coffee Beans", SKU: "BN-03", SellingPrice: decimal.NewFromInt(200000), Stock: 0},
		},
		customers: []storeapi.Customer{
			{ID: 10, Name: "Tran Binh", Phone: "0902000000"},
			{ID: 11, Name: "Nguyen An", Phone: "0901000000"},
		},
	}
}

type testHarness struct {
	svc     Service
	backend *fakeBackend
	reg     *prometheus.Registry
	clock   *time.Time
}

func newHarness(t *testing.T, backend *fakeBackend, cfg Config) *testHarness {
	t.Helper()
	now := testNow
	reg := prometheus.NewRegistry()
	ids := 0
	if cfg.TaxRate.IsZero() {
		cfg.TaxRate = decimal.RequireFromString("0.1")
	}
	if cfg.OrderNote == "" {
		cfg.OrderNote = "Point-of-sale sale"
	}
	svc, err := NewService(cfg, Deps{
		Backend: backend,
		Logger:  logger.Nop(),
		Metrics: metrics.NewCheckoutMetrics(reg),
		Clock:   func() time.Time { return now },
		NewID: func() string {
			ids++
			return fmt.Sprintf("sess-%d", ids)
		},
	})
	require.NoError(t, err)
	return &testHarness{svc: svc, backend: backend, reg: reg, clock: &now}
}

var cashier = Operator{UserID: 3, Role: enums.OperatorRoleStaff, Token: "tok-3"}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	require.Equal(t, code, typed.Code(), "error: %v", err)
}

func TestNewServiceRequiresDeps(t *testing.T) {
	_, err := NewService(Config{}, Deps{Logger: logger.Nop()})
	require.Error(t, err)
	_, err = NewService(Config{}, Deps{Backend: newFakeBackend()})
	require.Error(t, err)
}

func TestOpenLoadsCatalogAndCustomersOnce(t *testing.T) {
	h := newHarness(t, newFakeBackend(), Config{})

	view, err := h.svc.Open(context.Background(), cashier)
	require.NoError(t, err)
	assert.Equal(t, "sess-1", view.SessionID)
	assert.Equal(t, enums.CartStateEmpty, view.State)
	assert.Equal(t, enums.PaymentMethodCash, view.PaymentMethod)
	assert.Nil(t, view.Customer)
	assert.Equal(t, 3, view.ProductCount)
	assert.Equal(t, 2, view.CustomerCount)

	for i := 0; i < 3; i++ {
		_, err := h.svc.AddProduct(context.Background(), cashier, view.SessionID, 1)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, h.backend.productCalls)
	assert.Equal(t, 1, h.backend.customerCalls)
}

func TestOpenFailsWhenCatalogUnavailable(t *testing.T) {
	backend := newFakeBackend()
	backend.productsErr = pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("connection refused"), "list products")
	h := newHarness(t, backend, Config{})

	_, err := h.svc.Open(context.Background(), cashier)
	requireCode(t, err, pkgerrors.CodeDependency)
}

func TestOpenWithoutCustomersAllowsWalkInSales(t *testing.T) {
	backend := newFakeBackend()
	backend.customersErr = pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("status 500"), "list customers")
	h := newHarness(t, backend, Config{})
	ctx := context.Background()

	view, err := h.svc.Open(ctx, cashier)
	require.NoError(t, err)
	assert.True(t, view.CustomersUnavailable)
	assert.Equal(t, 0, view.CustomerCount)
	assert.Equal(t, 3, view.ProductCount)

	found, err := h.svc.SearchCustomers(ctx, cashier, view.SessionID, "", 0)
	require.NoError(t, err)
	assert.Empty(t, found)
	customerID := int64(10)
	_, err = h.svc.SelectCustomer(ctx, cashier, view.SessionID, &customerID)
	requireCode(t, err, pkgerrors.CodeNotFound)

	_, err = h.svc.AddProduct(ctx, cashier, view.SessionID, 1)
	require.NoError(t, err)
	result, err := h.svc.Submit(ctx, cashier, view.SessionID)
	require.NoError(t, err)
	assert.True(t, result.View.CustomersUnavailable)
	require.Len(t, backend.orders, 1)
	assert.Nil(t, backend.orders[0].CustomerID)
}

func TestOpenRequiresOperator(t *testing.T) {
	h := newHarness(t, newFakeBackend(), Config{})
	_, err := h.svc.Open(context.Background(), Operator{})
	requireCode(t, err, pkgerrors.CodeUnauthorized)
}

func TestSessionsAreScopedToOperator(t *testing.T) {
	h := newHarness(t, newFakeBackend(), Config{})
	view, err := h.svc.Open(context.Background(), cashier)
	require.NoError(t, err)

	other := Operator{UserID: 4, Role: enums.OperatorRoleStaff}
	_, err = h.svc.Get(context.Background(), other, view.SessionID)
	requireCode(t, err, pkgerrors.CodeNotFound)
	_, err = h.svc.AddProduct(context.Background(), other, view.SessionID, 1)
	requireCode(t, err, pkgerrors.CodeNotFound)

	_, err = h.svc.Get(context.Background(), cashier, "missing")
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestCartOperationsAndTotals(t *testing.T) {
	h := newHarness(t, newFakeBackend(), Config{})
	ctx := context.Background()
	view, err := h.svc.Open(ctx, cashier)
	require.NoError(t, err)
	id := view.SessionID

	_, err = h.svc.AddProduct(ctx, cashier, id, 1)
	require.NoError(t, err)
	_, err = h.svc.AddProduct(ctx, cashier, id, 2)
	require.NoError(t, err)
	view, err = h.svc.Increment(ctx, cashier, id, 2)
	require.NoError(t, err)

	assert.Equal(t, enums.CartStateBuilding, view.State)
	require.Len(t, view.Lines, 2)
	assert.Equal(t, 2, view.Lines[1].Quantity)
	assert.True(t, view.Totals.Subtotal.Equal(decimal.NewFromInt(110000)))
	assert.True(t, view.Totals.Tax.Equal(decimal.NewFromInt(11000)))
	assert.True(t, view.Totals.GrandTotal.Equal(decimal.NewFromInt(121000)))

	view, err = h.svc.Decrement(ctx, cashier, id, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, view.Lines[0].Quantity)

	view, err = h.svc.Remove(ctx, cashier, id, 2)
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)

	view, err = h.svc.Remove(ctx, cashier, id, 999)
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)

	_, err = h.svc.AddProduct(ctx, cashier, id, 999)
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestSelectCustomerAndPaymentMethod(t *testing.T) {
	h := newHarness(t, newFakeBackend(), Config{})
	ctx := context.Background()
	view, err := h.svc.Open(ctx, cashier)
	require.NoError(t, err)
	id := view.SessionID

	customerID := int64(11)
	view, err = h.svc.SelectCustomer(ctx, cashier, id, &customerID)
	require.NoError(t, err)
	require.NotNil(t, view.Customer)
	assert.Equal(t, "Nguyen An", view.Customer.Name)

	missing := int64(404)
	_, err = h.svc.SelectCustomer(ctx, cashier, id, &missing)
	requireCode(t, err, pkgerrors.CodeNotFound)

	view, err = h.svc.SelectCustomer(ctx, cashier, id, nil)
	require.NoError(t, err)
	assert.Nil(t, view.Customer)

	view, err = h.svc.SetPaymentMethod(ctx, cashier, id, "bank-transfer")
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentMethodBankTransfer, view.PaymentMethod)

	_, err = h.svc.SetPaymentMethod(ctx, cashier, id, "crypto")
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestSearchProductsMatchesNameOrSKU(t *testing.T) {
	h := newHarness(t, newFakeBackend(), Config{SearchLimit: 10})
	ctx := context.Background()
	view, err := h.svc.Open(ctx, cashier)
	require.NoError(t, err)

	got, err := h.svc.SearchProducts(ctx, cashier, view.SessionID, "COFFEE", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(3), got[0].ID)

	got, err = h.svc.SearchProducts(ctx, cashier, view.SessionID, "te-0", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(2), got[0].ID)

	got, err = h.svc.SearchProducts(ctx, cashier, view.SessionID, "cà phê", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)

	got, err = h.svc.SearchProducts(ctx, cashier, view.SessionID, "", 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestSearchCustomersMatchesNameOrPhone(t *testing.T) {
	h := newHarness(t, newFakeBackend(), Config{})
	ctx := context.Background()
	view, err := h.svc.Open(ctx, cashier)
	require.NoError(t, err)

	got, err := h.svc.SearchCustomers(ctx, cashier, view.SessionID, "0901", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(11), got[0].ID)

	got, err = h.svc.SearchCustomers(ctx, cashier, view.SessionID, "", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Nguyen An", got[0].Name)
}

func TestSubmitEmptyCartNeverReachesBackend(t *testing.T) {
	h := newHarness(t, newFakeBackend(), Config{})
	ctx := context.Background()
	view, err := h.svc.Open(ctx, cashier)
	require.NoError(t, err)

	_, err = h.svc.Submit(ctx, cashier, view.SessionID)
	requireCode(t, err, pkgerrors.CodeValidation)
	assert.Empty(t, h.backend.orders)
}

func TestSubmitSuccessResetsSession(t *testing.T) {
	h := newHarness(t, newFakeBackend(), Config{})
	ctx := context.Background()
	view, err := h.svc.Open(ctx, cashier)
	require.NoError(t, err)
	id := view.SessionID

	_, err = h.svc.AddProduct(ctx, cashier, id, 1)
	require.NoError(t, err)
	_, err = h.svc.AddProduct(ctx, cashier, id, 2)
	require.NoError(t, err)
	_, err = h.svc.AddProduct(ctx, cashier, id, 2)
	require.NoError(t, err)
	customerID := int64(10)
	_, err = h.svc.SelectCustomer(ctx, cashier, id, &customerID)
	require.NoError(t, err)
	_, err = h.svc.SetPaymentMethod(ctx, cashier, id, "card")
	require.NoError(t, err)

	result, err := h.svc.Submit(ctx, cashier, id)
	require.NoError(t, err)
	assert.Equal(t, int64(101), result.Receipt.OrderID)
	assert.True(t, result.Receipt.TotalAmount.Equal(decimal.NewFromInt(121000)))

	assert.Empty(t, result.View.Lines)
	assert.Equal(t, enums.CartStateEmpty, result.View.State)
	assert.Nil(t, result.View.Customer)
	assert.Equal(t, enums.PaymentMethodCard, result.View.PaymentMethod)

	require.Len(t, h.backend.orders, 1)
	order := h.backend.orders[0]
	assert.Equal(t, "tok-3", h.backend.tokens[0])
	assert.Equal(t, int64(3), order.UserID)
	require.NotNil(t, order.CustomerID)
	assert.Equal(t, int64(10), *order.CustomerID)
	assert.Equal(t, "card", order.PaymentMethod)
	assert.Equal(t, "completed", order.Status)
	assert.Equal(t, "Point-of-sale sale", order.Note)
	assert.Equal(t, testNow, order.OrderDate)
	require.Len(t, order.Items, 2)
	assert.Equal(t, 2, order.Items[1].Quantity)
	assert.True(t, order.Items[1].UnitPrice.Equal(decimal.NewFromInt(30000)))
	assert.True(t, order.Items[0].Discount.IsZero())
}

func TestSubmitFailureKeepsCartAndSurfacesDetail(t *testing.T) {
	backend := newFakeBackend()
	backend.createFn = func(storeapi.OrderCreate) (*storeapi.Order, error) {
		apiErr := &storeapi.APIError{Status: 400, Detail: "user does not exist"}
		return nil, pkgerrors.Wrap(pkgerrors.CodeSubmissionFailed, apiErr, "create order")
	}
	h := newHarness(t, backend, Config{})
	ctx := context.Background()
	view, err := h.svc.Open(ctx, cashier)
	require.NoError(t, err)
	id := view.SessionID

	_, err = h.svc.AddProduct(ctx, cashier, id, 1)
	require.NoError(t, err)
	customerID := int64(10)
	before, err := h.svc.SelectCustomer(ctx, cashier, id, &customerID)
	require.NoError(t, err)

	_, err = h.svc.Submit(ctx, cashier, id)
	requireCode(t, err, pkgerrors.CodeSubmissionFailed)
	assert.Equal(t, "user does not exist", pkgerrors.As(err).Message())

	after, err := h.svc.Get(ctx, cashier, id)
	require.NoError(t, err)
	assert.Equal(t, before.Lines, after.Lines)
	assert.Equal(t, enums.CartStateBuilding, after.State)
	require.NotNil(t, after.Customer)
	assert.Equal(t, int64(10), after.Customer.ID)
}

func TestSubmitTransportFailureUsesGenericMessage(t *testing.T) {
	backend := newFakeBackend()
	backend.createFn = func(storeapi.OrderCreate) (*storeapi.Order, error) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("connection reset"), "create order")
	}
	h := newHarness(t, backend, Config{})
	ctx := context.Background()
	view, err := h.svc.Open(ctx, cashier)
	require.NoError(t, err)
	_, err = h.svc.AddProduct(ctx, cashier, view.SessionID, 1)
	require.NoError(t, err)

	_, err = h.svc.Submit(ctx, cashier, view.SessionID)
	requireCode(t, err, pkgerrors.CodeSubmissionFailed)
	assert.Equal(t, "order submission failed", pkgerrors.As(err).Message())
}

func TestMutationsRejectedDuringSubmit(t *testing.T) {
	backend := newFakeBackend()
	entered := make(chan struct{})
	release := make(chan struct{})
	backend.createFn = func(storeapi.OrderCreate) (*storeapi.Order, error) {
		close(entered)
		<-release
		return &storeapi.Order{ID: 9}, nil
	}
	h := newHarness(t, backend, Config{})
	ctx := context.Background()
	view, err := h.svc.Open(ctx, cashier)
	require.NoError(t, err)
	id := view.SessionID
	_, err = h.svc.AddProduct(ctx, cashier, id, 1)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := h.svc.Submit(ctx, cashier, id)
		done <- err
	}()

	<-entered
	_, err = h.svc.AddProduct(ctx, cashier, id, 2)
	requireCode(t, err, pkgerrors.CodeStateConflict)
	_, err = h.svc.SetPaymentMethod(ctx, cashier, id, "card")
	requireCode(t, err, pkgerrors.CodeStateConflict)
	_, err = h.svc.Submit(ctx, cashier, id)
	requireCode(t, err, pkgerrors.CodeStateConflict)
	requireCode(t, h.svc.Close(ctx, cashier, id), pkgerrors.CodeStateConflict)

	current, err := h.svc.Get(ctx, cashier, id)
	require.NoError(t, err)
	assert.Equal(t, enums.CartStateSubmitting, current.State)

	close(release)
	require.NoError(t, <-done)
	assert.Len(t, backend.orders, 1)
}

func TestCloseRemovesSession(t *testing.T) {
	h := newHarness(t, newFakeBackend(), Config{})
	ctx := context.Background()
	view, err := h.svc.Open(ctx, cashier)
	require.NoError(t, err)

	require.NoError(t, h.svc.Close(ctx, cashier, view.SessionID))
	_, err = h.svc.Get(ctx, cashier, view.SessionID)
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestClosedSessionCannotStartSubmit(t *testing.T) {
	h := newHarness(t, newFakeBackend(), Config{})
	ctx := context.Background()
	view, err := h.svc.Open(ctx, cashier)
	require.NoError(t, err)
	_, err = h.svc.AddProduct(ctx, cashier, view.SessionID, 1)
	require.NoError(t, err)

	svc := h.svc.(*service)
	stale, err := svc.lookup(cashier, view.SessionID)
	require.NoError(t, err)
	require.NoError(t, h.svc.Close(ctx, cashier, view.SessionID))

	_, _, err = svc.beginSubmit(stale)
	requireCode(t, err, pkgerrors.CodeNotFound)
	_, err = svc.mutate(cashier, view.SessionID, "add", func(*session) error { return nil })
	requireCode(t, err, pkgerrors.CodeNotFound)
	assert.Empty(t, h.backend.orders)
}

func TestOpenSweepsIdleSessions(t *testing.T) {
	h := newHarness(t, newFakeBackend(), Config{IdleTTL: time.Hour})
	ctx := context.Background()
	stale, err := h.svc.Open(ctx, cashier)
	require.NoError(t, err)

	*h.clock = h.clock.Add(2 * time.Hour)
	_, err = h.svc.Open(ctx, cashier)
	require.NoError(t, err)

	_, err = h.svc.Get(ctx, cashier, stale.SessionID)
	requireCode(t, err, pkgerrors.CodeNotFound)

	mfs, err := h.reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() == "checkout_open_sessions" {
			assert.Equal(t, float64(1), mf.GetMetric()[0].GetGauge().GetValue())
			return
		}
	}
	t.Fatal("open sessions gauge not exported")
}
