package checkout

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/pos-checkout/internal/cart"
	"github.com/angelmondragon/pos-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/pos-checkout/pkg/errors"
	"github.com/angelmondragon/pos-checkout/pkg/logger"
	"github.com/angelmondragon/pos-checkout/pkg/metrics"
)

const maxSearchLimit = 100

// Service runs point-of-sale checkout sessions.
type Service interface {
	Open(ctx context.Context, op Operator) (*View, error)
	Get(ctx context.Context, op Operator, sessionID string) (*View, error)
	Close(ctx context.Context, op Operator, sessionID string) error

	AddProduct(ctx context.Context, op Operator, sessionID string, productID int64) (*View, error)
	Increment(ctx context.Context, op Operator, sessionID string, productID int64) (*View, error)
	Decrement(ctx context.Context, op Operator, sessionID string, productID int64) (*View, error)
	Remove(ctx context.Context, op Operator, sessionID string, productID int64) (*View, error)

	SelectCustomer(ctx context.Context, op Operator, sessionID string, customerID *int64) (*View, error)
	SetPaymentMethod(ctx context.Context, op Operator, sessionID string, method string) (*View, error)

	SearchProducts(ctx context.Context, op Operator, sessionID, query string, limit int) ([]cart.Product, error)
	SearchCustomers(ctx context.Context, op Operator, sessionID, query string, limit int) ([]cart.Customer, error)

	Submit(ctx context.Context, op Operator, sessionID string) (*SubmitResult, error)
}

// Config tunes checkout behaviour.
type Config struct {
	TaxRate     decimal.Decimal
	OrderNote   string
	IdleTTL     time.Duration
	SearchLimit int
}

// Deps groups the collaborators of the checkout service.
type Deps struct {
	Backend StoreBackend
	Logger  *logger.Logger
	Metrics *metrics.CheckoutMetrics
	Clock   func() time.Time
	NewID   func() string
}

type service struct {
	cfg     Config
	backend StoreBackend
	logg    *logger.Logger
	metrics *metrics.CheckoutMetrics
	now     func() time.Time
	newID   func() string

	mu       sync.Mutex
	sessions map[string]*session
}

// NewService builds the checkout service.
func NewService(cfg Config, deps Deps) (Service, error) {
	if deps.Backend == nil {
		return nil, fmt.Errorf("store backend required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if cfg.TaxRate.IsNegative() {
		return nil, fmt.Errorf("tax rate must not be negative")
	}
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = 10
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	newID := deps.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	return &service{
		cfg:      cfg,
		backend:  deps.Backend,
		logg:     deps.Logger,
		metrics:  deps.Metrics,
		now:      now,
		newID:    newID,
		sessions: map[string]*session{},
	}, nil
}

// Open starts a checkout with an empty cart. The catalog and the customer list
// are each fetched once, concurrently. Only the catalog is required: without
// customers the register still rings up walk-in sales.
func (s *service) Open(ctx context.Context, op Operator) (*View, error) {
	if op.UserID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "operator required")
	}
	s.sweepIdle(ctx)

	var (
		products     []cart.Product
		customers    []cart.Customer
		customersErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		list, err := s.backend.ListProducts(gctx, op.Token)
		if err != nil {
			return err
		}
		products = make([]cart.Product, 0, len(list))
		for _, p := range list {
			products = append(products, toCartProduct(p))
		}
		return nil
	})
	g.Go(func() error {
		list, err := s.backend.ListCustomers(gctx, op.Token)
		if err != nil {
			customersErr = err
			return nil
		}
		customers = make([]cart.Customer, 0, len(list))
		for _, c := range list {
			customers = append(customers, toCartCustomer(c))
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		if pkgerrors.As(err) == nil {
			err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product catalog")
		}
		return nil, err
	}
	if customersErr != nil {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"user_id": op.UserID,
			"error":   customersErr.Error(),
		}), "checkout.customers_unavailable")
	}

	manager, err := cart.NewManager(cart.Options{
		UserID:  op.UserID,
		TaxRate: s.cfg.TaxRate,
		Note:    s.cfg.OrderNote,
		Clock:   s.now,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create cart")
	}

	sess := newSession(s.newID(), op.UserID, s.now(), manager, products, customers)
	sess.customersUnavailable = customersErr != nil

	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()
	s.metrics.SessionOpened()

	ctx = s.logg.WithFields(ctx, map[string]any{
		"session_id":     sess.id,
		"user_id":        op.UserID,
		"product_count":  len(products),
		"customer_count": len(customers),
	})
	s.logg.Info(ctx, "checkout.session_opened")

	sess.mu.Lock()
	view := sess.viewLocked()
	sess.mu.Unlock()
	return &view, nil
}

func (s *service) Get(ctx context.Context, op Operator, sessionID string) (*View, error) {
	sess, err := s.lookup(op, sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	view := sess.viewLocked()
	return &view, nil
}

// Close drops the session and its cart. A session mid-submission cannot be closed.
// Locks are taken in the same order as sweepIdle.
func (s *service) Close(ctx context.Context, op Operator, sessionID string) error {
	sess, err := s.lookup(op, sessionID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	sess.mu.Lock()
	if sess.submitting {
		sess.mu.Unlock()
		s.mu.Unlock()
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order submission in progress")
	}
	removed := !sess.closed
	sess.closed = true
	sess.mu.Unlock()
	if current, ok := s.sessions[sess.id]; ok && current == sess {
		delete(s.sessions, sess.id)
	}
	s.mu.Unlock()

	if removed {
		s.metrics.SessionClosed()
	}
	s.logg.Info(s.logg.WithSessionID(ctx, sess.id), "checkout.session_closed")
	return nil
}

func (s *service) AddProduct(ctx context.Context, op Operator, sessionID string, productID int64) (*View, error) {
	return s.mutate(op, sessionID, "add", func(sess *session) error {
		product, ok := sess.productBy[productID]
		if !ok {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
				WithDetails(map[string]any{"product_id": productID})
		}
		return cartError(sess.cart.AddProduct(product))
	})
}

func (s *service) Increment(ctx context.Context, op Operator, sessionID string, productID int64) (*View, error) {
	return s.mutate(op, sessionID, "increment", func(sess *session) error {
		return cartError(sess.cart.Increment(productID))
	})
}

func (s *service) Decrement(ctx context.Context, op Operator, sessionID string, productID int64) (*View, error) {
	return s.mutate(op, sessionID, "decrement", func(sess *session) error {
		return cartError(sess.cart.Decrement(productID))
	})
}

func (s *service) Remove(ctx context.Context, op Operator, sessionID string, productID int64) (*View, error) {
	return s.mutate(op, sessionID, "remove", func(sess *session) error {
		return cartError(sess.cart.Remove(productID))
	})
}

// SelectCustomer attributes the sale to a registered customer; nil means walk-in.
func (s *service) SelectCustomer(ctx context.Context, op Operator, sessionID string, customerID *int64) (*View, error) {
	return s.mutate(op, sessionID, "", func(sess *session) error {
		if customerID == nil {
			sess.customer = nil
			return nil
		}
		customer, ok := sess.customerBy[*customerID]
		if !ok {
			return pkgerrors.New(pkgerrors.CodeNotFound, "customer not found").
				WithDetails(map[string]any{"customer_id": *customerID})
		}
		sess.customer = &customer
		return nil
	})
}

func (s *service) SetPaymentMethod(ctx context.Context, op Operator, sessionID string, method string) (*View, error) {
	parsed, err := enums.ParsePaymentMethod(strings.TrimSpace(method))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method").
			WithDetails(map[string]any{"payment_method": method})
	}
	return s.mutate(op, sessionID, "", func(sess *session) error {
		sess.method = parsed
		return nil
	})
}

// SearchProducts matches name or SKU, case-insensitively, in catalog order.
func (s *service) SearchProducts(ctx context.Context, op Operator, sessionID, query string, limit int) ([]cart.Product, error) {
	sess, err := s.lookup(op, sessionID)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(strings.TrimSpace(query))
	limit = s.clampLimit(limit)

	out := make([]cart.Product, 0, limit)
	for _, p := range sess.products {
		if len(out) >= limit {
			break
		}
		if needle == "" || containsFold(p.Name, needle) || containsFold(p.SKU, needle) {
			out = append(out, p)
		}
	}
	return out, nil
}

// SearchCustomers matches name or phone, case-insensitively, sorted by name.
func (s *service) SearchCustomers(ctx context.Context, op Operator, sessionID, query string, limit int) ([]cart.Customer, error) {
	sess, err := s.lookup(op, sessionID)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(strings.TrimSpace(query))
	limit = s.clampLimit(limit)

	matches := make([]cart.Customer, 0)
	for _, c := range sess.customers {
		if needle == "" || containsFold(c.Name, needle) || containsFold(c.Phone, needle) {
			matches = append(matches, c)
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return strings.ToLower(matches[i].Name) < strings.ToLower(matches[j].Name)
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// Submit sends the sale to the backend. The cart is emptied and the customer
// reset to walk-in only when the backend accepts the order. The payment method
// stays as the operator left it.
func (s *service) Submit(ctx context.Context, op Operator, sessionID string) (*SubmitResult, error) {
	sess, err := s.lookup(op, sessionID)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithSessionID(s.logg.WithOperator(ctx, op.UserID, op.Role.String()), sessionID)

	customer, method, err := s.beginSubmit(sess)
	if err != nil {
		return nil, err
	}

	started := s.now()
	receipt, submitErr := sess.cart.Checkout(ctx, storeSubmitter{backend: s.backend, token: op.Token}, customer, method)
	elapsed := s.now().Sub(started)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.submitting = false
	sess.lastActive = s.now()

	if submitErr != nil {
		if isCartSentinel(submitErr) {
			s.metrics.ObserveSubmit(metrics.OutcomeRejected, elapsed)
			return nil, cartError(submitErr)
		}
		s.metrics.ObserveSubmit(metrics.OutcomeFailed, elapsed)
		mapped := submissionError(submitErr)
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"error":      submitErr.Error(),
			"elapsed_ms": elapsed.Milliseconds(),
		}), "checkout.submit_failed")
		return nil, mapped
	}

	sess.customer = nil
	s.metrics.ObserveSubmit(metrics.OutcomeSuccess, elapsed)
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id":     receipt.OrderID,
		"total_amount": receipt.TotalAmount.String(),
		"elapsed_ms":   elapsed.Milliseconds(),
	}), "checkout.order_submitted")

	return &SubmitResult{Receipt: *receipt, View: sess.viewLocked()}, nil
}

// beginSubmit flips the session into submitting and snapshots what the order
// needs. It fails on a closed, busy or empty session.
func (s *service) beginSubmit(sess *session) (*cart.Customer, enums.PaymentMethod, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return nil, "", errSessionNotFound()
	}
	if sess.submitting {
		return nil, "", pkgerrors.New(pkgerrors.CodeStateConflict, "order submission in progress")
	}
	if len(sess.cart.Lines()) == 0 {
		s.metrics.ObserveSubmit(metrics.OutcomeEmpty, 0)
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, cart.ErrEmptyCart, "cart is empty")
	}
	var customer *cart.Customer
	if sess.customer != nil {
		c := *sess.customer
		customer = &c
	}
	sess.submitting = true
	return customer, sess.method, nil
}

// mutate runs fn under the session lock; operation names a cart mutation for metrics.
func (s *service) mutate(op Operator, sessionID, operation string, fn func(sess *session) error) (*View, error) {
	sess, err := s.lookup(op, sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return nil, errSessionNotFound()
	}
	if sess.submitting {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order submission in progress")
	}
	if err := fn(sess); err != nil {
		return nil, err
	}
	sess.lastActive = s.now()
	if operation != "" {
		s.metrics.IncCartMutation(operation)
	}
	view := sess.viewLocked()
	return &view, nil
}

func (s *service) lookup(op Operator, sessionID string) (*session, error) {
	id := strings.TrimSpace(sessionID)
	if id == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id required")
	}
	s.mu.Lock()
	sess, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok || sess.operator != op.UserID {
		return nil, errSessionNotFound()
	}
	return sess, nil
}

func errSessionNotFound() *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "checkout session not found")
}

func (s *service) sweepIdle(ctx context.Context) {
	if s.cfg.IdleTTL <= 0 {
		return
	}
	now := s.now()

	s.mu.Lock()
	var expired []string
	for id, sess := range s.sessions {
		if sess.expire(now, s.cfg.IdleTTL) {
			expired = append(expired, id)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for range expired {
		s.metrics.SessionClosed()
	}
	if len(expired) > 0 {
		s.logg.Info(s.logg.WithField(ctx, "expired_sessions", len(expired)), "checkout.sessions_swept")
	}
}

func (s *service) clampLimit(limit int) int {
	if limit <= 0 {
		return s.cfg.SearchLimit
	}
	if limit > maxSearchLimit {
		return maxSearchLimit
	}
	return limit
}

func containsFold(haystack, lowerNeedle string) bool {
	return strings.Contains(strings.ToLower(haystack), lowerNeedle)
}

func isCartSentinel(err error) bool {
	for _, sentinel := range []error{cart.ErrEmptyCart, cart.ErrInvalidPaymentMethod, cart.ErrSubmissionInProgress, cart.ErrInvalidProduct} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
