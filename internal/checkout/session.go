package checkout

import (
	"sync"
	"time"

	"github.com/angelmondragon/pos-checkout/internal/cart"
	"github.com/angelmondragon/pos-checkout/pkg/enums"
)

// Operator identifies the authenticated person running the register.
type Operator struct {
	UserID int64
	Role   enums.OperatorRole
	// Token is forwarded to the store backend as a bearer credential.
	Token string
}

type session struct {
	id       string
	operator int64
	openedAt time.Time

	cart       *cart.Manager
	products   []cart.Product
	productBy  map[int64]cart.Product
	customers  []cart.Customer
	customerBy map[int64]cart.Customer

	mu                   sync.Mutex
	customer             *cart.Customer
	method               enums.PaymentMethod
	submitting           bool
	closed               bool
	customersUnavailable bool
	lastActive           time.Time
}

// View is the checkout screen state returned after every operation.
type View struct {
	SessionID     string
	State         enums.CartState
	Lines         []cart.Line
	Totals        cart.Totals
	Customer      *cart.Customer
	PaymentMethod enums.PaymentMethod
	ProductCount  int
	CustomerCount int

	// CustomersUnavailable means the customer list failed to load; only
	// walk-in sales are possible in this session.
	CustomersUnavailable bool
	OpenedAt             time.Time
	UpdatedAt            time.Time
}

// SubmitResult pairs the accepted order with the reset screen state.
type SubmitResult struct {
	Receipt cart.Receipt
	View    View
}

func newSession(id string, operator int64, now time.Time, manager *cart.Manager, products []cart.Product, customers []cart.Customer) *session {
	productBy := make(map[int64]cart.Product, len(products))
	for _, p := range products {
		productBy[p.ID] = p
	}
	customerBy := make(map[int64]cart.Customer, len(customers))
	for _, c := range customers {
		customerBy[c.ID] = c
	}
	return &session{
		id:         id,
		operator:   operator,
		openedAt:   now,
		cart:       manager,
		products:   products,
		productBy:  productBy,
		customers:  customers,
		customerBy: customerBy,
		method:     enums.DefaultPaymentMethod,
		lastActive: now,
	}
}

// viewLocked must be called with s.mu held.
func (s *session) viewLocked() View {
	snap := s.cart.Snapshot()
	var customer *cart.Customer
	if s.customer != nil {
		c := *s.customer
		customer = &c
	}
	state := snap.State
	if s.submitting {
		state = enums.CartStateSubmitting
	}
	return View{
		SessionID:            s.id,
		State:                state,
		Lines:                snap.Lines,
		Totals:               snap.Totals,
		Customer:             customer,
		PaymentMethod:        s.method,
		ProductCount:         len(s.products),
		CustomerCount:        len(s.customers),
		CustomersUnavailable: s.customersUnavailable,
		OpenedAt:             s.openedAt,
		UpdatedAt:            s.lastActive,
	}
}

// expire marks the session closed when it has been idle longer than ttl.
// A session mid-submission never expires.
func (s *session) expire(now time.Time, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.submitting || now.Sub(s.lastActive) <= ttl {
		return false
	}
	s.closed = true
	return true
}
