package cart

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/pos-checkout/pkg/enums"
)

// OrderSubmitter hands an assembled order to the store backend and returns the new order id.
type OrderSubmitter interface {
	SubmitOrder(ctx context.Context, payload OrderPayload) (int64, error)
}

// OrderSubmitterFunc adapts a function to OrderSubmitter.
type OrderSubmitterFunc func(ctx context.Context, payload OrderPayload) (int64, error)

func (f OrderSubmitterFunc) SubmitOrder(ctx context.Context, payload OrderPayload) (int64, error) {
	return f(ctx, payload)
}

// Observer receives a snapshot after every cart mutation.
type Observer func(Snapshot)

// Options carries the context a Manager needs to assemble orders.
type Options struct {
	// UserID is the authenticated operator recorded on every order.
	UserID  int64
	TaxRate decimal.Decimal
	Note    string
	Clock   func() time.Time
}

// Manager holds the lines of one in-progress sale.
type Manager struct {
	mu         sync.Mutex
	lines      []Line
	submitting bool

	userID  int64
	taxRate decimal.Decimal
	note    string
	clock   func() time.Time

	observers      map[int]Observer
	nextObserverID int
}

// NewManager builds an empty cart for the given operator.
func NewManager(opts Options) (*Manager, error) {
	if opts.UserID <= 0 {
		return nil, fmt.Errorf("operator user id required")
	}
	if opts.TaxRate.IsNegative() {
		return nil, fmt.Errorf("tax rate must not be negative")
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Manager{
		userID:    opts.UserID,
		taxRate:   opts.TaxRate,
		note:      strings.TrimSpace(opts.Note),
		clock:     clock,
		observers: map[int]Observer{},
	}, nil
}

// AddProduct appends a line with quantity 1, or bumps the existing line for the same product.
func (m *Manager) AddProduct(product Product) error {
	if product.ID <= 0 {
		return fmt.Errorf("%w: id must be positive", ErrInvalidProduct)
	}
	if product.Price.IsNegative() {
		return fmt.Errorf("%w: price must not be negative", ErrInvalidProduct)
	}

	return m.mutate(func() bool {
		if idx := m.indexOf(product.ID); idx >= 0 {
			m.lines[idx].Quantity++
			return true
		}
		m.lines = append(m.lines, Line{
			ProductID: product.ID,
			Name:      product.Name,
			SKU:       product.SKU,
			UnitPrice: product.Price,
			Quantity:  1,
			Stock:     product.Stock,
		})
		return true
	})
}

// Increment adds one to the line quantity. Unknown ids are ignored.
func (m *Manager) Increment(productID int64) error {
	return m.mutate(func() bool {
		idx := m.indexOf(productID)
		if idx < 0 {
			return false
		}
		m.lines[idx].Quantity++
		return true
	})
}

// Decrement removes one from the line quantity, never going below 1. Unknown ids are ignored.
func (m *Manager) Decrement(productID int64) error {
	return m.mutate(func() bool {
		idx := m.indexOf(productID)
		if idx < 0 || m.lines[idx].Quantity <= 1 {
			return false
		}
		m.lines[idx].Quantity--
		return true
	})
}

// Remove drops the line regardless of quantity. Unknown ids are ignored.
func (m *Manager) Remove(productID int64) error {
	return m.mutate(func() bool {
		idx := m.indexOf(productID)
		if idx < 0 {
			return false
		}
		m.lines = append(m.lines[:idx], m.lines[idx+1:]...)
		return true
	})
}

// Clear empties the cart.
func (m *Manager) Clear() error {
	return m.mutate(func() bool {
		if len(m.lines) == 0 {
			return false
		}
		m.lines = nil
		return true
	})
}

// Lines returns a copy of the lines in insertion order.
func (m *Manager) Lines() []Line {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.copyLines()
}

// Totals computes the money summary of the current lines.
func (m *Manager) Totals() Totals {
	m.mu.Lock()
	defer m.mu.Unlock()
	return ComputeTotals(m.lines, m.taxRate)
}

// State reports where the cart is in its lifecycle.
func (m *Manager) State() enums.CartState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked()
}

// Snapshot returns lines, totals and state read under a single lock.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// BuildOrderPayload assembles the order for the current lines. customer nil means a walk-in sale.
func (m *Manager) BuildOrderPayload(customer *Customer, method enums.PaymentMethod) (OrderPayload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buildPayloadLocked(customer, method)
}

// Submit sends payload through submitter. On success the cart is cleared; on
// failure the lines are left exactly as they were.
func (m *Manager) Submit(ctx context.Context, submitter OrderSubmitter, payload OrderPayload) (*Receipt, error) {
	if submitter == nil {
		return nil, fmt.Errorf("order submitter required")
	}
	if len(payload.Items) == 0 {
		return nil, ErrEmptyCart
	}
	if err := m.beginSubmit(); err != nil {
		return nil, err
	}
	return m.finishSubmit(ctx, submitter, payload)
}

// Checkout builds the payload and submits it without letting the cart change in between.
func (m *Manager) Checkout(ctx context.Context, submitter OrderSubmitter, customer *Customer, method enums.PaymentMethod) (*Receipt, error) {
	if submitter == nil {
		return nil, fmt.Errorf("order submitter required")
	}

	m.mu.Lock()
	if m.submitting {
		m.mu.Unlock()
		return nil, ErrSubmissionInProgress
	}
	payload, err := m.buildPayloadLocked(customer, method)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	m.submitting = true
	snap := m.snapshotLocked()
	observers := m.observerList()
	m.mu.Unlock()
	notify(observers, snap)

	return m.finishSubmit(ctx, submitter, payload)
}

// Subscribe registers an observer and returns a function that removes it.
func (m *Manager) Subscribe(observer Observer) func() {
	if observer == nil {
		return func() {}
	}
	m.mu.Lock()
	id := m.nextObserverID
	m.nextObserverID++
	m.observers[id] = observer
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.observers, id)
			m.mu.Unlock()
		})
	}
}

func (m *Manager) beginSubmit() error {
	m.mu.Lock()
	if m.submitting {
		m.mu.Unlock()
		return ErrSubmissionInProgress
	}
	m.submitting = true
	snap := m.snapshotLocked()
	observers := m.observerList()
	m.mu.Unlock()
	notify(observers, snap)
	return nil
}

func (m *Manager) finishSubmit(ctx context.Context, submitter OrderSubmitter, payload OrderPayload) (*Receipt, error) {
	orderID, submitErr := submitter.SubmitOrder(ctx, payload)

	m.mu.Lock()
	m.submitting = false
	if submitErr == nil {
		m.lines = nil
	}
	snap := m.snapshotLocked()
	observers := m.observerList()
	m.mu.Unlock()
	notify(observers, snap)

	if submitErr != nil {
		return nil, submitErr
	}
	return &Receipt{
		OrderID:     orderID,
		TotalAmount: payload.TotalAmount,
		SubmittedAt: payload.OrderDate,
	}, nil
}

func (m *Manager) buildPayloadLocked(customer *Customer, method enums.PaymentMethod) (OrderPayload, error) {
	if len(m.lines) == 0 {
		return OrderPayload{}, ErrEmptyCart
	}
	if !method.IsValid() {
		return OrderPayload{}, fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, method)
	}

	var customerID *int64
	if customer != nil {
		id := customer.ID
		customerID = &id
	}

	items := make([]OrderPayloadItem, 0, len(m.lines))
	for _, line := range m.lines {
		items = append(items, OrderPayloadItem{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			Discount:  decimal.Zero,
		})
	}

	return OrderPayload{
		UserID:        m.userID,
		CustomerID:    customerID,
		OrderDate:     m.clock(),
		TotalAmount:   ComputeTotals(m.lines, m.taxRate).GrandTotal,
		Note:          m.note,
		PaymentMethod: method,
		Status:        enums.OrderStatusCompleted,
		Items:         items,
	}, nil
}

// mutate applies fn under the lock and notifies observers when fn reports a change.
func (m *Manager) mutate(fn func() bool) error {
	m.mu.Lock()
	if m.submitting {
		m.mu.Unlock()
		return ErrSubmissionInProgress
	}
	if !fn() {
		m.mu.Unlock()
		return nil
	}
	snap := m.snapshotLocked()
	observers := m.observerList()
	m.mu.Unlock()
	notify(observers, snap)
	return nil
}

func (m *Manager) indexOf(productID int64) int {
	for i := range m.lines {
		if m.lines[i].ProductID == productID {
			return i
		}
	}
	return -1
}

func (m *Manager) copyLines() []Line {
	out := make([]Line, len(m.lines))
	copy(out, m.lines)
	return out
}

func (m *Manager) stateLocked() enums.CartState {
	switch {
	case m.submitting:
		return enums.CartStateSubmitting
	case len(m.lines) == 0:
		return enums.CartStateEmpty
	default:
		return enums.CartStateBuilding
	}
}

func (m *Manager) snapshotLocked() Snapshot {
	return Snapshot{
		Lines:  m.copyLines(),
		Totals: ComputeTotals(m.lines, m.taxRate),
		State:  m.stateLocked(),
	}
}

func (m *Manager) observerList() []Observer {
	if len(m.observers) == 0 {
		return nil
	}
	out := make([]Observer, 0, len(m.observers))
	for id := 0; id < m.nextObserverID; id++ {
		if obs, ok := m.observers[id]; ok {
			out = append(out, obs)
		}
	}
	return out
}

func notify(observers []Observer, snap Snapshot) {
	for _, obs := range observers {
		obs(snap)
	}
}
