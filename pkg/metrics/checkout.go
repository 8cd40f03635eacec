package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Submission outcomes recorded by CheckoutMetrics.
const (
	OutcomeSuccess  = "success"
	OutcomeEmpty    = "empty_cart"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// CheckoutMetrics records checkout session and order submission activity.
type CheckoutMetrics struct {
	submitDuration *prometheus.HistogramVec
	submissions    *prometheus.CounterVec
	openSessions   prometheus.Gauge
	cartMutations  *prometheus.CounterVec
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	submitDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkout_submit_duration_seconds",
		Help:    "Duration of order submissions to the store backend in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	submissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_submissions_total",
		Help: "Order submissions by outcome.",
	}, []string{"outcome"})
	openSessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "checkout_open_sessions",
		Help: "Checkout sessions currently open.",
	})
	cartMutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_cart_mutations_total",
		Help: "Cart mutations by operation.",
	}, []string{"operation"})
	reg.MustRegister(submitDuration, submissions, openSessions, cartMutations)
	return &CheckoutMetrics{
		submitDuration: submitDuration,
		submissions:    submissions,
		openSessions:   openSessions,
		cartMutations:  cartMutations,
	}
}

// ObserveSubmit records one submission attempt with its outcome and duration.
func (c *CheckoutMetrics) ObserveSubmit(outcome string, duration time.Duration) {
	if c == nil || c.submissions == nil {
		return
	}
	label := normalizeLabel(outcome)
	c.submissions.WithLabelValues(label).Inc()
	c.submitDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// IncCartMutation counts a cart mutation by operation name.
func (c *CheckoutMetrics) IncCartMutation(operation string) {
	if c == nil || c.cartMutations == nil {
		return
	}
	c.cartMutations.WithLabelValues(normalizeLabel(operation)).Inc()
}

// SessionOpened bumps the open sessions gauge.
func (c *CheckoutMetrics) SessionOpened() {
	if c == nil || c.openSessions == nil {
		return
	}
	c.openSessions.Inc()
}

// SessionClosed decrements the open sessions gauge.
func (c *CheckoutMetrics) SessionClosed() {
	if c == nil || c.openSessions == nil {
		return
	}
	c.openSessions.Dec()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
