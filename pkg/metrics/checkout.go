package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics records the outcome of every checkout attempt.
type CheckoutMetrics struct {
	outcomes   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	orderValue prometheus.Histogram
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_outcomes_total",
		Help: "Checkout attempts by terminal state.",
	}, []string{"state"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkout_duration_seconds",
		Help:    "Time from checkout start to terminal state.",
		Buckets: prometheus.DefBuckets,
	}, []string{"state"})
	orderValue := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "order_value_amount",
		Help:    "Stored total of committed orders in major currency units.",
		Buckets: []float64{10, 25, 50, 100, 250, 500, 1000},
	})
	reg.MustRegister(outcomes, duration, orderValue)
	return &CheckoutMetrics{
		outcomes:   outcomes,
		duration:   duration,
		orderValue: orderValue,
	}
}

// ObserveOutcome counts a terminal state and how long the attempt took.
func (m *CheckoutMetrics) ObserveOutcome(state string, elapsed time.Duration) {
	if m == nil || m.outcomes == nil {
		return
	}
	label := normalizeLabel(state)
	m.outcomes.WithLabelValues(label).Inc()
	m.duration.WithLabelValues(label).Observe(elapsed.Seconds())
}

// ObserveOrderValue records the total of a committed order.
func (m *CheckoutMetrics) ObserveOrderValue(amount float64) {
	if m == nil || m.orderValue == nil {
		return
	}
	m.orderValue.Observe(amount)
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}

// OutcomeCounter exposes the counter for one terminal state.
func (m *CheckoutMetrics) OutcomeCounter(state string) prometheus.Counter {
	return m.outcomes.WithLabelValues(normalizeLabel(state))
}
