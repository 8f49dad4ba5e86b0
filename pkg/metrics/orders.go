package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcomes recorded by OrderMetrics.ObservePlacement.
const (
	OutcomePlaced   = "placed"
	OutcomeReplayed = "replayed"
	OutcomeRejected = "rejected"
	OutcomeConflict = "conflict"
	OutcomeError    = "error"
)

// OrderMetrics tracks order placement, conflict retries and status changes.
type OrderMetrics struct {
	placed      *prometheus.CounterVec
	retries     prometheus.Counter
	duration    prometheus.Histogram
	transitions *prometheus.CounterVec
	adjustments *prometheus.CounterVec
}

// NewOrderMetrics registers the order metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	placed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shopcore_orders_placed_total",
		Help: "PlaceOrder calls by outcome.",
	}, []string{"outcome"})
	retries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shopcore_orders_conflict_retries_total",
		Help: "Order transactions replayed after a concurrency conflict.",
	})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "shopcore_orders_place_duration_seconds",
		Help:    "Duration of PlaceOrder including retries.",
		Buckets: prometheus.DefBuckets,
	})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shopcore_order_transitions_total",
		Help: "Order status transitions by target status.",
	}, []string{"to"})
	adjustments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shopcore_inventory_changes_total",
		Help: "Inventory ledger entries by change type.",
	}, []string{"change_type"})
	reg.MustRegister(placed, retries, duration, transitions, adjustments)
	return &OrderMetrics{
		placed:      placed,
		retries:     retries,
		duration:    duration,
		transitions: transitions,
		adjustments: adjustments,
	}
}

// ObservePlacement records one PlaceOrder call.
func (m *OrderMetrics) ObservePlacement(outcome string, elapsed time.Duration) {
	if m == nil || m.placed == nil {
		return
	}
	m.placed.WithLabelValues(normalizeLabel(outcome)).Inc()
	m.duration.Observe(elapsed.Seconds())
}

// IncConflictRetry counts one replay after a lost race.
func (m *OrderMetrics) IncConflictRetry() {
	if m == nil || m.retries == nil {
		return
	}
	m.retries.Inc()
}

// IncTransition counts a committed status change.
func (m *OrderMetrics) IncTransition(to string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(to)).Inc()
}

// IncInventoryChange counts a committed ledger entry.
func (m *OrderMetrics) IncInventoryChange(changeType string) {
	if m == nil || m.adjustments == nil {
		return
	}
	m.adjustments.WithLabelValues(normalizeLabel(changeType)).Inc()
}
