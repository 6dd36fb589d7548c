package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/coursevault/coursevault-backend/pkg/enums"
)

// LicensingMetrics records access decisions and order lifecycle
// transitions.
type LicensingMetrics struct {
	accessDecisions  *prometheus.CounterVec
	orderTransitions *prometheus.CounterVec
	storeFailures    *prometheus.CounterVec
}

// NewLicensingMetrics registers the licensing metrics on the provided
// registerer. A nil registerer yields a no-op recorder.
func NewLicensingMetrics(reg prometheus.Registerer) *LicensingMetrics {
	if reg == nil {
		return &LicensingMetrics{}
	}
	accessDecisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "access_decisions_total",
		Help: "Playback access decisions by outcome and denial reason.",
	}, []string{"outcome", "reason"})
	orderTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_total",
		Help: "Order status transitions by source and target status.",
	}, []string{"from", "to"})
	storeFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "store_write_failures_total",
		Help: "Persistence failures by collection.",
	}, []string{"collection"})
	reg.MustRegister(accessDecisions, orderTransitions, storeFailures)
	return &LicensingMetrics{
		accessDecisions:  accessDecisions,
		orderTransitions: orderTransitions,
		storeFailures:    storeFailures,
	}
}

// ObserveGrant counts a granted access decision.
func (m *LicensingMetrics) ObserveGrant() {
	if m == nil || m.accessDecisions == nil {
		return
	}
	m.accessDecisions.WithLabelValues("granted", "").Inc()
}

// ObserveDenial counts a denied access decision with its reason.
func (m *LicensingMetrics) ObserveDenial(reason enums.AccessReason) {
	if m == nil || m.accessDecisions == nil {
		return
	}
	m.accessDecisions.WithLabelValues("denied", reason.String()).Inc()
}

// ObserveTransition counts an order status transition.
func (m *LicensingMetrics) ObserveTransition(from, to enums.OrderStatus) {
	if m == nil || m.orderTransitions == nil {
		return
	}
	m.orderTransitions.WithLabelValues(from.String(), to.String()).Inc()
}

// ObserveStoreFailure counts a failed persistence write.
func (m *LicensingMetrics) ObserveStoreFailure(collection string) {
	if m == nil || m.storeFailures == nil {
		return
	}
	if collection == "" {
		collection = "unknown"
	}
	m.storeFailures.WithLabelValues(collection).Inc()
}
