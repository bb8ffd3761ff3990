package obs

import "github.com/prometheus/client_golang/prometheus"

// DomainMetrics groups invoicing collectors. A nil *DomainMetrics is valid and
// records nothing.
type DomainMetrics struct {
	// RecordsCreated counts persisted customers, invoices and items.
	RecordsCreated *prometheus.CounterVec
	// ValidationFailures counts requests rejected with a 400 by route template.
	ValidationFailures *prometheus.CounterVec
	// TotalsComputed counts invoice totals aggregations.
	TotalsComputed prometheus.Counter
}

// NewDomainMetrics registers the invoicing collectors, reusing ones already
// present on reg.
func NewDomainMetrics(namespace string, reg prometheus.Registerer) *DomainMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &DomainMetrics{
		RecordsCreated: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_created_total",
			Help:      "Count of created records by entity.",
		}, []string{"entity"})),
		ValidationFailures: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_failures_total",
			Help:      "Count of requests rejected by input validation.",
		}, []string{"route"})),
		TotalsComputed: register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invoice_totals_computed_total",
			Help:      "Number of invoice totals computations.",
		})),
	}
}

// RecordCreated increments the created counter for entity.
func (m *DomainMetrics) RecordCreated(entity string) {
	if m == nil {
		return
	}
	m.RecordsCreated.WithLabelValues(entity).Inc()
}

// ValidationFailed increments the validation failure counter for route.
func (m *DomainMetrics) ValidationFailed(route string) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unknown"
	}
	m.ValidationFailures.WithLabelValues(route).Inc()
}

// TotalsComputedInc increments the totals computation counter.
func (m *DomainMetrics) TotalsComputedInc() {
	if m == nil {
		return
	}
	m.TotalsComputed.Inc()
}
