package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// QuoteTotal counts cart calculation outcomes.
	QuoteTotal *prometheus.CounterVec
	// QuoteDuration records end-to-end calculation latency in milliseconds.
	QuoteDuration prometheus.Histogram
	// DiscountRejectedTotal counts rejected discount codes by reason.
	DiscountRejectedTotal *prometheus.CounterVec
	// CannotShipTotal counts quotes with no shipping zone or method for the address.
	CannotShipTotal prometheus.Counter
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		QuoteTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_total",
			Help:      "Count of cart calculation outcomes.",
		}, []string{"result"})
		QuoteDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "quote_duration_ms",
			Help:      "Latency of cart calculations in milliseconds.",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250, 500},
		})
		DiscountRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discount_rejected_total",
			Help:      "Count of rejected discount codes by rejection reason.",
		}, []string{"reason"})
		CannotShipTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cannot_ship_total",
			Help:      "Count of quotes where no shipping option was available.",
		})
		reg.MustRegister(QuoteTotal, QuoteDuration, DiscountRejectedTotal, CannotShipTotal)
	})
}
