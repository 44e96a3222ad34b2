package obs

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DomainMetrics holds billing-specific collectors. A nil *DomainMetrics is valid and
// records nothing.
type DomainMetrics struct {
	QuoteTotal       *prometheus.CounterVec
	OfferApplied     *prometheus.CounterVec
	OfferDiscount    *prometheus.HistogramVec
	RedemptionTotal  *prometheus.CounterVec
	OfferCacheLookup *prometheus.CounterVec
}

// NewDomainMetrics registers the billing collectors on reg.
func NewDomainMetrics(namespace string, reg prometheus.Registerer) *DomainMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &DomainMetrics{
		QuoteTotal: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_total",
			Help:      "Count of computed sale quotes by jurisdiction and outcome.",
		}, []string{"jurisdiction", "result"})),
		OfferApplied: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "offer_applied_total",
			Help:      "Count of offers selected by the stacker, by kind.",
		}, []string{"kind"})),
		OfferDiscount: register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "offer_discount_amount",
			Help:      "Distribution of discount amounts granted per selected offer.",
			Buckets:   []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		}, []string{"kind"})),
		RedemptionTotal: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redemption_total",
			Help:      "Count of offer redemption outcomes.",
		}, []string{"result"})),
		OfferCacheLookup: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "offer_cache_lookups_total",
			Help:      "Active-offer cache lookups by result.",
		}, []string{"result"})),
	}
}

// Quote records a quote computation.
func (m *DomainMetrics) Quote(interState bool, result string) {
	if m == nil {
		return
	}
	jurisdiction := "intra_state"
	if interState {
		jurisdiction = "inter_state"
	}
	m.QuoteTotal.WithLabelValues(jurisdiction, result).Inc()
}

// OfferSelected records an offer accepted by the stacker.
func (m *DomainMetrics) OfferSelected(kind string, discount float64) {
	if m == nil {
		return
	}
	m.OfferApplied.WithLabelValues(kind).Inc()
	m.OfferDiscount.WithLabelValues(kind).Observe(discount)
}

// Redemption records a redemption outcome such as "recorded", "duplicate" or "failed".
func (m *DomainMetrics) Redemption(result string) {
	if m == nil {
		return
	}
	m.RedemptionTotal.WithLabelValues(result).Inc()
}

// CacheLookup records an offer cache hit or miss.
func (m *DomainMetrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.OfferCacheLookup.WithLabelValues(result).Inc()
}
