package market

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	operations     *prometheus.CounterVec
	settlements    *prometheus.CounterVec
	activeListings prometheus.Gauge
}

// NewMetrics creates and registers the engine collectors on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "market",
			Name:      "operations_total",
			Help:      "Engine operations by name and result.",
		}, []string{"op", "result"}),
		settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "market",
			Name:      "settlements_total",
			Help:      "Completed settlements by payment token symbol.",
		}, []string{"token"}),
		activeListings: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "market",
			Name:      "active_listings",
			Help:      "Listings currently in the active state.",
		}),
	}
	for _, c := range []prometheus.Collector{m.operations, m.settlements, m.activeListings} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observe(op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = KindOf(err).String()
	}
	m.operations.WithLabelValues(op, result).Inc()
}

func (m *Metrics) settled(symbol string) {
	if m == nil {
		return
	}
	m.settlements.WithLabelValues(symbol).Inc()
}

func (m *Metrics) setActiveListings(n int) {
	if m == nil {
		return
	}
	m.activeListings.Set(float64(n))
}
