package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Storefront holds the degraded-mode signals and HTTP metrics of one binary.
// A nil *Storefront is valid and records nothing.
type Storefront struct {
	Requests         *prometheus.CounterVec
	LatencyMS        *prometheus.HistogramVec
	CatalogFallbacks *prometheus.CounterVec
	OrderFallbacks   prometheus.Counter
	CartPersistFails prometheus.Counter
	BreakerChanges   *prometheus.CounterVec
	CartSessions     prometheus.Gauge
}

func New(reg prometheus.Registerer, service string) *Storefront {
	m := &Storefront{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: service,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"handler", "status"}),
		LatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "storefront",
			Subsystem: service,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"handler"}),
		CatalogFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: service,
			Name:      "catalog_fallback_total",
			Help:      "Catalog reads served by a fallback source.",
		}, []string{"source"}),
		OrderFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: service,
			Name:      "order_synthesized_total",
			Help:      "Order confirmations synthesized locally because the order service failed.",
		}),
		CartPersistFails: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: service,
			Name:      "cart_persist_failures_total",
			Help:      "Cart writes that could not be persisted.",
		}),
		BreakerChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: service,
			Name:      "circuit_breaker_transitions_total",
			Help:      "Circuit breaker state transitions.",
		}, []string{"breaker", "to"}),
		CartSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "storefront",
			Subsystem: service,
			Name:      "cart_sessions",
			Help:      "Session carts currently held in memory.",
		}),
	}
	reg.MustRegister(m.Requests, m.LatencyMS, m.CatalogFallbacks, m.OrderFallbacks, m.CartPersistFails,
		m.BreakerChanges, m.CartSessions)
	return m
}

func (m *Storefront) CatalogFallback(source string) {
	if m == nil {
		return
	}
	m.CatalogFallbacks.WithLabelValues(source).Inc()
}

func (m *Storefront) OrderSynthesized() {
	if m == nil {
		return
	}
	m.OrderFallbacks.Inc()
}

func (m *Storefront) CartPersistFailed() {
	if m == nil {
		return
	}
	m.CartPersistFails.Inc()
}

func (m *Storefront) BreakerTransition(name, to string) {
	if m == nil {
		return
	}
	m.BreakerChanges.WithLabelValues(name, to).Inc()
}

func (m *Storefront) SetCartSessions(n int) {
	if m == nil {
		return
	}
	m.CartSessions.Set(float64(n))
}

func (m *Storefront) ObserveRequest(handler, status string, ms float64) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(handler, status).Inc()
	m.LatencyMS.WithLabelValues(handler).Observe(ms)
}

func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
