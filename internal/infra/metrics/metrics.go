// internal/infra/metrics/metrics.go
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	cartdom "thriftmall/internal/domain/cart"
)

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	Registry *prometheus.Registry

	throttleDecisions *prometheus.CounterVec
	mergeConflicts    *prometheus.CounterVec
	mergeDropped      prometheus.Counter
	merges            prometheus.Counter
	httpRequests      *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		throttleDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "thriftmall_throttle_decisions_total",
			Help: "User action throttle decisions by action, rejecting window and outcome.",
		}, []string{"action", "window", "outcome"}),
		mergeConflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "thriftmall_cart_merge_conflicts_total",
			Help: "Cart merge conflicts by kind.",
		}, []string{"how"}),
		mergeDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "thriftmall_cart_merge_dropped_items_total",
			Help: "Malformed local cart items dropped during merge.",
		}),
		merges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "thriftmall_cart_merges_total",
			Help: "Completed cart merges.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "thriftmall_http_requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
	}
	reg.MustRegister(
		m.throttleDecisions,
		m.mergeConflicts,
		m.mergeDropped,
		m.merges,
		m.httpRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveDecision implements usecase.ThrottleObserver.
func (m *Metrics) ObserveDecision(action, window, outcome string) {
	if m == nil {
		return
	}
	m.throttleDecisions.WithLabelValues(action, window, outcome).Inc()
}

// ObserveMerge implements usecase.MergeObserver.
func (m *Metrics) ObserveMerge(res cartdom.MergeResult) {
	if m == nil {
		return
	}
	m.merges.Inc()
	for _, c := range res.Conflicts {
		m.mergeConflicts.WithLabelValues(c.How).Inc()
	}
	m.mergeDropped.Add(float64(len(res.Dropped)))
}

// ObserveRequest counts one served request.
func (m *Metrics) ObserveRequest(route, code string) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, code).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
