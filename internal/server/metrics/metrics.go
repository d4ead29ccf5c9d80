// Package metrics exposes Prometheus counters for auth operations.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gophauth"

// OutcomeOK labels a successful operation. Failures are labelled with their
// error kind.
const OutcomeOK = "ok"

type Metrics struct {
	registry    *prometheus.Registry
	operations  *prometheus.CounterVec
	revocations prometheus.Counter
	purged      *prometheus.CounterVec
}

// New creates the counters on a private registry together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "operations_total",
			Help:      "Auth operations by name and outcome",
		}, []string{"operation", "outcome"}),
		revocations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "revocations_total",
			Help:      "Session tokens newly added to the revocation ledger",
		}),
		purged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "purged_rows_total",
			Help:      "Expired rows removed by the purge job",
		}, []string{"store"}),
	}

	m.registry.MustRegister(
		m.operations,
		m.revocations,
		m.purged,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) ObserveOperation(operation, outcome string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) ObserveRevocation() {
	if m == nil {
		return
	}
	m.revocations.Inc()
}

func (m *Metrics) ObservePurge(store string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.purged.WithLabelValues(store).Add(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
