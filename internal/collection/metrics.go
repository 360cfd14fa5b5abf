package collection

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Operation outcomes recorded in docsql_operations_total.
const (
	outcomeSuccess = "success"
	outcomeError   = "error"
)

// Metrics records per-operation counters and latencies.
// A nil *Metrics records nothing.
type Metrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	degraded   prometheus.Counter
}

// NewMetrics creates the collection metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docsql",
			Name:      "operations_total",
			Help:      "Number of collection operations by operation and outcome.",
		}, []string{"op", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "docsql",
			Name:      "operation_duration_seconds",
			Help:      "Latency of collection operations, including the backend round-trip.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		degraded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "docsql",
			Name:      "degraded_rows_total",
			Help:      "Number of stored rows returned as empty documents because they could not be decoded.",
		}),
	}

	for _, c := range []prometheus.Collector{m.operations, m.duration, m.degraded} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observe(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := outcomeSuccess
	if err != nil {
		outcome = outcomeError
	}
	m.operations.WithLabelValues(op, outcome).Inc()
	m.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *Metrics) degradedRow() {
	if m == nil {
		return
	}
	m.degraded.Inc()
}
