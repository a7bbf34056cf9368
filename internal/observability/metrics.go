package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "netinspect"

// Metrics 捕获流水线指标，使用独立 Registry
type Metrics struct {
	registry *prometheus.Registry

	TransactionsTotal *prometheus.CounterVec
	InFlight          prometheus.Gauge
	Duration          *prometheus.HistogramVec
	SkippedTotal      prometheus.Counter
	StoreErrorsTotal  *prometheus.CounterVec
	QueueDepth        prometheus.Gauge
}

// NewMetrics 创建并注册全部指标
func NewMetrics() *Metrics {
	r := prometheus.NewRegistry()
	m := &Metrics{
		registry: r,
		TransactionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_total",
			Help:      "Captured transactions by source and terminal status",
		}, []string{"source", "status"}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "in_flight_requests",
			Help:      "Intercepted requests awaiting a response",
		}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Duration of captured requests",
			Buckets:   []float64{0.1, 0.3, 0.5, 1, 2, 5},
		}, []string{"method"}),
		SkippedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skipped_total",
			Help:      "Requests passed through without recording because of a skip rule",
		}),
		StoreErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Store write failures by operation",
		}, []string{"op"}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "writer_queue_depth",
			Help:      "Transactions waiting to be persisted",
		}),
	}
	r.MustRegister(m.TransactionsTotal, m.InFlight, m.Duration, m.SkippedTotal, m.StoreErrorsTotal, m.QueueDepth)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
