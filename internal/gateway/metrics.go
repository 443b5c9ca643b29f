package gateway

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the gateway's request counters and latency histogram.
type Metrics struct {
	requests  *prometheus.CounterVec
	retries   prometheus.Counter
	refreshes prometheus.Counter
	duration  *prometheus.HistogramVec
}

// NewMetrics registers the gateway metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clusterdash_gateway_requests_total",
			Help: "Outgoing API requests by method and status.",
		}, []string{"method", "status"}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "clusterdash_gateway_retries_total",
			Help: "Retries of transient request failures.",
		}),
		refreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "clusterdash_gateway_refreshes_total",
			Help: "Token refreshes triggered by rejected requests.",
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "clusterdash_gateway_request_duration_seconds",
			Help:    "Outgoing API request duration.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
	}
	reg.MustRegister(m.requests, m.retries, m.refreshes, m.duration)
	return m
}

func (m *Metrics) observe(method string, status int, d time.Duration) {
	m.requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(method).Observe(d.Seconds())
}
