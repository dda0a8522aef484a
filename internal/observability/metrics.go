package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pyserve",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pyserve",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	rpcCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pyserve",
			Subsystem: "rpc",
			Name:      "calls_total",
			Help:      "Calls dispatched by the call server.",
		},
		[]string{"call", "success"},
	)
	rpcDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pyserve",
			Subsystem: "rpc",
			Name:      "call_duration_seconds",
			Help:      "Call dispatch duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"call"},
	)
	rpcConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "pyserve",
			Subsystem: "rpc",
			Name:      "connections",
			Help:      "Open call server connections.",
		},
	)
	hostTicks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pyserve",
			Subsystem: "host",
			Name:      "ticks_total",
			Help:      "Frames ticked by the host loop.",
		},
		[]string{"success"},
	)
	hostTickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "pyserve",
			Subsystem: "host",
			Name:      "tick_duration_seconds",
			Help:      "Component tick duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			rpcCalls, rpcDuration, rpcConnections,
			hostTicks, hostTickDuration,
		)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordCall(call string, duration time.Duration, success bool) {
	RegisterMetrics()
	rpcCalls.WithLabelValues(call, strconv.FormatBool(success)).Inc()
	rpcDuration.WithLabelValues(call).Observe(duration.Seconds())
}

func ConnectionOpened() {
	RegisterMetrics()
	rpcConnections.Inc()
}

func ConnectionClosed() {
	RegisterMetrics()
	rpcConnections.Dec()
}

func RecordTick(duration time.Duration, success bool) {
	RegisterMetrics()
	hostTicks.WithLabelValues(strconv.FormatBool(success)).Inc()
	hostTickDuration.Observe(duration.Seconds())
}
