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
			Namespace: "sxml",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"service", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sxml",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path", "status"},
	)
	assemblerBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sxml",
			Subsystem: "assembler",
			Name:      "bytes_total",
			Help:      "Bytes fed into assemblers.",
		},
		[]string{"source"},
	)
	assemblerMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sxml",
			Subsystem: "assembler",
			Name:      "messages_total",
			Help:      "Complete messages extracted from streams.",
		},
		[]string{"source"},
	)
	assemblerParseErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sxml",
			Subsystem: "assembler",
			Name:      "parse_errors_total",
			Help:      "Recoverable stream parse errors.",
		},
		[]string{"source", "kind"},
	)
	sourceRestarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sxml",
			Subsystem: "source",
			Name:      "restarts_total",
			Help:      "Source reopen attempts after a stream ended.",
		},
		[]string{"source"},
	)
	inboxPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "sxml",
			Subsystem: "ingest",
			Name:      "inbox_pending",
			Help:      "Messages waiting in the ingest inbox.",
		},
	)
	inboxDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sxml",
			Subsystem: "ingest",
			Name:      "inbox_dropped_total",
			Help:      "Messages evicted from a full ingest inbox.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			assemblerBytes,
			assemblerMessages,
			assemblerParseErrors,
			sourceRestarts,
			inboxPending,
			inboxDropped,
		)
	})
}

func RecordHTTPRequest(service, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(service, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(service, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordChunk(source string, n int) {
	RegisterMetrics()
	assemblerBytes.WithLabelValues(source).Add(float64(n))
}

func RecordMessage(source string) {
	RegisterMetrics()
	assemblerMessages.WithLabelValues(source).Inc()
}

func RecordParseError(source, kind string) {
	RegisterMetrics()
	assemblerParseErrors.WithLabelValues(source, kind).Inc()
}

func RecordSourceRestart(source string) {
	RegisterMetrics()
	sourceRestarts.WithLabelValues(source).Inc()
}

func SetInboxPending(n int, dropped bool) {
	RegisterMetrics()
	inboxPending.Set(float64(n))
	if dropped {
		inboxDropped.Inc()
	}
}
