package obs

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"resort/internal/app/uow"
	domainbooking "resort/internal/domain/booking"
)

// Metrics owns the service's prometheus collectors on a private registry.
type Metrics struct {
	registry  *prometheus.Registry
	commands  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	conflicts prometheus.Counter
	requests  *prometheus.CounterVec
	published *prometheus.CounterVec
	notifyErr *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "resort",
			Name:      "commands_total",
			Help:      "Dispatched commands by key and outcome.",
		}, []string{"command", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "resort",
			Name:      "command_duration_seconds",
			Help:      "Command latency including transaction commit.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"command"}),
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "resort",
			Name:      "reservation_conflicts_total",
			Help:      "Reservations rejected because the room or yoga session was taken.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "resort",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "resort",
			Name:      "outbox_published_total",
			Help:      "Outbox records handed to the broker.",
		}, []string{"outcome"}),
		notifyErr: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "resort",
			Name:      "notification_failures_total",
			Help:      "Guest notifications that could not be delivered.",
		}, []string{"kind"}),
	}
	m.registry.MustRegister(
		m.commands, m.latency, m.conflicts, m.requests, m.published, m.notifyErr,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveCommand satisfies middleware.CommandObserver.
func (m *Metrics) ObserveCommand(key string, elapsed time.Duration, err error) {
	m.commands.WithLabelValues(key, outcome(err)).Inc()
	m.latency.WithLabelValues(key).Observe(elapsed.Seconds())
	if errors.Is(err, domainbooking.ErrDateOverlap) || errors.Is(err, domainbooking.ErrYogaSessionFull) || errors.Is(err, uow.ErrTransientConflict) {
		m.conflicts.Inc()
	}
}

// ObservePublish counts outbox deliveries.
func (m *Metrics) ObservePublish(err error) {
	m.published.WithLabelValues(outcome(err)).Inc()
}

func (m *Metrics) ObserveNotificationFailure(kind string) {
	m.notifyErr.WithLabelValues(kind).Inc()
}

func (m *Metrics) HTTP() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, uow.ErrTransientConflict):
		return "conflict"
	default:
		return "error"
	}
}
