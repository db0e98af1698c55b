package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every metric of the server. The default global registry is
// left alone so tests can create servers repeatedly.
var Registry = prometheus.NewRegistry()

var (
	WebhookRequests = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "scriptslap_webhook_requests_total",
			Help: "Workflow webhook calls, partitioned by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)
	WebhookDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scriptslap_webhook_request_duration_seconds",
			Help:    "Latency of workflow webhook calls.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
	CreditsCharged = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "scriptslap_credits_charged_total",
			Help: "Credits charged for confirmed operations.",
		},
		[]string{"operation"},
	)
	CreditsReleased = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "scriptslap_credits_released_total",
			Help: "Credits refunded after a failed operation.",
		},
		[]string{"operation"},
	)
	WatchdogExpired = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "scriptslap_watchdog_expired_total",
			Help: "Generations and refinements failed by the watchdog.",
		},
		[]string{"kind"},
	)
	HTTPRequests = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "scriptslap_http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		},
		[]string{"method", "route", "status"},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
