package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	Logins          prometheus.Counter
	TokenRequests   prometheus.Counter
	AuthFailures    prometheus.Counter
	ActiveSessions  prometheus.Gauge
	EndpointLatency *prometheus.HistogramVec

	MeasurementsIngested *prometheus.CounterVec
	TicketsCreated       *prometheus.CounterVec
	WeatherFetches       *prometheus.CounterVec
	WeatherFetchErrors   prometheus.Counter
}

// New creates and registers all Prometheus metrics
func New() *Metrics {
	return &Metrics{
		Logins: promauto.NewCounter(prometheus.CounterOpts{
			Name: "icegrid_logins_total",
			Help: "Total number of successful logins",
		}),
		TokenRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "icegrid_token_requests_total",
			Help: "Total number of token issue and refresh requests",
		}),
		AuthFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "icegrid_auth_failures_total",
			Help: "Total number of authentication failures",
		}),
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "icegrid_active_sessions",
			Help: "Current number of active sessions",
		}),
		EndpointLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "icegrid_endpoint_latency_seconds",
			Help:    "Latency of endpoints in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		MeasurementsIngested: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "icegrid_measurements_ingested_total",
			Help: "Total number of measurements ingested, labeled by data source",
		}, []string{"source"}),
		TicketsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "icegrid_tickets_created_total",
			Help: "Total number of service tickets created, labeled by priority",
		}, []string{"priority"}),
		WeatherFetches: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "icegrid_weather_fetches_total",
			Help: "Total number of weather forecast fetches, labeled by provider",
		}, []string{"provider"}),
		WeatherFetchErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "icegrid_weather_fetch_errors_total",
			Help: "Total number of failed weather forecast fetches",
		}),
	}
}
