package metrics

import "github.com/prometheus/client_golang/prometheus"

// Pipeline Prometheus metrics.
var (
	RecognizerPassesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "geotag",
			Name:      "recognizer_passes_total",
			Help:      "Total number of recognizer passes",
		},
		[]string{"recognizer", "status"},
	)

	RecognizerEntitiesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "geotag",
			Name:      "recognizer_entities_total",
			Help:      "Total number of passes that found at least one entity",
		},
		[]string{"recognizer"},
	)

	GeocodeRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "geotag",
			Name:      "geocode_requests_total",
			Help:      "Total number of geocoding requests",
		},
		[]string{"status"},
	)

	GeocodeRequestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "geotag",
			Name:      "geocode_request_duration_seconds",
			Help:      "Geocoding request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	GeocodeCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "geotag",
			Name:      "geocode_cache_total",
			Help:      "Geocode cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers Prometheus pipeline metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(RecognizerPassesTotal)
	prometheus.MustRegister(RecognizerEntitiesTotal)
	prometheus.MustRegister(GeocodeRequestsTotal)
	prometheus.MustRegister(GeocodeRequestDuration)
	prometheus.MustRegister(GeocodeCacheTotal)
	pipelineMetricsRegistered = true
}
