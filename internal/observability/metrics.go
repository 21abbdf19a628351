package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the console.
type Metrics struct {
	ActiveSessions prometheus.Gauge

	// Layer synchronization metrics.
	Polls          *prometheus.CounterVec // labels: layer={labels,heat}, outcome={success,error}
	OverlayObjects *prometheus.GaugeVec   // labels: layer
	LayerOps       *prometheus.CounterVec // labels: layer, op={add,remove}

	// Region analysis metrics.
	AnalysisRequests *prometheus.CounterVec // labels: outcome={success,error,dropped}
	AnalysisDuration prometheus.Histogram
	AnalysisEvents   *prometheus.CounterVec // labels: outcome={published,error}

	// Backend API metrics.
	BackendRequests *prometheus.CounterVec   // labels: endpoint, outcome={success,error}
	BackendDuration *prometheus.HistogramVec // labels: endpoint

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec   // labels: outcome={success,error,empty}
	GeocodeCache       *prometheus.CounterVec   // labels: tier={memory,sqlite}, result={hit,miss}
	GeocodeAPIDuration *prometheus.HistogramVec // labels: provider
	GeocodeOutOfOrder  prometheus.Counter
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "map_console",
			Name:      "active_sessions",
			Help:      "Map views currently mounted.",
		}),
		Polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "map_console",
			Name:      "overlay_polls_total",
			Help:      "Overlay poll cycles by layer and outcome.",
		}, []string{"layer", "outcome"}),
		OverlayObjects: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "map_console",
			Name:      "overlay_objects",
			Help:      "Map objects currently attached, by layer, summed over sessions.",
		}, []string{"layer"}),
		LayerOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "map_console",
			Name:      "layer_operations_total",
			Help:      "Map object additions and removals by layer.",
		}, []string{"layer", "op"}),
		AnalysisRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "map_console",
			Name:      "analysis_requests_total",
			Help:      "Region analysis completions by outcome; dropped means superseded or dismissed.",
		}, []string{"outcome"}),
		AnalysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "map_console",
			Name:      "analysis_duration_seconds",
			Help:      "Time from region capture to analysis completion.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		}),
		AnalysisEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "map_console",
			Name:      "analysis_events_total",
			Help:      "Analysis stream publishes by outcome.",
		}, []string{"outcome"}),
		BackendRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "map_console",
			Name:      "backend_requests_total",
			Help:      "Backend API requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		BackendDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "map_console",
			Name:      "backend_request_duration_seconds",
			Help:      "Backend API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"endpoint"}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "map_console",
			Name:      "geocode_requests_total",
			Help:      "Reverse geocoding lookups by outcome.",
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "map_console",
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by tier and result.",
		}, []string{"tier", "result"}),
		GeocodeAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "map_console",
			Name:      "geocode_api_duration_seconds",
			Help:      "Geocoding provider request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"provider"}),
		GeocodeOutOfOrder: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "map_console",
			Name:      "geocode_out_of_order_total",
			Help:      "Address labels overwritten by a response to an older move-end.",
		}),
	}

	prometheus.MustRegister(
		m.ActiveSessions,
		m.Polls,
		m.OverlayObjects,
		m.LayerOps,
		m.AnalysisRequests,
		m.AnalysisDuration,
		m.AnalysisEvents,
		m.BackendRequests,
		m.BackendDuration,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.GeocodeOutOfOrder,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		ActiveSessions:     prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "map_console", Name: "active_sessions"}),
		Polls:              prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "map_console", Name: "overlay_polls_total"}, []string{"layer", "outcome"}),
		OverlayObjects:     prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: "map_console", Name: "overlay_objects"}, []string{"layer"}),
		LayerOps:           prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "map_console", Name: "layer_operations_total"}, []string{"layer", "op"}),
		AnalysisRequests:   prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "map_console", Name: "analysis_requests_total"}, []string{"outcome"}),
		AnalysisDuration:   prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "map_console", Name: "analysis_duration_seconds"}),
		AnalysisEvents:     prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "map_console", Name: "analysis_events_total"}, []string{"outcome"}),
		BackendRequests:    prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "map_console", Name: "backend_requests_total"}, []string{"endpoint", "outcome"}),
		BackendDuration:    prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "map_console", Name: "backend_request_duration_seconds"}, []string{"endpoint"}),
		GeocodeRequests:    prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "map_console", Name: "geocode_requests_total"}, []string{"outcome"}),
		GeocodeCache:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "map_console", Name: "geocode_cache_total"}, []string{"tier", "result"}),
		GeocodeAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "map_console", Name: "geocode_api_duration_seconds"}, []string{"provider"}),
		GeocodeOutOfOrder:  prometheus.NewCounter(prometheus.CounterOpts{Namespace: "map_console", Name: "geocode_out_of_order_total"}),
	}
}
