package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks system health and performance counters exposed on /metrics.
type Metrics struct {
	RefreshTotal     *prometheus.CounterVec
	RefreshDuration  *prometheus.HistogramVec
	UpstreamRequests *prometheus.CounterVec

	GameLogHits   prometheus.Counter
	GameLogMisses prometheus.Counter

	AnalyzeBatches  prometheus.Counter
	PropsAnalyzed   prometheus.Counter
	LocksDetected   prometheus.Counter
	AnalyzeDuration prometheus.Histogram

	WSConnections prometheus.Gauge
	WSBroadcasts  prometheus.Counter

	PushSent   prometheus.Counter
	PushFailed prometheus.Counter
}

// New creates and registers all collectors on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RefreshTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "propedge_refresh_total",
				Help: "Background refresh cycles by category and outcome",
			},
			[]string{"category", "status"},
		),
		RefreshDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "propedge_refresh_duration_seconds",
				Help:    "Background refresh cycle duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"category"},
		),
		UpstreamRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "propedge_upstream_requests_total",
				Help: "Upstream provider requests by provider and outcome",
			},
			[]string{"provider", "status"},
		),
		GameLogHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "propedge_game_log_cache_hits_total",
			Help: "Game log reads served from cache within TTL",
		}),
		GameLogMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "propedge_game_log_cache_misses_total",
			Help: "Game log reads that triggered an upstream fetch",
		}),
		AnalyzeBatches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "propedge_analyze_batches_total",
			Help: "Prop analysis batches processed",
		}),
		PropsAnalyzed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "propedge_props_analyzed_total",
			Help: "Individual props analyzed",
		}),
		LocksDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "propedge_locks_detected_total",
			Help: "Props that met the lock thresholds",
		}),
		AnalyzeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "propedge_analyze_duration_seconds",
			Help:    "Prop batch analysis duration",
			Buckets: prometheus.DefBuckets,
		}),
		WSConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "propedge_websocket_connections",
			Help: "Currently connected websocket clients",
		}),
		WSBroadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "propedge_websocket_broadcasts_total",
			Help: "Websocket broadcasts sent",
		}),
		PushSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "propedge_push_notifications_sent_total",
			Help: "Web push notifications delivered",
		}),
		PushFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "propedge_push_notifications_failed_total",
			Help: "Web push notifications that failed to deliver",
		}),
	}

	reg.MustRegister(
		m.RefreshTotal,
		m.RefreshDuration,
		m.UpstreamRequests,
		m.GameLogHits,
		m.GameLogMisses,
		m.AnalyzeBatches,
		m.PropsAnalyzed,
		m.LocksDetected,
		m.AnalyzeDuration,
		m.WSConnections,
		m.WSBroadcasts,
		m.PushSent,
		m.PushFailed,
	)

	return m
}

// NewUnregistered returns a Metrics backed by a private registry, for tests
// and for components constructed without a shared registry.
func NewUnregistered() *Metrics {
	return New(prometheus.NewRegistry())
}
