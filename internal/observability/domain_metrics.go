package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	queriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckview_queries_total",
			Help: "Total number of statements executed through the driver, by outcome.",
		},
		[]string{"status"},
	)
	queryLatencyMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "duckview_query_latency_ms",
			Help:    "DuckDB statement latency in milliseconds.",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
	)
	rewritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckview_rewrites_total",
			Help: "Total number of statements changed by each rewrite rule.",
		},
		[]string{"rule"},
	)
	lossyRewritesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "duckview_lossy_rewrites_total",
			Help: "Total number of rewrites that changed statement semantics.",
		},
	)
	reloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckview_schema_reloads_total",
			Help: "Total number of schema rebuilds, by database and outcome.",
		},
		[]string{"database", "status"},
	)
	reloadLatencyMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "duckview_schema_reload_latency_ms",
			Help:    "Time to open a connection and apply the view set in milliseconds.",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
	)
	viewsGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "duckview_views",
			Help: "Number of views in the active connection of each database.",
		},
		[]string{"database"},
	)
	mirrorSyncsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckview_mirror_syncs_total",
			Help: "Total number of object store mirror passes, by database and outcome.",
		},
		[]string{"database", "status"},
	)
	mirrorObjectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckview_mirror_objects_total",
			Help: "Total number of mirrored files downloaded or removed.",
		},
		[]string{"database", "action"},
	)
)

func init() {
	prometheus.MustRegister(
		queriesTotal,
		queryLatencyMs,
		rewritesTotal,
		lossyRewritesTotal,
		reloadsTotal,
		reloadLatencyMs,
		viewsGauge,
		mirrorSyncsTotal,
		mirrorObjectsTotal,
	)
}

func ObserveQuery(status string, elapsed time.Duration) {
	queriesTotal.WithLabelValues(status).Inc()
	if elapsed > 0 {
		queryLatencyMs.Observe(float64(elapsed.Milliseconds()))
	}
}

func ObserveRewrite(applied []string) {
	for _, rule := range applied {
		rewritesTotal.WithLabelValues(rule).Inc()
	}
}

func IncrementLossyRewrite() {
	lossyRewritesTotal.Inc()
}

func ObserveReload(database, status string, views int, elapsed time.Duration) {
	reloadsTotal.WithLabelValues(database, status).Inc()
	reloadLatencyMs.Observe(float64(elapsed.Milliseconds()))
	if status == "ok" {
		viewsGauge.WithLabelValues(database).Set(float64(views))
	}
}

func ObserveMirrorSync(database, status string, downloaded, removed int) {
	mirrorSyncsTotal.WithLabelValues(database, status).Inc()
	if downloaded > 0 {
		mirrorObjectsTotal.WithLabelValues(database, "downloaded").Add(float64(downloaded))
	}
	if removed > 0 {
		mirrorObjectsTotal.WithLabelValues(database, "removed").Add(float64(removed))
	}
}
