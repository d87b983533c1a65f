// Package metrics provides Prometheus metrics for the index service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anyindex_requests_total",
			Help: "Total number of index requests",
		},
		[]string{"mount", "kind", "status"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "anyindex_request_duration_seconds",
			Help:    "Index request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"mount", "kind"},
	)

	renderCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anyindex_render_cache_total",
			Help: "Render cache lookups by result",
		},
		[]string{"mount", "result"},
	)

	renderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "anyindex_render_duration_seconds",
			Help:    "Time to enumerate and render one directory listing",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"mount"},
	)

	cacheSweptTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "anyindex_render_cache_swept_total",
			Help: "Expired render cache records removed by the janitor",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordRequest records one finished index request.
func RecordRequest(mount, kind string, status int, duration time.Duration) {
	requestsTotal.WithLabelValues(mount, kind, strconv.Itoa(status)).Inc()
	requestDuration.WithLabelValues(mount, kind).Observe(duration.Seconds())
}

// RecordCacheLookup records a render cache hit or miss.
func RecordCacheLookup(mount string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	renderCacheTotal.WithLabelValues(mount, result).Inc()
}

// RecordRender records the duration of a listing render.
func RecordRender(mount string, duration time.Duration) {
	renderDuration.WithLabelValues(mount).Observe(duration.Seconds())
}

// RecordSweep records records removed by one janitor pass.
func RecordSweep(removed int) {
	if removed > 0 {
		cacheSweptTotal.Add(float64(removed))
	}
}
