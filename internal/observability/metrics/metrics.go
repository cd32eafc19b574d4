package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "siteapi_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "siteapi_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	loginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "siteapi_login_attempts_total",
		Help: "Login attempts by result",
	}, []string{"result"})

	uploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "siteapi_uploads_total",
		Help: "Image uploads by result",
	}, []string{"result"})

	uploadBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "siteapi_upload_bytes",
		Help:    "Size of accepted image uploads",
		Buckets: prometheus.ExponentialBuckets(16*1024, 4, 6),
	})
)

// ObserveHTTPRequest records an HTTP request metric. route is the matched
// pattern, not the raw path, to keep label cardinality bounded.
func ObserveHTTPRequest(method, route, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	httpRequestDuration.WithLabelValues(method, route, status).Observe(duration.Seconds())
}

// ObserveLogin counts a login attempt: success, invalid, throttled or error
func ObserveLogin(result string) {
	loginAttempts.WithLabelValues(result).Inc()
}

// ObserveUpload counts an upload attempt and, when accepted, its size
func ObserveUpload(result string, size int64) {
	uploads.WithLabelValues(result).Inc()
	if result == "accepted" {
		uploadBytes.Observe(float64(size))
	}
}

var (
	sweepRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "siteapi_upload_sweeps_total",
		Help: "Orphaned upload sweeps by result",
	}, []string{"result"})

	sweepRemoved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "siteapi_upload_sweep_removed_total",
		Help: "Orphaned upload files removed",
	})
)

// ObserveSweep counts a sweep run and the files it removed
func ObserveSweep(result string, removed int) {
	sweepRuns.WithLabelValues(result).Inc()
	sweepRemoved.Add(float64(removed))
}
