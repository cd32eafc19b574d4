package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestHTTPMetricsMiddlewareUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(HTTPMetricsMiddleware)
	r.Get("/api/team/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/api/team/{id}", "404"))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/team/abc", nil))
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/api/team/{id}", "404"))

	assert.Equal(t, before+1, after)
}

func TestObserveLoginAndUpload(t *testing.T) {
	before := testutil.ToFloat64(loginAttempts.WithLabelValues("success"))
	ObserveLogin("success")
	assert.Equal(t, before+1, testutil.ToFloat64(loginAttempts.WithLabelValues("success")))

	beforeUp := testutil.ToFloat64(uploads.WithLabelValues("rejected_type"))
	ObserveUpload("rejected_type", 10)
	assert.Equal(t, beforeUp+1, testutil.ToFloat64(uploads.WithLabelValues("rejected_type")))
}

func TestObserveSweep(t *testing.T) {
	before := testutil.ToFloat64(sweepRemoved)
	ObserveSweep("success", 3)
	assert.Equal(t, before+3, testutil.ToFloat64(sweepRemoved))
}
