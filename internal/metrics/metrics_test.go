package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestHandlerExposesCounters(t *testing.T) {
	m := New()
	m.HTTPRequests.WithLabelValues("GET", "/api/v1/tours", "200").Inc()
	m.Bookings.Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Bookings))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `http_requests_total{method="GET",route="/api/v1/tours",status="200"} 1`)
	assert.Contains(t, rec.Body.String(), "bookings_created_total 1")
}

func TestNewIsIndependent(t *testing.T) {
	a, b := New(), New()
	a.RateLimited.Inc()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.RateLimited))
}
