package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/iliyamo/tour-booking/internal/apperror"
	"github.com/iliyamo/tour-booking/internal/metrics"
	"github.com/iliyamo/tour-booking/internal/model"
)

func TestMetrics_RecordsFinalStatus(t *testing.T) {
	m := metrics.New()
	e := echo.New()
	e.HTTPErrorHandler = apperror.Handler(zap.NewNop(), false)
	e.Use(RequestLogger(zap.NewNop()), Metrics(m))
	e.GET("/admin", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, Protect(resolver), RestrictTo(model.RoleAdmin))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/admin", "401")))
}
