package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/tour-booking/internal/config"
)

func TestPayloadRoundTrip(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"status":"success"}`))
	require.NoError(t, err)

	status, gotHdr, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "application/json", gotHdr.Get("Content-Type"))
	assert.Equal(t, `{"status":"success"}`, string(body))

	_, _, _, ok = decodePayload(bs[:5])
	assert.False(t, ok)
}

func TestCaptureWriter_StopsAtLimit(t *testing.T) {
	rec := httptest.NewRecorder()
	cw := &captureWriter{ResponseWriter: rec, status: http.StatusOK, limit: 8}
	_, _ = cw.Write([]byte("12345"))
	assert.False(t, cw.truncated)
	_, _ = cw.Write([]byte("67890"))
	assert.True(t, cw.truncated)
	assert.Equal(t, "1234567890", rec.Body.String())
}

func TestCache_DisabledIsTransparent(t *testing.T) {
	ch := NewCache(config.CacheConfig{Enabled: true, Methods: map[string]bool{"GET": true}}, nil, nil, zap.NewNop())
	ch.Invalidate(context.Background(), "tours")

	e := echo.New()
	calls := 0
	e.GET("/tours", func(c echo.Context) error {
		calls++
		return c.String(http.StatusOK, "ok")
	}, ch.Middleware("tours"))
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tours", nil))
		assert.Empty(t, rec.Header().Get("X-Cache"))
	}
	assert.Equal(t, 2, calls)
}
