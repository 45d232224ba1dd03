package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/tour-booking/internal/config"
	"github.com/iliyamo/tour-booking/internal/metrics"
)

// Cache stores successful GET responses in Redis, grouped by resource.
// Each group has a generation counter that is part of every key, so
// Invalidate drops a whole group with a single INCR; stale entries age out
// through their TTL.
type Cache struct {
	cfg config.CacheConfig
	rdb *redis.Client
	m   *metrics.Metrics
	log *zap.Logger
}

// NewCache returns a cache that is a no-op when disabled or when rdb is
// nil.
func NewCache(cfg config.CacheConfig, rdb *redis.Client, m *metrics.Metrics, log *zap.Logger) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	return &Cache{cfg: cfg, rdb: rdb, m: m, log: log}
}

func (ch *Cache) enabled() bool { return ch != nil && ch.cfg.Enabled && ch.rdb != nil }

func (ch *Cache) generationKey(group string) string {
	return fmt.Sprintf("%s:gen:%s", ch.cfg.Prefix, group)
}

// Invalidate discards every cached response of group.
func (ch *Cache) Invalidate(ctx context.Context, group string) {
	if !ch.enabled() {
		return
	}
	if err := ch.rdb.Incr(ctx, ch.generationKey(group)).Err(); err != nil {
		ch.log.Warn("cache invalidate failed", zap.String("group", group), zap.Error(err))
	}
}

// InvalidateOnWrite invalidates group after any successful non-GET request
// passing through it.
func (ch *Cache) InvalidateOnWrite(group string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if c.Request().Method != http.MethodGet && err == nil && c.Response().Status < http.StatusBadRequest {
				ch.Invalidate(context.WithoutCancel(c.Request().Context()), group)
			}
			return err
		}
	}
}

// Middleware caches responses of group.
func (ch *Cache) Middleware(group string) echo.MiddlewareFunc {
	if !ch.enabled() {
		return passthrough
	}
	maxBody := int64(ch.cfg.MaxBodyBytes)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !ch.cfg.Methods[strings.ToUpper(c.Request().Method)] {
				return next(c)
			}
			ctx := c.Request().Context()
			gen, err := ch.rdb.Get(ctx, ch.generationKey(group)).Int64()
			if err != nil && err != redis.Nil {
				return next(c)
			}
			key := cacheKey(ch.cfg.Prefix, group, gen, c)

			if bs, err := ch.rdb.Get(ctx, key).Bytes(); err == nil {
				if status, hdr, body, ok := decodePayload(bs); ok {
					ch.count(group, "hit")
					for k, vals := range hdr {
						if strings.EqualFold(k, echo.HeaderContentLength) {
							continue
						}
						for _, v := range vals {
							c.Response().Header().Add(k, v)
						}
					}
					c.Response().Header().Set("X-Cache", "HIT")
					c.Response().WriteHeader(status)
					_, err := c.Response().Write(body)
					return err
				}
			}
			ch.count(group, "miss")

			cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: maxBody}
			c.Response().Writer = cw
			c.Response().Header().Set("X-Cache", "MISS")
			if err := next(c); err != nil {
				return err
			}
			if cw.status != http.StatusOK || cw.truncated {
				return nil
			}
			hdr := c.Response().Header().Clone()
			hdr.Del("X-Cache")
			if payload, err := encodePayload(cw.status, hdr, cw.buf.Bytes()); err == nil {
				if err := ch.rdb.SetEx(context.WithoutCancel(ctx), key, payload, ch.cfg.TTL).Err(); err != nil {
					ch.log.Warn("cache store failed", zap.String("key", key), zap.Error(err))
				}
			}
			return nil
		}
	}
}

func (ch *Cache) count(group, result string) {
	if ch.m != nil {
		ch.m.CacheLookups.WithLabelValues(group, result).Inc()
	}
}

// cacheKey hashes route and query so keys stay short: prefix:group:gen:sha1.
func cacheKey(prefix, group string, gen int64, c echo.Context) string {
	r := c.Request()
	sum := sha1.Sum([]byte(r.URL.Path + "?" + r.URL.RawQuery))
	return fmt.Sprintf("%s:%s:%d:%x", prefix, group, gen, sum[:])
}

// captureWriter tees the response body up to limit bytes.
type captureWriter struct {
	http.ResponseWriter
	status    int
	buf       bytes.Buffer
	limit     int64
	truncated bool
}

func (cw *captureWriter) WriteHeader(code int) {
	cw.status = code
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
	if !cw.truncated {
		if cw.limit > 0 && int64(cw.buf.Len()+len(b)) > cw.limit {
			cw.truncated = true
			cw.buf.Reset()
		} else {
			cw.buf.Write(b)
		}
	}
	return cw.ResponseWriter.Write(b)
}

// encodePayload packs: [4 bytes status][4 bytes headerLen][headerJSON][body]
func encodePayload(status int, header http.Header, body []byte) ([]byte, error) {
	hdrJSON, err := json.Marshal(header)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 8+len(hdrJSON)+len(body))
	binary.BigEndian.PutUint32(out[0:4], uint32(status))
	binary.BigEndian.PutUint32(out[4:8], uint32(len(hdrJSON)))
	copy(out[8:], hdrJSON)
	copy(out[8+len(hdrJSON):], body)
	return out, nil
}

func decodePayload(bs []byte) (status int, header http.Header, body []byte, ok bool) {
	if len(bs) < 8 {
		return 0, nil, nil, false
	}
	status = int(binary.BigEndian.Uint32(bs[0:4]))
	hlen := int(binary.BigEndian.Uint32(bs[4:8]))
	if hlen < 0 || 8+hlen > len(bs) {
		return 0, nil, nil, false
	}
	header = make(http.Header)
	if hlen > 0 {
		if err := json.Unmarshal(bs[8:8+hlen], &header); err != nil {
			return 0, nil, nil, false
		}
	}
	return status, header, bs[8+hlen:], true
}
