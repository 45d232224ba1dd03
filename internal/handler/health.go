package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/labstack/echo/v4"
)

// Check probes one dependency.
type Check func(ctx context.Context) error

// Health reports liveness and the state of each dependency.  It answers
// 503 when any required check fails; optional checks are reported only.
type Health struct {
	required map[string]Check
	optional map[string]Check
}

func NewHealth() *Health {
	return &Health{required: map[string]Check{}, optional: map[string]Check{}}
}

// Require adds a check whose failure makes the service unhealthy.
func (h *Health) Require(name string, c Check) *Health {
	h.required[name] = c
	return h
}

// Observe adds a check that is reported but never fails the probe.
func (h *Health) Observe(name string, c Check) *Health {
	h.optional[name] = c
	return h
}

func (h *Health) Handle(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := echo.Map{}
	for _, group := range []struct {
		checks   map[string]Check
		required bool
	}{{h.required, true}, {h.optional, false}} {
		names := make([]string, 0, len(group.checks))
		for n := range group.checks {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			if err := group.checks[n](ctx); err != nil {
				deps[n] = "down"
				if group.required {
					status = http.StatusServiceUnavailable
				}
				continue
			}
			deps[n] = "up"
		}
	}
	state := "ok"
	if status != http.StatusOK {
		state = "unavailable"
	}
	return c.JSON(status, echo.Map{"status": state, "dependencies": deps})
}
