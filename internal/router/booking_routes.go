package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tour-booking/internal/handler"
	"github.com/iliyamo/tour-booking/internal/middleware"
	"github.com/iliyamo/tour-booking/internal/model"
)

// RegisterBookings mounts /bookings.  Any signed-in user can open a checkout
// session and list their own bookings; the CRUD routes are for staff.
func RegisterBookings(g *echo.Group, d Deps) {
	h := handler.NewBookingHandler(handler.BookingDeps{
		Store:    d.Store,
		Payments: d.Payments,
		Events:   d.Events,
		Config:   d.Config,
		Metrics:  d.Metrics,
		Log:      d.Log,
	})
	r := g.Group("/bookings", middleware.Protect(d.Auth))
	r.GET("/checkout-session/:tourId", h.CheckoutSession)
	r.GET("/my", h.My)

	staff := r.Group("", middleware.RestrictTo(model.RoleAdmin, model.RoleLeadGuide))
	staff.GET("", h.List)
	staff.POST("", h.Create)
	staff.GET("/:id", h.Get)
	staff.PATCH("/:id", h.Update)
	staff.DELETE("/:id", h.Delete)
}
