package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tour-booking/internal/handler"
	"github.com/iliyamo/tour-booking/internal/middleware"
	"github.com/iliyamo/tour-booking/internal/model"
	"github.com/iliyamo/tour-booking/internal/service"
)

// toursGroup names the cache generation shared by tour reads.  Review and
// user writes bump it too: tours embed rating fields and guide summaries.
const toursGroup = "tours"

// RegisterTours mounts /tours and the reviews nested under it.  Public reads
// go through the response cache; writes need an admin or lead guide.
func RegisterTours(g *echo.Group, d Deps) {
	h := handler.NewTourHandler(d.Store, service.NewTours(d.Store.Tours), d.Config.QueryMaxLimit)
	reviews := reviewHandler(d)
	protect := middleware.Protect(d.Auth)
	staff := middleware.RestrictTo(model.RoleAdmin, model.RoleLeadGuide)
	cached := d.Cache.Middleware(toursGroup)

	r := g.Group("/tours", d.Cache.InvalidateOnWrite(toursGroup))
	r.GET("/top-5-cheap", h.TopCheap, cached)
	r.GET("/tour-stats", h.Stats, cached)
	r.GET("/monthly-plan/:year", h.MonthlyPlan, protect,
		middleware.RestrictTo(model.RoleAdmin, model.RoleLeadGuide, model.RoleGuide))
	r.GET("/tours-within/:distance/center/:latlng/unit/:unit", h.Within, cached)
	r.GET("/distances/:latlng/unit/:unit", h.Distances, cached)

	r.GET("", h.List, cached)
	r.POST("", h.Create, protect, staff)
	r.GET("/:id", h.Get, cached)
	r.PATCH("/:id", h.Update, protect, staff)
	r.DELETE("/:id", h.Delete, protect, staff)

	r.GET("/:tourId/reviews", reviews.List, protect)
	r.POST("/:tourId/reviews", reviews.Create, protect, middleware.RestrictTo(model.RoleUser, model.RoleAdmin))
}

// RegisterReviews mounts /reviews.  Only the author or an admin may change a
// review.
func RegisterReviews(g *echo.Group, d Deps) {
	h := reviewHandler(d)
	authors := middleware.RestrictTo(model.RoleUser, model.RoleAdmin)

	r := g.Group("/reviews", middleware.Protect(d.Auth), d.Cache.InvalidateOnWrite(toursGroup))
	r.GET("", h.List)
	r.POST("", h.Create, authors)
	r.GET("/:id", h.Get)
	r.PATCH("/:id", h.Update, authors, h.OwnerOnly)
	r.DELETE("/:id", h.Delete, authors, h.OwnerOnly)
}

func reviewHandler(d Deps) *handler.ReviewHandler {
	ratings := service.NewRatings(d.Store.Reviews, d.Store.Tours)
	return handler.NewReviewHandler(d.Store, ratings, d.Config.QueryMaxLimit)
}
