package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tour-booking/internal/apperror"
	"github.com/iliyamo/tour-booking/internal/model"
	"github.com/iliyamo/tour-booking/internal/query"
	"github.com/iliyamo/tour-booking/internal/repository"
	"github.com/iliyamo/tour-booking/internal/service"
)

// TourHandler serves /tours: CRUD plus the alias, report and geo routes.
type TourHandler struct {
	*Resource[model.Tour]
	svc     *service.Tours
	reviews repository.Collection[model.Review]
	users   repository.Collection[model.User]
}

func NewTourHandler(store *repository.Store, svc *service.Tours, maxLimit int) *TourHandler {
	h := &TourHandler{svc: svc, reviews: store.Reviews, users: store.Users}
	h.Resource = NewResource(store.Tours, repository.TourSchema.Meta, Options[model.Tour]{
		Base:       func(echo.Context) []query.Filter { return []query.Filter{service.Visible()} },
		BeforeSave: h.beforeSave,
		Expand:     []Expander[model.Tour]{h.expandGuides, h.expandReviews},
		MaxLimit:   maxLimit,
	})
	return h
}

func (h *TourHandler) beforeSave(c echo.Context, t, prev *model.Tour) error {
	t.Slug = service.Slugify(t.Name)
	if prev == nil {
		if t.RatingsAverage == 0 {
			t.RatingsAverage = model.DefaultRatingsAverage
		}
	}
	if t.StartLocation != nil && t.StartLocation.Type == "" {
		t.StartLocation.Type = "Point"
	}
	for i := range t.Locations {
		if t.Locations[i].Type == "" {
			t.Locations[i].Type = "Point"
		}
	}
	return h.checkGuides(c.Request().Context(), t.Guides)
}

// checkGuides requires every guide id to name an active guide or lead
// guide.
func (h *TourHandler) checkGuides(ctx context.Context, ids []uint64) error {
	for _, id := range ids {
		u, err := h.users.Get(ctx, id)
		if errors.Is(err, repository.ErrNotFound) || (err == nil && !u.Active) {
			return apperror.Newf(http.StatusBadRequest, "Invalid guides: no user with id %d.", id)
		}
		if err != nil {
			return err
		}
		if u.Role != model.RoleGuide && u.Role != model.RoleLeadGuide {
			return apperror.Newf(http.StatusBadRequest, "Invalid guides: user %d is not a guide.", id)
		}
	}
	return nil
}

func (h *TourHandler) expandGuides(ctx context.Context, t *model.Tour, out map[string]any) error {
	guides := make([]model.UserSummary, 0, len(t.Guides))
	for _, id := range t.Guides {
		u, err := h.users.Get(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		guides = append(guides, u.Summary())
	}
	out["guides"] = guides
	return nil
}

func (h *TourHandler) expandReviews(ctx context.Context, t *model.Tour, out map[string]any) error {
	reviews, err := h.reviews.Find(ctx, query.Query{
		Filters: []query.Filter{query.Where("tour", query.OpEq, strconv.FormatUint(t.ID, 10))},
		Sort:    []query.SortField{{Field: "createdAt", Desc: true}},
	})
	if err != nil {
		return err
	}
	rendered := make([]map[string]any, 0, len(reviews))
	for i := range reviews {
		m, err := toMap(&reviews[i])
		if err != nil {
			return err
		}
		if err := reviewAuthor(ctx, h.users, &reviews[i], m); err != nil {
			return err
		}
		rendered = append(rendered, defaultProjection.Apply(m))
	}
	out["reviews"] = rendered
	return nil
}

// TopCheap lists the five best rated tours, cheapest first on ties.  Other
// query parameters still filter.
func (h *TourHandler) TopCheap(c echo.Context) error {
	params := c.QueryParams()
	params.Set("limit", "5")
	params.Set("sort", "-ratingsAverage,price")
	params.Set("fields", "name,price,ratingsAverage,summary,difficulty")
	return h.list(c, params)
}

func (h *TourHandler) Stats(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	stats, err := h.svc.Stats(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "success", "data": echo.Map{"stats": stats}})
}

func (h *TourHandler) MonthlyPlan(c echo.Context) error {
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil || year < 1 || year > 9999 {
		return &repository.CastError{Path: "year", Value: c.Param("year")}
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	plan, err := h.svc.MonthlyPlan(ctx, year)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"status":  "success",
		"results": len(plan),
		"data":    echo.Map{"plan": plan},
	})
}

// Within serves /tours-within/:distance/center/:latlng/unit/:unit.
func (h *TourHandler) Within(c echo.Context) error {
	distance, err := strconv.ParseFloat(c.Param("distance"), 64)
	if err != nil {
		return &repository.CastError{Path: "distance", Value: c.Param("distance")}
	}
	center, err := service.ParseLatLng(c.Param("latlng"))
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	tours, err := h.svc.Within(ctx, distance, center, c.Param("unit"))
	if err != nil {
		return err
	}
	out := make([]map[string]any, 0, len(tours))
	for i := range tours {
		m, err := h.render(ctx, &tours[i], defaultProjection, nil)
		if err != nil {
			return err
		}
		out = append(out, m)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"status":  "success",
		"results": len(out),
		"data":    echo.Map{"data": out},
	})
}

// Distances serves /distances/:latlng/unit/:unit.
func (h *TourHandler) Distances(c echo.Context) error {
	center, err := service.ParseLatLng(c.Param("latlng"))
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	distances, err := h.svc.Distances(ctx, center, c.Param("unit"))
	if err != nil {
		return err
	}
	unit := "kilometers"
	if service.Miles(c.Param("unit")) {
		unit = "miles"
	}
	return c.JSON(http.StatusOK, echo.Map{
		"status": "success",
		"unit":   unit,
		"data":   echo.Map{"distances": distances},
	})
}
