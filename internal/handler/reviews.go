package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tour-booking/internal/apperror"
	"github.com/iliyamo/tour-booking/internal/middleware"
	"github.com/iliyamo/tour-booking/internal/model"
	"github.com/iliyamo/tour-booking/internal/query"
	"github.com/iliyamo/tour-booking/internal/repository"
	"github.com/iliyamo/tour-booking/internal/service"
)

const (
	MsgReviewNeedsTour = "You must provide tour ID"
	MsgNoTour          = "No tour found with that ID"
	MsgNotReviewOwner  = "You do not have permission to modify this review."
)

// ReviewHandler serves /reviews and /tours/:tourId/reviews.  Every write
// recomputes the ratings of the reviewed tour.
type ReviewHandler struct {
	*Resource[model.Review]
	reviews repository.Collection[model.Review]
	tours   repository.Collection[model.Tour]
	users   repository.Collection[model.User]
}

func NewReviewHandler(store *repository.Store, ratings *service.Ratings, maxLimit int) *ReviewHandler {
	h := &ReviewHandler{reviews: store.Reviews, tours: store.Tours, users: store.Users}
	h.Resource = NewResource(store.Reviews, repository.ReviewSchema.Meta, Options[model.Review]{
		ParentParam: "tourId",
		ParentField: "tour",
		Decorate: []Expander[model.Review]{func(ctx context.Context, r *model.Review, out map[string]any) error {
			return reviewAuthor(ctx, h.users, r, out)
		}},
		BeforeSave: h.beforeSave,
		AfterWrite: func(ctx context.Context, r *model.Review) error { return ratings.Recompute(ctx, r.Tour) },
		MaxLimit:   maxLimit,
	})
	return h
}

// beforeSave fills tour and author on create.  Only admins may post on
// behalf of another user.  Tour and author never change on update.
func (h *ReviewHandler) beforeSave(c echo.Context, r, prev *model.Review) error {
	if prev != nil {
		r.Tour, r.User = prev.Tour, prev.User
		return nil
	}
	if raw := c.Param("tourId"); raw != "" {
		id, err := repository.ParseID(raw)
		if err != nil {
			return err
		}
		r.Tour = id
	}
	if r.Tour == 0 {
		return apperror.New(http.StatusBadRequest, MsgReviewNeedsTour)
	}
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return echo.ErrUnauthorized
	}
	if u.Role != model.RoleAdmin || r.User == 0 {
		r.User = u.ID
	}
	_, err := h.tours.FindOne(c.Request().Context(),
		query.Where("id", query.OpEq, strconv.FormatUint(r.Tour, 10)), service.Visible())
	if errors.Is(err, repository.ErrNotFound) {
		return apperror.New(http.StatusNotFound, MsgNoTour)
	}
	return err
}

// OwnerOnly lets the author or an admin through to update and delete.
// Missing reviews pass so the handler can answer 404.
func (h *ReviewHandler) OwnerOnly(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		u, ok := middleware.CurrentUser(c)
		if !ok {
			return echo.ErrUnauthorized
		}
		if u.Role == model.RoleAdmin {
			return next(c)
		}
		id, err := repository.ParseID(c.Param("id"))
		if err != nil {
			return err
		}
		r, err := h.reviews.Get(c.Request().Context(), id)
		if errors.Is(err, repository.ErrNotFound) {
			return next(c)
		}
		if err != nil {
			return err
		}
		if r.User != u.ID {
			return apperror.New(http.StatusForbidden, MsgNotReviewOwner)
		}
		return next(c)
	}
}

// reviewAuthor replaces the user id in out with the author's name and
// photo.  Authors that no longer exist keep the bare id.
func reviewAuthor(ctx context.Context, users repository.Collection[model.User], r *model.Review, out map[string]any) error {
	u, err := users.Get(ctx, r.User)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	out["user"] = model.UserSummary{ID: u.ID, Name: u.Name, Photo: u.Photo}
	return nil
}
