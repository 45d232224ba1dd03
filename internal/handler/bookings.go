package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/iliyamo/tour-booking/internal/apperror"
	"github.com/iliyamo/tour-booking/internal/config"
	"github.com/iliyamo/tour-booking/internal/metrics"
	"github.com/iliyamo/tour-booking/internal/middleware"
	"github.com/iliyamo/tour-booking/internal/model"
	"github.com/iliyamo/tour-booking/internal/payment"
	"github.com/iliyamo/tour-booking/internal/query"
	"github.com/iliyamo/tour-booking/internal/queue"
	"github.com/iliyamo/tour-booking/internal/repository"
	"github.com/iliyamo/tour-booking/internal/service"
)

const MsgPaymentFailed = "Could not start the payment. Try again later!"

// BookingHandler serves /bookings: the checkout flow for customers and
// CRUD for staff.
type BookingHandler struct {
	*Resource[model.Booking]
	tours    repository.Collection[model.Tour]
	users    repository.Collection[model.User]
	bookings repository.Collection[model.Booking]
	payments payment.Gateway
	events   queue.Publisher
	cfg      config.Config
	m        *metrics.Metrics
	log      *zap.Logger
}

type BookingDeps struct {
	Store    *repository.Store
	Payments payment.Gateway
	Events   queue.Publisher
	Config   config.Config
	Metrics  *metrics.Metrics
	Log      *zap.Logger
}

func NewBookingHandler(d BookingDeps) *BookingHandler {
	h := &BookingHandler{
		tours:    d.Store.Tours,
		users:    d.Store.Users,
		bookings: d.Store.Bookings,
		payments: d.Payments,
		events:   d.Events,
		cfg:      d.Config,
		m:        d.Metrics,
		log:      d.Log,
	}
	h.Resource = NewResource(d.Store.Bookings, repository.BookingSchema.Meta, Options[model.Booking]{
		Decorate:   []Expander[model.Booking]{h.expand},
		BeforeSave: h.beforeSave,
		MaxLimit:   d.Config.QueryMaxLimit,
	})
	return h
}

// beforeSave checks the referenced tour and user exist and prices the
// booking from the tour when no price was given.
func (h *BookingHandler) beforeSave(c echo.Context, b, prev *model.Booking) error {
	ctx := c.Request().Context()
	tour, err := h.tours.Get(ctx, b.Tour)
	if errors.Is(err, repository.ErrNotFound) {
		return apperror.New(http.StatusBadRequest, MsgNoTour)
	}
	if err != nil {
		return err
	}
	if _, err := h.users.Get(ctx, b.User); errors.Is(err, repository.ErrNotFound) {
		return apperror.New(http.StatusBadRequest, "No user found with that ID")
	} else if err != nil {
		return err
	}
	if b.Price.IsZero() {
		b.Price = decimal.NewFromFloat(tour.Price)
	}
	if b.Price.IsNegative() {
		return apperror.New(http.StatusBadRequest, "Invalid input data. price must not be negative")
	}
	return nil
}

// expand adds the tour name and the customer summary.
func (h *BookingHandler) expand(ctx context.Context, b *model.Booking, out map[string]any) error {
	if t, err := h.tours.Get(ctx, b.Tour); err == nil {
		out["tour"] = echo.Map{"id": t.ID, "name": t.Name, "slug": t.Slug}
	} else if !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	if u, err := h.users.Get(ctx, b.User); err == nil {
		out["user"] = model.UserSummary{ID: u.ID, Name: u.Name, Photo: u.Photo}
	} else if !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	return nil
}

// CheckoutSession opens a payment session for :tourId, records an unpaid
// booking and announces it on the booking queue.
func (h *BookingHandler) CheckoutSession(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return echo.ErrUnauthorized
	}
	tourID, err := repository.ParseID(c.Param("tourId"))
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	tour, err := h.tours.FindOne(ctx, query.Where("id", query.OpEq, strconv.FormatUint(tourID, 10)), service.Visible())
	if errors.Is(err, repository.ErrNotFound) {
		return apperror.New(http.StatusNotFound, MsgNoTour)
	}
	if err != nil {
		return err
	}

	price := decimal.NewFromFloat(tour.Price)
	sess, err := h.payments.CreateCheckoutSession(ctx, payment.CheckoutRequest{
		TourID:        tour.ID,
		TourName:      tour.Name,
		Summary:       tour.Summary,
		ImageURL:      h.cfg.PublicURL + "/img/tours/" + tour.ImageCover,
		Price:         price,
		CustomerEmail: u.Email,
		UserID:        u.ID,
		SuccessURL:    h.cfg.CheckoutReturn + "/my-tours",
		CancelURL:     h.cfg.CheckoutReturn + "/tour/" + tour.Slug,
	})
	if err != nil {
		return apperror.Wrap(err, http.StatusBadGateway, MsgPaymentFailed)
	}

	b := model.Booking{Tour: tour.ID, User: u.ID, Price: price}
	if err := h.bookings.Insert(ctx, &b); err != nil {
		return err
	}
	if h.m != nil {
		h.m.Bookings.Inc()
	}
	ev := queue.BookingCreated{
		BookingID: b.ID,
		TourID:    tour.ID,
		TourName:  tour.Name,
		UserID:    u.ID,
		UserEmail: u.Email,
		Price:     price,
		SessionID: sess.ID,
		CreatedAt: b.CreatedAt,
	}
	if err := h.events.Publish(context.WithoutCancel(ctx), queue.BookingQueue, ev); err != nil {
		h.log.Warn("publish booking event", zap.Uint64("booking_id", b.ID), zap.Error(err))
	}
	return c.JSON(http.StatusOK, echo.Map{
		"status":  "success",
		"session": sess,
		"data":    echo.Map{"booking": b},
	})
}

// My lists the caller's bookings.
func (h *BookingHandler) My(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return echo.ErrUnauthorized
	}
	return h.list(c, c.QueryParams(), query.Where("user", query.OpEq, strconv.FormatUint(u.ID, 10)))
}
