package router // package router wires the handlers, middleware and routes of the API

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/tour-booking/internal/apperror"
	"github.com/iliyamo/tour-booking/internal/auth"
	"github.com/iliyamo/tour-booking/internal/config"
	"github.com/iliyamo/tour-booking/internal/handler"
	"github.com/iliyamo/tour-booking/internal/metrics"
	"github.com/iliyamo/tour-booking/internal/middleware"
	"github.com/iliyamo/tour-booking/internal/model"
	"github.com/iliyamo/tour-booking/internal/payment"
	"github.com/iliyamo/tour-booking/internal/queue"
	"github.com/iliyamo/tour-booking/internal/repository"
	"github.com/iliyamo/tour-booking/internal/upload"
	"github.com/iliyamo/tour-booking/internal/validation"
)

// Deps carries everything the routes need.  Metrics, Cache, RateLimit and
// Health are optional; a nil value switches the feature off.
type Deps struct {
	Config    config.Config
	Log       *zap.Logger
	Store     *repository.Store
	Auth      *auth.Service
	Images    *upload.ImageStore
	Payments  payment.Gateway
	Events    queue.Publisher
	Metrics   *metrics.Metrics
	Cache     *middleware.Cache
	RateLimit echo.MiddlewareFunc
	Health    *handler.Health
}

// Request body caps.  Photo uploads get their own limit, slightly above
// upload.DefaultMaxBytes to leave room for the multipart envelope.
const (
	jsonBodyLimit   = "10K"
	uploadBodyLimit = "6M"
)

// isUpload reports whether the matched route accepts a multipart photo.
func isUpload(c echo.Context) bool {
	return strings.HasSuffix(c.Path(), "/users/update-me")
}

// New builds the echo instance with the global middleware chain and every
// route registered.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validation.New()
	e.HTTPErrorHandler = apperror.Handler(d.Log, !d.Config.IsProduction())

	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(d.Log))
	e.Use(echomw.Recover())
	if d.Metrics != nil {
		e.Use(middleware.Metrics(d.Metrics))
	}
	e.Use(echomw.Secure())
	e.Use(echomw.BodyLimitWithConfig(echomw.BodyLimitConfig{Limit: jsonBodyLimit, Skipper: isUpload}))

	RegisterRoutes(e, d)

	var api *echo.Group
	if d.RateLimit != nil {
		api = e.Group("/api/v1", d.RateLimit)
	} else {
		api = e.Group("/api/v1")
	}
	RegisterAuth(api, d)
	RegisterTours(api, d)
	RegisterReviews(api, d)
	RegisterUsers(api, d)
	RegisterBookings(api, d)
	return e
}

// RegisterRoutes registers the unauthenticated operational endpoints and the
// uploaded image directory.
func RegisterRoutes(e *echo.Echo, d Deps) {
	if d.Health != nil {
		e.GET("/healthz", d.Health.Handle)
	} else {
		e.GET("/healthz", func(c echo.Context) error {
			return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
		})
	}
	if d.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(d.Metrics.Handler()))
	}
	if d.Config.UploadDir != "" {
		e.Static("/img", d.Config.UploadDir)
	}
}

// RegisterAuth mounts /auth.  Only update-my-password needs a session; the
// rest either create one or work from a cookie or emailed token.
func RegisterAuth(g *echo.Group, d Deps) {
	a := handler.NewAuthHandler(d.Config, d.Auth)
	r := g.Group("/auth")
	r.POST("/signup", a.Signup)
	r.POST("/login", a.Login)
	r.POST("/logout", a.Logout)
	r.POST("/forgot-password", a.ForgotPassword)
	r.PATCH("/reset-password/:token", a.ResetPassword)
	r.POST("/refresh-token", a.RefreshToken)
	r.PATCH("/update-my-password", a.UpdatePassword, middleware.Protect(d.Auth))
}

// RegisterUsers mounts /users.  Every route needs a session; the CRUD half
// is admin only.
func RegisterUsers(g *echo.Group, d Deps) {
	h := handler.NewUserHandler(d.Store.Users, d.Images, d.Config.QueryMaxLimit)
	r := g.Group("/users", middleware.Protect(d.Auth), d.Cache.InvalidateOnWrite(toursGroup))
	r.GET("/me", h.Me)
	r.PATCH("/update-me", h.UpdateMe, echomw.BodyLimit(uploadBodyLimit))
	r.DELETE("/delete-me", h.DeleteMe)

	admin := r.Group("", middleware.RestrictTo(model.RoleAdmin))
	admin.GET("", h.List)
	admin.POST("", h.Create)
	admin.GET("/:id", h.Get)
	admin.PATCH("/:id", h.Update)
	admin.DELETE("/:id", h.Delete)
}
