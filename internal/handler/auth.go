package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tour-booking/internal/auth"
	"github.com/iliyamo/tour-booking/internal/config"
	"github.com/iliyamo/tour-booking/internal/middleware"
)

// RefreshCookie carries the refresh token.  It is http-only and never
// appears in a response body.
const RefreshCookie = "refresh_jwt"

// ResetPath is where mailed reset links point, followed by the raw token.
const ResetPath = "/api/v1/auth/reset-password/"

// AuthHandler serves the /auth endpoints.
type AuthHandler struct {
	cfg config.Config
	svc *auth.Service
}

func NewAuthHandler(cfg config.Config, svc *auth.Service) *AuthHandler {
	return &AuthHandler{cfg: cfg, svc: svc}
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type forgotReq struct {
	Email string `json:"email" validate:"required,email"`
}

func (h *AuthHandler) Signup(c echo.Context) error {
	var in auth.SignupInput
	if err := c.Bind(&in); err != nil {
		return err
	}
	if err := c.Validate(&in); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	s, err := h.svc.Signup(ctx, in, h.cfg.PublicURL+"/me")
	if err != nil {
		return err
	}
	return h.sendSession(c, http.StatusCreated, s)
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	s, err := h.svc.Login(ctx, req.Email, req.Password)
	if err != nil {
		return err
	}
	return h.sendSession(c, http.StatusOK, s)
}

// Logout expires both cookies.  Tokens already handed out stay valid until
// they expire.
func (h *AuthHandler) Logout(c echo.Context) error {
	for _, name := range []string{RefreshCookie, middleware.AccessCookie} {
		c.SetCookie(&http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			Expires:  time.Unix(0, 0),
			MaxAge:   -1,
			HttpOnly: true,
			SameSite: http.SameSiteStrictMode,
			Secure:   h.cfg.IsProduction(),
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "success", "message": "Logged out successfully."})
}

func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req forgotReq
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	err := h.svc.ForgotPassword(ctx, req.Email, func(token string) string {
		return h.cfg.PublicURL + ResetPath + token
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "success", "message": "Token sent to email!"})
}

func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var in auth.ResetPasswordInput
	if err := c.Bind(&in); err != nil {
		return err
	}
	if err := c.Validate(&in); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	s, err := h.svc.ResetPassword(ctx, c.Param("token"), in)
	if err != nil {
		return err
	}
	return h.sendSession(c, http.StatusOK, s)
}

// RefreshToken issues a new access token from the refresh cookie.  The
// refresh token is not rotated.
func (h *AuthHandler) RefreshToken(c echo.Context) error {
	var raw string
	if ck, err := c.Cookie(RefreshCookie); err == nil {
		raw = ck.Value
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	access, u, err := h.svc.Refresh(ctx, raw)
	if err != nil {
		return err
	}
	h.setAccessCookie(c, access)
	doc, err := publicDoc(u)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"status": "success",
		"token":  access,
		"data":   echo.Map{"user": doc},
	})
}

func (h *AuthHandler) UpdatePassword(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return echo.ErrUnauthorized
	}
	var in auth.UpdatePasswordInput
	if err := c.Bind(&in); err != nil {
		return err
	}
	if err := c.Validate(&in); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	s, err := h.svc.UpdatePassword(ctx, u.ID, in)
	if err != nil {
		return err
	}
	return h.sendSession(c, http.StatusOK, s)
}

// sendSession sets the refresh cookie and returns the access token with
// the user.
func (h *AuthHandler) sendSession(c echo.Context, status int, s auth.Session) error {
	ttl := time.Duration(h.cfg.CookieTTLDays) * 24 * time.Hour
	if ttl <= 0 {
		ttl = h.svc.Tokens().RefreshTTL()
	}
	c.SetCookie(&http.Cookie{
		Name:     RefreshCookie,
		Value:    s.Refresh,
		Path:     "/",
		Expires:  time.Now().Add(ttl),
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Secure:   h.cfg.IsProduction(),
	})
	h.setAccessCookie(c, s.Access)
	doc, err := publicDoc(s.User)
	if err != nil {
		return err
	}
	return c.JSON(status, echo.Map{
		"status": "success",
		"token":  s.Access,
		"data":   echo.Map{"user": doc},
	})
}

func (h *AuthHandler) setAccessCookie(c echo.Context, token string) {
	c.SetCookie(&http.Cookie{
		Name:     middleware.AccessCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Secure:   h.cfg.IsProduction(),
	})
}
