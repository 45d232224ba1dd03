package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tour-booking/internal/apperror"
	"github.com/iliyamo/tour-booking/internal/model"
)

// AccessCookie carries the access token for browser clients.
const AccessCookie = "access_jwt"

// Resolver turns an access token into the user it was issued to.
type Resolver interface {
	Resolve(ctx context.Context, accessToken string) (model.User, error)
}

// Protect rejects requests without a valid access token with 401.  The
// token is read from the Authorization header first, then from the
// access_jwt cookie.  On success the user is stored in the context.
func Protect(r Resolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			u, err := r.Resolve(c.Request().Context(), bearerToken(c))
			if err != nil {
				return err
			}
			setUser(c, u)
			return next(c)
		}
	}
}

// IsLoggedIn resolves the caller like Protect but never rejects: without a
// usable token the request simply continues anonymously.
func IsLoggedIn(r Resolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if raw := bearerToken(c); raw != "" {
				if u, err := r.Resolve(c.Request().Context(), raw); err == nil {
					setUser(c, u)
				}
			}
			return next(c)
		}
	}
}

// RestrictTo allows only the listed roles.  It must run after Protect; a
// request that reaches it unauthenticated still gets 401, never 403.
func RestrictTo(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			u, ok := CurrentUser(c)
			if !ok {
				return apperror.New(http.StatusUnauthorized, "You are not logged in! Please log in to get access.")
			}
			if !allowed[u.Role] {
				return apperror.New(http.StatusForbidden, "You do not have the permission to perform this action.")
			}
			return next(c)
		}
	}
}

func bearerToken(c echo.Context) string {
	if h := c.Request().Header.Get(echo.HeaderAuthorization); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if ck, err := c.Cookie(AccessCookie); err == nil {
		return ck.Value
	}
	return ""
}
