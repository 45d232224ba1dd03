package middleware

// identity.go holds the context accessors shared by the auth gate, the
// rate limiter and the handlers.

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tour-booking/internal/model"
)

const userKey = "user"

func setUser(c echo.Context, u model.User) {
	c.Set(userKey, u)
	c.Set("user_id", strconv.FormatUint(u.ID, 10))
	c.Set("role", u.Role)
}

// CurrentUser returns the user resolved by Protect or IsLoggedIn.
func CurrentUser(c echo.Context) (model.User, bool) {
	u, ok := c.Get(userKey).(model.User)
	return u, ok
}

// userID returns the caller's id as a string, or "guest".
func userID(c echo.Context) string {
	if v, ok := c.Get("user_id").(string); ok && v != "" {
		return v
	}
	return "guest"
}
