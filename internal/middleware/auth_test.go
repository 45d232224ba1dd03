package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/iliyamo/tour-booking/internal/apperror"
	"github.com/iliyamo/tour-booking/internal/model"
)

type stubResolver map[string]model.User

func (s stubResolver) Resolve(_ context.Context, token string) (model.User, error) {
	if token == "" {
		return model.User{}, apperror.New(http.StatusUnauthorized, "You are not logged in! Please log in to get access.")
	}
	u, ok := s[token]
	if !ok {
		return model.User{}, apperror.New(http.StatusUnauthorized, "Invalid token. Please log in again!")
	}
	return u, nil
}

var resolver = stubResolver{
	"user-token":  {Meta: model.Meta{ID: 1}, Name: "Jane", Role: model.RoleUser},
	"admin-token": {Meta: model.Meta{ID: 2}, Name: "Ada", Role: model.RoleAdmin},
}

func newEcho() *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = apperror.Handler(zap.NewNop(), false)
	e.GET("/admin/users", func(c echo.Context) error {
		u, _ := CurrentUser(c)
		return c.JSON(http.StatusOK, echo.Map{"caller": u.Name})
	}, Protect(resolver), RestrictTo(model.RoleAdmin))
	e.GET("/unprotected-admin", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, RestrictTo(model.RoleAdmin))
	e.GET("/overview", func(c echo.Context) error {
		if u, ok := CurrentUser(c); ok {
			return c.String(http.StatusOK, "hello "+u.Name)
		}
		return c.String(http.StatusOK, "hello stranger")
	}, IsLoggedIn(resolver))
	return e
}

func do(e *echo.Echo, path string, mutate func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if mutate != nil {
		mutate(req)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func bearer(token string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set(echo.HeaderAuthorization, "Bearer "+token) }
}

func TestProtectAndRestrict(t *testing.T) {
	e := newEcho()

	rec := do(e, "/admin/users", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"status":"error","message":"You are not logged in! Please log in to get access."}`, rec.Body.String())

	rec = do(e, "/admin/users", bearer("forged"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(e, "/admin/users", bearer("user-token"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "You do not have the permission to perform this action.")

	rec = do(e, "/admin/users", bearer("admin-token"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"caller":"Ada"}`, rec.Body.String())
}

func TestProtect_ReadsCookie(t *testing.T) {
	rec := do(newEcho(), "/admin/users", func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: AccessCookie, Value: "admin-token"})
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRestrictTo_WithoutIdentityIsUnauthorized(t *testing.T) {
	rec := do(newEcho(), "/unprotected-admin", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestIsLoggedIn_NeverRejects(t *testing.T) {
	e := newEcho()
	assert.Equal(t, "hello stranger", do(e, "/overview", nil).Body.String())
	assert.Equal(t, "hello stranger", do(e, "/overview", bearer("forged")).Body.String())
	assert.Equal(t, "hello Jane", do(e, "/overview", bearer("user-token")).Body.String())
}
