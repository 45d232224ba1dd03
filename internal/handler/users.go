package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tour-booking/internal/apperror"
	"github.com/iliyamo/tour-booking/internal/middleware"
	"github.com/iliyamo/tour-booking/internal/model"
	"github.com/iliyamo/tour-booking/internal/query"
	"github.com/iliyamo/tour-booking/internal/repository"
	"github.com/iliyamo/tour-booking/internal/upload"
)

// Messages returned by the /users endpoints.
const (
	MsgNoPasswordUpdate = "This route is not for password updates. Please use /update-my-password."
	MsgUseSignup        = "This route is not defined! Please use /signup instead"
)

// UserHandler serves the account endpoints and the admin user CRUD.
type UserHandler struct {
	*Resource[model.User]
	users  repository.Collection[model.User]
	images *upload.ImageStore
}

func NewUserHandler(users repository.Collection[model.User], images *upload.ImageStore, maxLimit int) *UserHandler {
	return &UserHandler{
		Resource: NewResource(users, repository.UserSchema.Meta, Options[model.User]{
			Base:       func(echo.Context) []query.Filter { return []query.Filter{activeUsers()} },
			BeforeSave: normalizeUser,
			MaxLimit:   maxLimit,
		}),
		users:  users,
		images: images,
	}
}

// normalizeUser keeps stored emails lower case so lookups and the unique
// index agree with login.
func normalizeUser(_ echo.Context, u, _ *model.User) error {
	u.Email = normalizeEmail(u.Email)
	return nil
}

func normalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

// activeUsers hides deactivated accounts from every user read.
func activeUsers() query.Filter { return query.Where("active", query.OpEq, "true") }

// Create is not offered; accounts come from signup.
func (h *UserHandler) Create(c echo.Context) error {
	return apperror.New(http.StatusInternalServerError, MsgUseSignup)
}

func (h *UserHandler) Me(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return echo.ErrUnauthorized
	}
	return h.get(c, u.ID)
}

type updateMeReq struct {
	Name            string `json:"name" form:"name"`
	Email           string `json:"email" form:"email"`
	Password        string `json:"password" form:"password"`
	PasswordConfirm string `json:"passwordConfirm" form:"passwordConfirm"`
}

// UpdateMe changes name, email and photo; empty fields are left alone.
// The photo arrives as the multipart file field "photo".
func (h *UserHandler) UpdateMe(c echo.Context) error {
	cur, ok := middleware.CurrentUser(c)
	if !ok {
		return echo.ErrUnauthorized
	}
	var req updateMeReq
	if err := c.Bind(&req); err != nil {
		return err
	}
	if req.Password != "" || req.PasswordConfirm != "" {
		return apperror.New(http.StatusBadRequest, MsgNoPasswordUpdate)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	u, err := h.users.Get(ctx, cur.ID)
	if err != nil {
		return err
	}
	if name := strings.TrimSpace(req.Name); name != "" {
		u.Name = name
	}
	if email := normalizeEmail(req.Email); email != "" {
		u.Email = email
	}
	photo, err := h.savePhoto(c, u.ID)
	if err != nil {
		return err
	}
	if photo != "" {
		u.Photo = photo
	}
	if err := c.Validate(&u); err != nil {
		return err
	}
	if err := h.users.Replace(ctx, &u); err != nil {
		return err
	}
	doc, err := publicDoc(&u)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "success", "data": echo.Map{"user": doc}})
}

func (h *UserHandler) savePhoto(c echo.Context, userID uint64) (string, error) {
	if !strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		return "", nil
	}
	fh, err := c.FormFile("photo")
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil
	}
	if err != nil {
		return "", apperror.Wrap(err, http.StatusBadRequest, "Could not read the uploaded photo.")
	}
	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()
	return h.images.Save("users", fmt.Sprintf("user-%d", userID), f)
}

// DeleteMe deactivates the caller's account.  The document stays but every
// read treats it as missing.
func (h *UserHandler) DeleteMe(c echo.Context) error {
	cur, ok := middleware.CurrentUser(c)
	if !ok {
		return echo.ErrUnauthorized
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	u, err := h.users.Get(ctx, cur.ID)
	if err != nil {
		return err
	}
	u.Active = false
	if err := h.users.Replace(ctx, &u); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
