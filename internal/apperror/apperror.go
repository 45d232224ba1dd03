// Package apperror maps failures from storage, validation and token
// parsing onto the {status, message} envelope returned by the API.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tour-booking/internal/query"
	"github.com/iliyamo/tour-booking/internal/repository"
	"github.com/iliyamo/tour-booking/internal/validation"
)

// Messages shared with the auth middleware.
const (
	MsgInvalidToken = "Invalid token, Please log in again!"
	MsgExpiredToken = "Your token has expired, Please log in again!"
	MsgUnexpected   = "Something went wrong!"
	MsgNotFound     = "No document found with that ID"
)

// Error is a failure with an HTTP status.  Operational errors carry a
// message that is safe to show to clients; anything else is reduced to
// MsgUnexpected outside development.
type Error struct {
	Status      int
	Message     string
	Operational bool
	cause       error
	stack       []byte
}

// New returns an operational error.
func New(status int, message string) *Error {
	return &Error{Status: status, Message: message, Operational: true, stack: debug.Stack()}
}

// Newf is New with a formatted message.
func Newf(status int, format string, args ...any) *Error {
	return New(status, fmt.Sprintf(format, args...))
}

// Wrap attaches cause to an operational error so it is logged alongside
// the client message.
func Wrap(cause error, status int, message string) *Error {
	e := New(status, message)
	e.cause = cause
	return e
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// Stack returns the goroutine stack captured when the error was built.
func (e *Error) Stack() string { return string(e.stack) }

// Translate classifies err.  It never returns nil for a non-nil err.
func Translate(err error) *Error {
	var (
		appErr   *Error
		castErr  *repository.CastError
		dupErr   *repository.DuplicateError
		fieldErr *repository.FieldError
		queryErr *query.Error
		valErrs  validator.ValidationErrors
		httpErr  *echo.HTTPError
	)
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.As(err, &castErr):
		return Wrap(err, http.StatusBadRequest, castErr.Error())
	case errors.As(err, &dupErr):
		return Wrap(err, http.StatusBadRequest, dupErr.Error())
	case errors.As(err, &valErrs):
		return Wrap(err, http.StatusBadRequest, "Invalid input data. "+strings.Join(validation.Messages(valErrs), ". "))
	case errors.As(err, &fieldErr):
		return Wrap(err, http.StatusBadRequest, "Invalid input data. "+fieldErr.Error())
	case errors.As(err, &queryErr):
		return Wrap(err, http.StatusBadRequest, queryErr.Error())
	case errors.Is(err, repository.ErrNotFound):
		return Wrap(err, http.StatusNotFound, MsgNotFound)
	case errors.Is(err, repository.ErrForbidden):
		return Wrap(err, http.StatusForbidden, "You do not have the permission to perform this action.")
	case errors.Is(err, repository.ErrConflict):
		return Wrap(err, http.StatusConflict, "The document was modified by another request, please retry.")
	case errors.Is(err, jwt.ErrTokenExpired):
		return Wrap(err, http.StatusUnauthorized, MsgExpiredToken)
	case isTokenError(err):
		return Wrap(err, http.StatusUnauthorized, MsgInvalidToken)
	case errors.As(err, &httpErr):
		return fromHTTPError(httpErr)
	}
	return &Error{Status: http.StatusInternalServerError, Message: MsgUnexpected, cause: err, stack: debug.Stack()}
}

func isTokenError(err error) bool {
	for _, target := range []error{
		jwt.ErrTokenMalformed, jwt.ErrTokenSignatureInvalid, jwt.ErrTokenUnverifiable,
		jwt.ErrTokenInvalidClaims, jwt.ErrTokenNotValidYet, jwt.ErrTokenUsedBeforeIssued,
		jwt.ErrTokenRequiredClaimMissing,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// fromHTTPError keeps echo's own errors (unknown route, bad bind, payload
// too large) operational.
func fromHTTPError(he *echo.HTTPError) *Error {
	msg := http.StatusText(he.Code)
	if s, ok := he.Message.(string); ok && s != "" {
		msg = s
	}
	if he.Code == http.StatusNotFound && msg == "Not Found" {
		msg = "Can't find this route on this server!"
	}
	e := Wrap(he.Internal, he.Code, msg)
	e.Operational = he.Code < http.StatusInternalServerError
	return e
}
