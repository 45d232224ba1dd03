package apperror

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/tour-booking/internal/repository"
	"github.com/iliyamo/tour-booking/internal/validation"
)

func TestTranslate(t *testing.T) {
	type signup struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}
	valErr := validation.New().Validate(signup{Email: "nope"})
	require.Error(t, valErr)

	tests := []struct {
		name        string
		err         error
		status      int
		message     string
		operational bool
	}{
		{"malformed id", &repository.CastError{Path: "id", Value: "abc"}, 400, "Invalid id: abc.", true},
		{"duplicate", fmt.Errorf("insert: %w", &repository.DuplicateError{Key: "name", Value: "The Forest Hiker"}), 400,
			"Duplicate field value: The Forest Hiker. Please use another value!", true},
		{"validation", valErr, 400, "Invalid input data. Invalid Email. password is required", true},
		{"unknown field", &repository.FieldError{Field: "secret", Reason: "unknown field"}, 400, "Invalid input data. secret: unknown field", true},
		{"not found", repository.ErrNotFound, 404, MsgNotFound, true},
		{"expired token", fmt.Errorf("parse: %w", jwt.ErrTokenExpired), 401, MsgExpiredToken, true},
		{"bad signature", jwt.ErrTokenSignatureInvalid, 401, MsgInvalidToken, true},
		{"malformed token", jwt.ErrTokenMalformed, 401, MsgInvalidToken, true},
		{"operational", New(http.StatusUnauthorized, "Incorrect email or password"), 401, "Incorrect email or password", true},
		{"echo route", echo.ErrNotFound, 404, "Can't find this route on this server!", true},
		{"unexpected", errors.New("connection reset"), 500, MsgUnexpected, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := Translate(tt.err)
			assert.Equal(t, tt.status, e.Status)
			assert.Equal(t, tt.message, e.Message)
			assert.Equal(t, tt.operational, e.Operational)
		})
	}
}

func serve(t *testing.T, development bool, err error) (int, map[string]any) {
	t.Helper()
	e := echo.New()
	e.HTTPErrorHandler = Handler(zap.NewNop(), development)
	e.GET("/boom", func(c echo.Context) error { return err })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestHandler_ProductionHidesDetail(t *testing.T) {
	code, body := serve(t, false, errors.New("dial tcp 10.0.0.5:3306: connection refused"))
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, map[string]any{"status": "error", "message": MsgUnexpected}, body)
}

func TestHandler_DevelopmentAddsDetail(t *testing.T) {
	code, body := serve(t, true, errors.New("dial tcp 10.0.0.5:3306: connection refused"))
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, "dial tcp 10.0.0.5:3306: connection refused", body["error"])
	assert.NotEmpty(t, body["stack"])
}

func TestHandler_OperationalMessage(t *testing.T) {
	code, body := serve(t, false, New(http.StatusForbidden, "You do not have the permission to perform this action."))
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "You do not have the permission to perform this action.", body["message"])
}
