package apperror

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Handler returns the echo HTTPErrorHandler.  Development responses also
// carry the stack and the raw error; otherwise non-operational errors are
// logged and reduced to MsgUnexpected.
func Handler(log *zap.Logger, development bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		e := Translate(err)

		fields := []zap.Field{
			zap.Error(err),
			zap.Int("status", e.Status),
			zap.String("method", c.Request().Method),
			zap.String("path", c.Request().URL.Path),
			zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
		}
		switch {
		case !e.Operational:
			log.Error("unexpected error", fields...)
		case e.Status >= http.StatusInternalServerError:
			log.Warn("request failed", fields...)
		default:
			log.Debug("request rejected", fields...)
		}

		body := echo.Map{"status": "error", "message": e.Message}
		if development {
			body["stack"] = e.Stack()
			body["error"] = err.Error()
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(e.Status)
		} else {
			werr = c.JSON(e.Status, body)
		}
		if werr != nil {
			log.Error("write error response", zap.Error(werr))
		}
	}
}
