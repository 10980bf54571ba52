package http

import (
	"context"
	"errors"
	"net/http"

	"routesync/internal/core/application/session"
	"routesync/internal/core/domain/model/driver"
	"routesync/internal/pkg/errs"

	"github.com/labstack/echo/v4"
)

// statusOf maps an error class to its HTTP status.
func statusOf(err error) int {
	switch {
	case errors.Is(err, session.ErrNoDriver):
		return http.StatusUnauthorized
	case errors.Is(err, driver.ErrDriverIsInactive):
		return http.StatusForbidden
	case errors.Is(err, errs.ErrObjectNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrIntegrity):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errs.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, errs.ErrValueIsRequired),
		errors.Is(err, errs.ErrValueIsInvalid),
		errors.Is(err, errs.ErrValueIsOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrTransient),
		errors.Is(err, session.ErrManagerClosed),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(ctx echo.Context, err error) error {
	body := s.errorBody(ctx, err)
	return ctx.JSON(body.Code, body)
}

// errorBody logs unclassified errors and hides their text from the client.
func (s *Server) errorBody(ctx echo.Context, err error) Error {
	code := statusOf(err)
	if code == http.StatusInternalServerError {
		s.logger.Error("request failed", "method", ctx.Request().Method, "path", ctx.Path(), "error", err)
		return Error{Code: code, Message: http.StatusText(code)}
	}
	return Error{Code: code, Message: err.Error()}
}

func badRequest(ctx echo.Context, msg string) error {
	return ctx.JSON(http.StatusBadRequest, Error{Code: http.StatusBadRequest, Message: msg})
}
