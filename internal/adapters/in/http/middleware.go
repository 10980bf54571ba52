package http

import (
	"net/http"

	"routesync/internal/core/application/session"
	"routesync/internal/core/domain/model/kernel"

	"github.com/labstack/echo/v4"
)

// DriverHeader carries the authenticated driver's id.
const DriverHeader = "X-Driver-ID"

// DriverAuth puts the driver named by DriverHeader on the request context.
// Requests without a valid id are rejected.
func DriverAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := c.Request().Header.Get(DriverHeader)
			if raw == "" {
				return c.JSON(http.StatusUnauthorized, Error{
					Code:    http.StatusUnauthorized,
					Message: "missing " + DriverHeader + " header",
				})
			}
			driverID, err := kernel.UUIDFromString(raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, Error{
					Code:    http.StatusUnauthorized,
					Message: "invalid " + DriverHeader + " header",
				})
			}

			req := c.Request()
			c.SetRequest(req.WithContext(session.WithDriverID(req.Context(), driverID)))
			return next(c)
		}
	}
}
