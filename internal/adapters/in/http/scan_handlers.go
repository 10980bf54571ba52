package http

import (
	"net/http"

	"routesync/internal/core/application/usecases/commands"

	"github.com/labstack/echo/v4"
)

// Scan handles POST /api/v1/scans - activates the order a QR label belongs to.
func (s *Server) Scan(ctx echo.Context) error {
	var req ScanRequest
	if err := ctx.Bind(&req); err != nil {
		return badRequest(ctx, "invalid request body")
	}
	sess, err := s.currentSession(ctx)
	if err != nil {
		return s.fail(ctx, err)
	}

	cmd, err := commands.NewActivateOrderCommand(req.Payload)
	if err != nil {
		return s.fail(ctx, err)
	}
	activated, err := sess.ActivateOrder().Handle(ctx.Request().Context(), cmd)
	if err != nil {
		return s.fail(ctx, err)
	}
	return ctx.JSON(http.StatusOK, fromDomainOrder(activated))
}

// ListScans handles GET /api/v1/scans - the session's scan history.
func (s *Server) ListScans(ctx echo.Context) error {
	sess, err := s.currentSession(ctx)
	if err != nil {
		return s.fail(ctx, err)
	}
	return ctx.JSON(http.StatusOK, toScanEvents(sess.ScanEvents()))
}
