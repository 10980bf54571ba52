package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"routesync/internal/core/application/session"
	"routesync/internal/core/application/usecases/queries"
	"routesync/internal/core/domain/model/kernel"

	"github.com/labstack/echo/v4"
	"github.com/oapi-codegen/runtime"
	"github.com/oapi-codegen/runtime/types"
)

const keepAliveInterval = 25 * time.Second

// GetRoute handles GET /api/v1/route - opens the driver's session for the
// requested day (today when date is omitted) and returns the route.
func (s *Server) GetRoute(ctx echo.Context) error {
	var date *types.Date
	if err := runtime.BindQueryParameter("form", true, false, "date", ctx.QueryParams(), &date); err != nil {
		return badRequest(ctx, "invalid date: "+err.Error())
	}
	day := s.now().UTC()
	if date != nil {
		day = date.Time
	}

	reqCtx := ctx.Request().Context()
	driverID, ok := s.sessionCtx.CurrentDriverID(reqCtx)
	if !ok {
		return s.fail(ctx, session.ErrNoDriver)
	}
	sess, err := s.sessions.Open(reqCtx, driverID, day)
	if err != nil {
		return s.fail(ctx, err)
	}

	resp, err := sess.GetRoute().Handle(reqCtx, queries.NewGetRouteQuery())
	if err != nil {
		return s.fail(ctx, err)
	}
	return ctx.JSON(http.StatusOK, toRoute(resp))
}

// GetOrder handles GET /api/v1/orders/{orderId} - order detail from the session.
func (s *Server) GetOrder(ctx echo.Context) error {
	orderID, err := parseOrderID(ctx)
	if err != nil {
		return badRequest(ctx, "invalid order id")
	}
	sess, err := s.currentSession(ctx)
	if err != nil {
		return s.fail(ctx, err)
	}

	query, err := queries.NewGetOrderQuery(orderID)
	if err != nil {
		return s.fail(ctx, err)
	}
	resp, err := sess.GetOrder().Handle(ctx.Request().Context(), query)
	if err != nil {
		return s.fail(ctx, err)
	}
	return ctx.JSON(http.StatusOK, OrderDetail{PackageID: resp.PackageID.String(), Order: toOrder(resp.Order)})
}

// RefreshRoute handles POST /api/v1/route/refresh - re-lists and refreshes
// the route in the background.
func (s *Server) RefreshRoute(ctx echo.Context) error {
	sess, err := s.currentSession(ctx)
	if err != nil {
		return s.fail(ctx, err)
	}
	sess.Refresh()

	stale := sess.Stale()
	resp := RefreshAccepted{StalePackages: make([]string, 0, len(stale))}
	for _, id := range stale {
		resp.StalePackages = append(resp.StalePackages, id.String())
	}
	return ctx.JSON(http.StatusAccepted, resp)
}

// EndSession handles DELETE /api/v1/session.
func (s *Server) EndSession(ctx echo.Context) error {
	driverID, ok := s.sessionCtx.CurrentDriverID(ctx.Request().Context())
	if !ok {
		return s.fail(ctx, session.ErrNoDriver)
	}
	if err := s.sessions.End(driverID); err != nil {
		s.logger.Warn("session teardown incomplete", "driver_id", driverID.String(), "error", err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

// RouteEvents handles GET /api/v1/route/events - a server-sent event per
// package snapshot change until the client goes away.
func (s *Server) RouteEvents(ctx echo.Context) error {
	sess, err := s.currentSession(ctx)
	if err != nil {
		return s.fail(ctx, err)
	}

	changed := make(chan kernel.UUID, 64)
	unsubscribe := sess.Store().Subscribe(func(packageID kernel.UUID) {
		select {
		case changed <- packageID:
		default:
		}
	})
	defer unsubscribe()

	w := startEventStream(ctx)
	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	done := ctx.Request().Context().Done()
	for {
		select {
		case <-done:
			return nil
		case packageID := <-changed:
			if err := writeEvent(w, "package", map[string]string{"package_id": packageID.String()}); err != nil {
				return nil
			}
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return nil
			}
			w.Flush()
		}
	}
}

func startEventStream(ctx echo.Context) *echo.Response {
	w := ctx.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	w.Flush()
	return w
}

func writeEvent(w *echo.Response, event string, data any) error {
	body, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, body); err != nil {
		return err
	}
	w.Flush()
	return nil
}
