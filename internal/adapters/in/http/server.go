// Package http is the driver app's and the dispatcher's REST surface.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"routesync/internal/core/application/session"
	"routesync/internal/core/application/usecases/commands"
	"routesync/internal/core/application/usecases/queries"
	"routesync/internal/core/domain/model/kernel"
	"routesync/internal/core/domain/model/order"
	"routesync/internal/core/ports"
	"routesync/internal/pkg/metrics"

	"github.com/labstack/echo/v4"
)

// Dispatcher-side use cases.
type (
	OrderCreator interface {
		Handle(ctx context.Context, cmd commands.CreateOrderCommand) (kernel.UUID, error)
	}

	OrderCanceller interface {
		Handle(ctx context.Context, cmd commands.CancelOrderCommand) (*order.Order, error)
	}

	DeliveryRecordReader interface {
		Handle(ctx context.Context, query queries.GetDeliveryRecordQuery) (queries.GetDeliveryRecordQueryResponse, error)
	}
)

// Server serves the HTTP API. Session endpoints resolve the driver's session
// per request; dispatcher endpoints work without one.
type Server struct {
	sessions   *session.Manager
	sessionCtx ports.SessionContext

	// Dispatcher handlers
	createOrderHandler       OrderCreator
	cancelOrderHandler       OrderCanceller
	getDeliveryRecordHandler DeliveryRecordReader

	assets  ports.AssetStorage
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

func NewServer(
	sessions *session.Manager,
	createOrderHandler OrderCreator,
	cancelOrderHandler OrderCanceller,
	getDeliveryRecordHandler DeliveryRecordReader,
	assets ports.AssetStorage,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		sessions:                 sessions,
		sessionCtx:               session.RequestContext{},
		createOrderHandler:       createOrderHandler,
		cancelOrderHandler:       cancelOrderHandler,
		getDeliveryRecordHandler: getDeliveryRecordHandler,
		assets:                   assets,
		metrics:                  m,
		logger:                   logger.With("component", "HTTPServer"),
		now:                      time.Now,
	}
}

// Register mounts every route on e.
func (s *Server) Register(e *echo.Echo) error {
	e.GET("/health", s.Health)
	e.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	e.GET("/assets/*", s.GetAsset)
	if err := registerDocs(e); err != nil {
		return err
	}

	api := e.Group("/api/v1")

	driver := api.Group("", DriverAuth())
	driver.GET("/route", s.GetRoute)
	driver.GET("/route/events", s.RouteEvents)
	driver.POST("/route/refresh", s.RefreshRoute)
	driver.GET("/orders/:orderId", s.GetOrder)
	driver.POST("/orders/:orderId/delivery", s.CompleteDelivery)
	driver.POST("/scans", s.Scan)
	driver.GET("/scans", s.ListScans)
	driver.DELETE("/session", s.EndSession)

	dispatch := api.Group("/dispatch")
	dispatch.POST("/orders", s.CreateOrder)
	dispatch.POST("/orders/:orderId/cancel", s.CancelOrder)
	dispatch.GET("/orders/:orderId/delivery", s.GetDeliveryRecord)

	return nil
}

// Health handles GET /health.
func (s *Server) Health(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Healthy")
}

// GetAsset handles GET /assets/* - serves stored delivery photos.
func (s *Server) GetAsset(ctx echo.Context) error {
	asset, err := s.assets.Download(ctx.Request().Context(), ctx.Param("*"))
	if err != nil {
		return s.fail(ctx, err)
	}
	ctx.Response().Header().Set("Cache-Control", "public, max-age=86400, immutable")
	return ctx.Blob(http.StatusOK, asset.ContentType, asset.Data)
}

func (s *Server) currentSession(ctx echo.Context) (*session.Session, error) {
	return s.sessions.Current(ctx.Request().Context(), s.sessionCtx)
}

func parseOrderID(ctx echo.Context) (kernel.UUID, error) {
	return kernel.UUIDFromString(ctx.Param("orderId"))
}
