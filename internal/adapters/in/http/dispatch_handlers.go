package http

import (
	"errors"
	"net/http"
	"time"

	"routesync/internal/core/application/usecases/commands"
	"routesync/internal/core/application/usecases/queries"
	"routesync/internal/core/domain/model/kernel"
	"routesync/internal/core/domain/model/order"
	"routesync/internal/core/domain/model/route"
	"routesync/internal/pkg/errs"

	"github.com/labstack/echo/v4"
)

// CreateOrder handles POST /api/v1/dispatch/orders - places a pending order at
// the end of a driver's route for a day.
func (s *Server) CreateOrder(ctx echo.Context) error {
	var req NewOrder
	if err := ctx.Bind(&req); err != nil {
		return badRequest(ctx, "invalid request body")
	}

	cmd, err := newCreateOrderCommand(req)
	if err != nil {
		return s.fail(ctx, err)
	}
	orderID, err := s.createOrderHandler.Handle(ctx.Request().Context(), cmd)
	if err != nil {
		return s.fail(ctx, err)
	}
	return ctx.JSON(http.StatusCreated, Created{ID: orderID.String()})
}

func newCreateOrderCommand(req NewOrder) (commands.CreateOrderCommand, error) {
	typ, typErr := order.ParseType(req.Type)

	var location *kernel.GeoPoint
	var locErr error
	switch {
	case req.Customer.Latitude != nil && req.Customer.Longitude != nil:
		p, err := kernel.NewGeoPoint(*req.Customer.Latitude, *req.Customer.Longitude)
		location, locErr = &p, err
	case req.Customer.Latitude != nil || req.Customer.Longitude != nil:
		locErr = errs.NewValueIsInvalidError("customer location: latitude and longitude go together")
	}
	customer, custErr := order.NewCustomer(req.Customer.Name, req.Customer.Address, req.Customer.Contact, location)

	var window order.TimeWindow
	var windowErr error
	switch {
	case req.WindowStart != nil:
		var end time.Time
		if req.WindowEnd != nil {
			end = *req.WindowEnd
		}
		window, windowErr = order.NewTimeWindow(*req.WindowStart, end)
	case req.WindowEnd != nil:
		windowErr = errs.NewValueIsRequiredError("window_start")
	}

	items := make([]order.Item, 0, len(req.Items))
	var itemErrs []error
	for _, it := range req.Items {
		item, err := order.NewItem(it.ProductName, it.Quantity)
		if err != nil {
			itemErrs = append(itemErrs, err)
			continue
		}
		items = append(items, item)
	}

	driverID, driverErr := kernel.UUIDFromString(req.DriverID)
	if driverErr != nil {
		driverErr = errs.NewValueIsInvalidErrorWithCause("driver_id", driverErr)
	}
	date, dateErr := time.Parse(route.DateLayout, req.Date)
	if dateErr != nil {
		dateErr = errs.NewValueIsInvalidErrorWithCause("date", dateErr)
	}

	if err := errors.Join(append(itemErrs, typErr, locErr, custErr, windowErr, driverErr, dateErr)...); err != nil {
		return commands.CreateOrderCommand{}, err
	}

	return commands.NewCreateOrderCommand(order.Attributes{
		ID:                  kernel.NewUUID(),
		Number:              req.Number,
		Type:                typ,
		Customer:            customer,
		Window:              window,
		Items:               items,
		SpecialInstructions: req.SpecialInstructions,
	}, driverID, date)
}

// CancelOrder handles POST /api/v1/dispatch/orders/{orderId}/cancel.
func (s *Server) CancelOrder(ctx echo.Context) error {
	orderID, err := parseOrderID(ctx)
	if err != nil {
		return badRequest(ctx, "invalid order id")
	}

	cmd, err := commands.NewCancelOrderCommand(orderID)
	if err != nil {
		return s.fail(ctx, err)
	}
	cancelled, err := s.cancelOrderHandler.Handle(ctx.Request().Context(), cmd)
	if err != nil {
		return s.fail(ctx, err)
	}
	return ctx.JSON(http.StatusOK, fromDomainOrder(cancelled))
}

// GetDeliveryRecord handles GET /api/v1/dispatch/orders/{orderId}/delivery.
func (s *Server) GetDeliveryRecord(ctx echo.Context) error {
	orderID, err := parseOrderID(ctx)
	if err != nil {
		return badRequest(ctx, "invalid order id")
	}

	query, err := queries.NewGetDeliveryRecordQuery(orderID)
	if err != nil {
		return s.fail(ctx, err)
	}
	record, err := s.getDeliveryRecordHandler.Handle(ctx.Request().Context(), query)
	if err != nil {
		return s.fail(ctx, err)
	}
	return ctx.JSON(http.StatusOK, toDeliveryRecord(record))
}
