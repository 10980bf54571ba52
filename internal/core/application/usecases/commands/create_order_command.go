package commands

import (
	"errors"
	"time"

	"routesync/internal/core/domain/model/kernel"
	"routesync/internal/core/domain/model/order"
	"routesync/internal/pkg/errs"
	"routesync/internal/pkg/guard"
)

var ErrCreateOrderCommandIsNotConstructed = errors.New(
	"CreateOrderCommand must be created via NewCreateOrderCommand constructor",
)

// CreateOrderCommand places a new order at the end of a driver's route for one day.
//
// Example:
//
//	cmd, err := NewCreateOrderCommand(order.Attributes{
//	    ID:       kernel.NewUUID(),
//	    Number:   "ORD-100",
//	    Type:     order.Dropoff,
//	    Customer: customer,
//	}, driverID, time.Now())
type CreateOrderCommand struct {
	details  order.Attributes
	driverID kernel.UUID
	date     time.Time

	guard guard.ConstructorGuard
}

// NewCreateOrderCommand validates the order details; the status in details is ignored.
func NewCreateOrderCommand(details order.Attributes, driverID kernel.UUID, date time.Time) (CreateOrderCommand, error) {
	details.Status = order.Pending
	if _, err := order.RestoreOrder(details); err != nil {
		return CreateOrderCommand{}, err
	}

	var dateErr error
	if date.IsZero() {
		dateErr = errs.NewValueIsRequiredError("route date")
	}
	if err := errors.Join(driverID.Validate(), dateErr); err != nil {
		return CreateOrderCommand{}, err
	}

	return CreateOrderCommand{
		details:  details,
		driverID: driverID,
		date:     date,
		guard:    guard.NewConstructorGuard(),
	}, nil
}

func (c CreateOrderCommand) Validate() error {
	return c.guard.Validate(ErrCreateOrderCommandIsNotConstructed)
}

func (c CreateOrderCommand) Details() order.Attributes { return c.details }
func (c CreateOrderCommand) DriverID() kernel.UUID     { return c.driverID }
func (c CreateOrderCommand) Date() time.Time           { return c.date }
