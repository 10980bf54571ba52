package commands

import (
	"errors"
	"slices"

	"routesync/internal/core/domain/model/delivery"
	"routesync/internal/core/domain/model/kernel"
	"routesync/internal/pkg/guard"
)

var ErrCompleteDeliveryCommandIsNotConstructed = errors.New(
	"CompleteDeliveryCommand must be created via NewCompleteDeliveryCommand constructor",
)

// CompleteDeliveryCommand carries the proof a driver collected at the door.
//
// Signature and photo count are checked by the handler, after it has made
// sure the order is not delivered already.
type CompleteDeliveryCommand struct {
	orderID       kernel.UUID
	signatureName string
	notes         string
	photos        []delivery.Photo

	guard guard.ConstructorGuard
}

func NewCompleteDeliveryCommand(
	orderID kernel.UUID, signatureName, notes string, photos []delivery.Photo,
) (CompleteDeliveryCommand, error) {
	if err := orderID.Validate(); err != nil {
		return CompleteDeliveryCommand{}, err
	}
	return CompleteDeliveryCommand{
		orderID:       orderID,
		signatureName: signatureName,
		notes:         notes,
		photos:        slices.Clone(photos),
		guard:         guard.NewConstructorGuard(),
	}, nil
}

func (c CompleteDeliveryCommand) Validate() error {
	return c.guard.Validate(ErrCompleteDeliveryCommandIsNotConstructed)
}

func (c CompleteDeliveryCommand) OrderID() kernel.UUID     { return c.orderID }
func (c CompleteDeliveryCommand) SignatureName() string    { return c.signatureName }
func (c CompleteDeliveryCommand) Notes() string            { return c.notes }
func (c CompleteDeliveryCommand) Photos() []delivery.Photo { return slices.Clone(c.photos) }
