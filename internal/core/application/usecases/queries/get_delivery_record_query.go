package queries

import (
	"errors"
	"time"

	"routesync/internal/core/domain/model/kernel"
	"routesync/internal/pkg/guard"
)

var ErrGetDeliveryRecordQueryIsNotConstructed = errors.New(
	"GetDeliveryRecordQuery must be created via NewGetDeliveryRecordQuery constructor",
)

// GetDeliveryRecordQuery retrieves the proof of delivery of an order for the dispatcher.
//
// Example:
//
//	query, err := NewGetDeliveryRecordQuery(orderID)
//	if err != nil {
//	    return err
//	}
//	record, err := handler.Handle(ctx, query)
//	if errors.Is(err, errs.ErrObjectNotFound) {
//	    // not delivered yet
//	}
type GetDeliveryRecordQuery struct {
	orderID kernel.UUID

	guard guard.ConstructorGuard
}

func NewGetDeliveryRecordQuery(orderID kernel.UUID) (GetDeliveryRecordQuery, error) {
	if err := orderID.Validate(); err != nil {
		return GetDeliveryRecordQuery{}, err
	}
	return GetDeliveryRecordQuery{orderID: orderID, guard: guard.NewConstructorGuard()}, nil
}

func (q GetDeliveryRecordQuery) Validate() error {
	return q.guard.Validate(ErrGetDeliveryRecordQueryIsNotConstructed)
}

func (q GetDeliveryRecordQuery) OrderID() kernel.UUID {
	return q.orderID
}

type GetDeliveryRecordQueryResponse struct {
	OrderID       kernel.UUID
	OrderNumber   string
	Status        string
	SignatureName string
	Notes         string
	PhotoURLs     []string
	CompletedAt   time.Time
}
