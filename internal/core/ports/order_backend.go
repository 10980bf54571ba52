package ports

import (
	"context"
	"time"

	"routesync/internal/core/domain/model/delivery"
	"routesync/internal/core/domain/model/driver"
	"routesync/internal/core/domain/model/kernel"
	"routesync/internal/core/domain/model/order"
	"routesync/internal/core/domain/model/route"
	"routesync/internal/core/domain/model/scan"
)

// OrderBackend is the system of record as seen by a driver session.
//
// Implementations return errs.ObjectNotFoundError for unknown ids and wrap
// connectivity failures in errs.TransientError.
type OrderBackend interface {
	FindOrder(ctx context.Context, id kernel.UUID) (*order.Order, error)

	// FindOrderByNumber returns the order and its stored QR fingerprint.
	FindOrderByNumber(ctx context.Context, number string) (*order.Order, scan.Fingerprint, error)

	ListPackages(ctx context.Context, driverID kernel.UUID, date time.Time) ([]*route.Package, error)

	// ListPackageOrders returns the package's orders in delivery sequence.
	ListPackageOrders(ctx context.Context, packageID kernel.UUID) ([]*order.Order, error)

	// CompareAndSetStatus moves id from -> to if the stored status is still from.
	// It always reports the status stored after the attempt.
	CompareAndSetStatus(ctx context.Context, id kernel.UUID, from, to order.Status) (actual order.Status, swapped bool, err error)

	// CompleteDelivery sets the order to delivered and stores the record in one
	// transaction. alreadyDelivered is true when the order was delivered before
	// the call; nothing is written in that case.
	CompleteDelivery(ctx context.Context, record delivery.Record) (alreadyDelivered bool, err error)

	FindDriver(ctx context.Context, id kernel.UUID) (*driver.Driver, error)
}
