package ports

import (
	"context"
	"time"

	"routesync/internal/core/domain/model/delivery"
	"routesync/internal/core/domain/model/driver"
	"routesync/internal/core/domain/model/kernel"
	"routesync/internal/core/domain/model/route"
)

// PackageRepository is the persistence contract for driver packages and their
// ordered order links.
type PackageRepository interface {
	Add(ctx context.Context, pkg *route.Package) error
	Get(ctx context.Context, id kernel.UUID) (*route.Package, error)

	// ListByDriverAndDate returns the driver's packages for one calendar day,
	// oldest first.
	ListByDriverAndDate(ctx context.Context, driverID kernel.UUID, date time.Time) ([]*route.Package, error)

	// AppendOrder adds the order at the end of the package's sequence. An
	// order already on another package for the same date is rejected.
	AppendOrder(ctx context.Context, packageID, orderID kernel.UUID) error
}

// DeliveryRepository stores delivery records, at most one per order.
type DeliveryRepository interface {
	Add(ctx context.Context, record delivery.Record) error
	Get(ctx context.Context, orderID kernel.UUID) (delivery.Record, error)
}

// DriverRepository stores drivers.
type DriverRepository interface {
	Add(ctx context.Context, d *driver.Driver) error
	Get(ctx context.Context, id kernel.UUID) (*driver.Driver, error)
}
