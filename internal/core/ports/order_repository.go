// Package ports defines the contracts between the core and its adapters:
// transactional repositories over the system of record, the backend facade
// used by driver sessions, asset storage, and change notification transports.
package ports

import (
	"context"

	"routesync/internal/core/domain/model/kernel"
	"routesync/internal/core/domain/model/order"
	"routesync/internal/core/domain/model/scan"
)

// OrderRepository is the persistence contract for orders.
type OrderRepository interface {
	// Add persists a new order together with its canonical QR fingerprint.
	Add(ctx context.Context, aggregate *order.Order, fingerprint string) error

	// Get retrieves an order by id.
	Get(ctx context.Context, id kernel.UUID) (*order.Order, error)

	// GetForUpdate retrieves an order and locks its row until the transaction ends.
	GetForUpdate(ctx context.Context, id kernel.UUID) (*order.Order, error)

	// GetByNumber retrieves an order by its human-facing number along with the
	// fingerprint stored for it.
	GetByNumber(ctx context.Context, number string) (*order.Order, scan.Fingerprint, error)

	// GetMany retrieves the given orders. Missing ids are skipped.
	GetMany(ctx context.Context, ids []kernel.UUID) ([]*order.Order, error)

	// CompareAndSetStatus writes to only if the stored status is still from.
	// swapped is false when another writer got there first.
	CompareAndSetStatus(ctx context.Context, id kernel.UUID, from, to order.Status) (swapped bool, err error)
}
