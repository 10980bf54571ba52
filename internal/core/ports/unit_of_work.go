package ports

import (
	"context"
)

// UnitOfWorkFactory creates a fresh UnitOfWork per operation.
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}

// UnitOfWork is a transaction boundary over the system of record.
// Repositories obtained after Begin are bound to the transaction.
type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	OrderRepository() OrderRepository
	PackageRepository() PackageRepository
	DeliveryRepository() DeliveryRepository
	DriverRepository() DriverRepository
}
