package postgres

import (
	"context"
	"errors"
	"time"

	"routesync/internal/core/domain/model/delivery"
	"routesync/internal/core/domain/model/driver"
	"routesync/internal/core/domain/model/kernel"
	"routesync/internal/core/domain/model/order"
	"routesync/internal/core/domain/model/route"
	"routesync/internal/core/domain/model/scan"
	"routesync/internal/core/ports"
	"routesync/internal/pkg/errs"
)

var _ ports.OrderBackend = (*Backend)(nil)

// Backend is the system of record as seen by driver sessions. Every call runs
// in its own unit of work; database failures come back as errs.TransientError
// while domain errors (not found, conflicts, invalid rows) pass through.
type Backend struct {
	uowFactory ports.UnitOfWorkFactory
}

func NewBackend(uowFactory ports.UnitOfWorkFactory) *Backend {
	return &Backend{uowFactory: uowFactory}
}

func (b *Backend) FindOrder(ctx context.Context, id kernel.UUID) (*order.Order, error) {
	o, err := b.uowFactory.Create().OrderRepository().Get(ctx, id)
	return o, classify("find order", err)
}

func (b *Backend) FindOrderByNumber(ctx context.Context, number string) (*order.Order, scan.Fingerprint, error) {
	o, fp, err := b.uowFactory.Create().OrderRepository().GetByNumber(ctx, number)
	return o, fp, classify("find order by number", err)
}

func (b *Backend) ListPackages(ctx context.Context, driverID kernel.UUID, date time.Time) ([]*route.Package, error) {
	pkgs, err := b.uowFactory.Create().PackageRepository().ListByDriverAndDate(ctx, driverID, date)
	return pkgs, classify("list packages", err)
}

// ListPackageOrders reads the package and its orders in one transaction so
// the sequence and the orders agree.
func (b *Backend) ListPackageOrders(ctx context.Context, packageID kernel.UUID) ([]*order.Order, error) {
	uow := b.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, classify("list package orders", err)
	}
	defer func() {
		_ = uow.Rollback(ctx)
	}()

	pkg, err := uow.PackageRepository().Get(ctx, packageID)
	if err != nil {
		return nil, classify("list package orders", err)
	}

	orders, err := uow.OrderRepository().GetMany(ctx, pkg.Sequence())
	if err != nil {
		return nil, classify("list package orders", err)
	}

	return orders, classify("list package orders", uow.Commit(ctx))
}

func (b *Backend) CompareAndSetStatus(
	ctx context.Context, id kernel.UUID, from, to order.Status,
) (order.Status, bool, error) {
	uow := b.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return order.Unknown, false, classify("compare and set status", err)
	}
	defer func() {
		_ = uow.Rollback(ctx)
	}()

	repo := uow.OrderRepository()
	swapped, err := repo.CompareAndSetStatus(ctx, id, from, to)
	if err != nil {
		return order.Unknown, false, classify("compare and set status", err)
	}

	actual := to
	if !swapped {
		current, getErr := repo.Get(ctx, id)
		if getErr != nil {
			return order.Unknown, false, classify("compare and set status", getErr)
		}
		actual = current.Status()
	}

	if err = uow.Commit(ctx); err != nil {
		return order.Unknown, false, classify("compare and set status", err)
	}

	return actual, swapped, nil
}

// CompleteDelivery locks the order row, moves it processing -> delivered and
// inserts the record. An order that is already delivered is reported with
// alreadyDelivered and nothing is written.
func (b *Backend) CompleteDelivery(ctx context.Context, record delivery.Record) (bool, error) {
	uow := b.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return false, classify("complete delivery", err)
	}
	defer func() {
		_ = uow.Rollback(ctx)
	}()

	orderRepo := uow.OrderRepository()
	current, err := orderRepo.GetForUpdate(ctx, record.OrderID())
	if err != nil {
		return false, classify("complete delivery", err)
	}
	if current.Status() == order.Delivered {
		return true, nil
	}

	if _, err = current.Transition(order.Processing, order.Delivered); err != nil {
		return false, err
	}

	if _, err = orderRepo.CompareAndSetStatus(ctx, current.ID(), order.Processing, order.Delivered); err != nil {
		return false, classify("complete delivery", err)
	}

	if err = uow.DeliveryRepository().Add(ctx, record); err != nil {
		if errors.Is(err, delivery.ErrAlreadyDelivered) {
			return true, nil
		}
		return false, classify("complete delivery", err)
	}

	return false, classify("complete delivery", uow.Commit(ctx))
}

func (b *Backend) FindDriver(ctx context.Context, id kernel.UUID) (*driver.Driver, error) {
	d, err := b.uowFactory.Create().DriverRepository().Get(ctx, id)
	return d, classify("find driver", err)
}

func classify(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errs.ErrObjectNotFound),
		errors.Is(err, errs.ErrConflict),
		errors.Is(err, errs.ErrValueIsInvalid),
		errors.Is(err, errs.ErrValueIsRequired),
		errors.Is(err, errs.ErrValueIsOutOfRange),
		errs.IsTransient(err):
		return err
	default:
		return errs.NewTransientError(op, err)
	}
}
