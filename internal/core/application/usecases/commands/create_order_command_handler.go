package commands

import (
	"context"

	"routesync/internal/core/domain/model/kernel"
	"routesync/internal/core/domain/model/order"
	"routesync/internal/core/domain/model/route"
	"routesync/internal/core/domain/model/scan"
)

// CreateOrderCommandHandler stores a new pending order with its QR fingerprint
// and appends it to the driver's latest package for the day, creating the
// package when the driver has none. Everything happens in one transaction.
type CreateOrderCommandHandler struct {
	uowFactory DispatchUoWFactory
}

func NewCreateOrderCommandHandler(uowFactory DispatchUoWFactory) CreateOrderCommandHandler {
	return CreateOrderCommandHandler{uowFactory: uowFactory}
}

// Handle returns the id of the package the order was placed on.
func (h CreateOrderCommandHandler) Handle(ctx context.Context, cmd CreateOrderCommand) (kernel.UUID, error) {
	if err := cmd.Validate(); err != nil {
		return kernel.UUID{}, err
	}

	details := cmd.Details()
	created, err := order.RestoreOrder(details)
	if err != nil {
		return kernel.UUID{}, err
	}

	items := make([]scan.PayloadItem, 0, len(details.Items))
	for _, item := range created.Items() {
		items = append(items, scan.PayloadItem{ProductName: item.ProductName(), Quantity: item.Quantity()})
	}
	fingerprint, err := scan.NewFingerprint(created.Number(), created.Customer().Name(), items)
	if err != nil {
		return kernel.UUID{}, err
	}

	uow := h.uowFactory.Create()
	if err = uow.Begin(ctx); err != nil {
		return kernel.UUID{}, err
	}

	defer func() {
		_ = uow.Rollback(ctx)
	}()

	packageRepo := uow.PackageRepository()
	orderRepo := uow.OrderRepository()

	pkgs, err := packageRepo.ListByDriverAndDate(ctx, cmd.DriverID(), cmd.Date())
	if err != nil {
		return kernel.UUID{}, err
	}

	var target *route.Package
	if len(pkgs) > 0 {
		target = pkgs[len(pkgs)-1]
	} else {
		target, err = route.NewPackage(kernel.NewUUID(), cmd.DriverID(), cmd.Date(), nil)
		if err != nil {
			return kernel.UUID{}, err
		}
		if err = packageRepo.Add(ctx, target); err != nil {
			return kernel.UUID{}, err
		}
	}

	if err = orderRepo.Add(ctx, created, fingerprint); err != nil {
		return kernel.UUID{}, err
	}

	if err = packageRepo.AppendOrder(ctx, target.ID(), created.ID()); err != nil {
		return kernel.UUID{}, err
	}

	if err = uow.Commit(ctx); err != nil {
		return kernel.UUID{}, err
	}

	return target.ID(), nil
}
