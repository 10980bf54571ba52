// Package commands contains the operations that change order state: QR
// activation, delivery completion, dispatcher cancellation and order creation.
//
// Every command is built by its constructor and checked with a constructor
// guard; handlers reject zero-value commands.
package commands

import (
	"context"

	"routesync/internal/core/domain/model/delivery"
	"routesync/internal/core/domain/model/kernel"
	"routesync/internal/core/domain/model/order"
	"routesync/internal/core/domain/model/scan"
	"routesync/internal/core/ports"
)

// Unit of Work interfaces used by dispatcher-side commands.
type (
	TxManager interface {
		Begin(ctx context.Context) error
		Commit(ctx context.Context) error
		Rollback(ctx context.Context) error
	}

	OrderRepoFactory interface {
		OrderRepository() ports.OrderRepository
	}

	PackageRepoFactory interface {
		PackageRepository() ports.PackageRepository
	}

	// DispatchUoW spans orders and packages, used when an order is placed on a route.
	DispatchUoW interface {
		TxManager
		OrderRepoFactory
		PackageRepoFactory
	}

	DispatchUoWFactory interface {
		Create() DispatchUoW
	}
)

// Session-side collaborators. A driver session supplies its own store and scan log.
type (
	// OrderStore is the transition contract of the session's order store.
	OrderStore interface {
		Find(orderID kernel.UUID) (*order.Order, bool)
		ApplyTransition(ctx context.Context, orderID kernel.UUID, from, to order.Status, origin order.Origin) (*order.Order, error)
		CompleteDelivery(ctx context.Context, record delivery.Record) (*order.Order, bool, error)
	}

	// OrderLookup reads orders from the system of record, bypassing the cache.
	OrderLookup interface {
		FindOrder(ctx context.Context, id kernel.UUID) (*order.Order, error)
		FindOrderByNumber(ctx context.Context, number string) (*order.Order, scan.Fingerprint, error)
	}

	ScanLog interface {
		Record(e scan.Event)
		WasAccepted(orderNumber string) bool
	}
)
