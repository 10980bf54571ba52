package commands

import (
	"context"
	"log/slog"

	"routesync/internal/core/domain/model/order"
)

// CancelOrderCommandHandler applies pending|processing -> cancelled on behalf
// of the dispatcher. The current status is read from the system of record so
// the override acts on what is stored, not on the session's cache.
type CancelOrderCommandHandler struct {
	lookup OrderLookup
	store  OrderStore
	logger *slog.Logger
}

func NewCancelOrderCommandHandler(lookup OrderLookup, store OrderStore, logger *slog.Logger) CancelOrderCommandHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return CancelOrderCommandHandler{
		lookup: lookup,
		store:  store,
		logger: logger.With("component", "CancelOrderCommandHandler"),
	}
}

// Handle cancels the order. Cancelling a cancelled order is a no-op; orders in
// any other status fail with an illegal transition.
func (h CancelOrderCommandHandler) Handle(ctx context.Context, cmd CancelOrderCommand) (*order.Order, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	current, err := h.lookup.FindOrder(ctx, cmd.OrderID())
	if err != nil {
		return nil, err
	}
	if current.Status() == order.Cancelled {
		return current, nil
	}

	cancelled, err := h.store.ApplyTransition(ctx, current.ID(), current.Status(), order.Cancelled, order.OriginDispatcher)
	if err != nil {
		return nil, err
	}

	h.logger.Info("order cancelled by dispatcher", "order_id", current.ID().String(), "from", current.Status().String())
	return cancelled, nil
}
