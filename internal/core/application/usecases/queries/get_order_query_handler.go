package queries

import (
	"context"

	"routesync/internal/pkg/errs"
)

// GetOrderQueryHandler serves order detail from the session's snapshots.
// Orders that are not on the driver's route are reported as not found.
type GetOrderQueryHandler struct {
	store RouteReader
}

func NewGetOrderQueryHandler(store RouteReader) GetOrderQueryHandler {
	return GetOrderQueryHandler{store: store}
}

func (h GetOrderQueryHandler) Handle(_ context.Context, query GetOrderQuery) (GetOrderQueryResponse, error) {
	if err := query.Validate(); err != nil {
		return GetOrderQueryResponse{}, err
	}

	o, ok := h.store.Find(query.OrderID())
	if !ok {
		return GetOrderQueryResponse{}, errs.NewObjectNotFoundError("order", query.OrderID().String())
	}

	resp := GetOrderQueryResponse{Order: NewOrderView(o)}
	for _, pkg := range h.store.Packages() {
		if pkg.Contains(o.ID()) {
			resp.PackageID = pkg.ID()
			break
		}
	}

	return resp, nil
}
