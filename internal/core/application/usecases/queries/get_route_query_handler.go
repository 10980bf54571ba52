package queries

import (
	"context"

	"routesync/internal/core/domain/model/order"
)

// GetRouteQueryHandler builds the route view from the session's snapshots. It
// never touches the backend, so it answers even while the backend is down.
type GetRouteQueryHandler struct {
	store RouteReader
}

func NewGetRouteQueryHandler(store RouteReader) GetRouteQueryHandler {
	return GetRouteQueryHandler{store: store}
}

func (h GetRouteQueryHandler) Handle(_ context.Context, query GetRouteQuery) (GetRouteQueryResponse, error) {
	if err := query.Validate(); err != nil {
		return GetRouteQueryResponse{}, err
	}

	driverID, date := h.store.Route()
	resp := GetRouteQueryResponse{
		DriverID: driverID,
		Date:     date,
		Stops:    make([]RouteStop, 0),
		Pickups:  make([]RouteStop, 0),
		Dropoffs: make([]RouteStop, 0),
		Warnings: make([]StaleWarning, 0),
	}

	for _, pkg := range h.store.Packages() {
		if st, stale := h.store.Staleness(pkg.ID()); stale {
			resp.Warnings = append(resp.Warnings, StaleWarning{PackageID: pkg.ID(), Since: st.Since, Reason: st.Reason})
		}

		for _, o := range h.store.Snapshot(pkg.ID()) {
			stop := RouteStop{
				Position:  len(resp.Stops) + 1,
				PackageID: pkg.ID(),
				Order:     NewOrderView(o),
			}
			resp.Stops = append(resp.Stops, stop)

			switch o.Type() {
			case order.Pickup:
				resp.Pickups = append(resp.Pickups, stop)
			case order.Dropoff:
				resp.Dropoffs = append(resp.Dropoffs, stop)
				if o.Status() == order.Pending {
					resp.UnscannedDropoffs++
				}
			}
		}
	}

	return resp, nil
}
