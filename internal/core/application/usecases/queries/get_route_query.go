package queries

import (
	"errors"
	"time"

	"routesync/internal/core/domain/model/kernel"
	"routesync/internal/pkg/guard"
)

var ErrGetRouteQueryIsNotConstructed = errors.New(
	"GetRouteQuery must be created via NewGetRouteQuery constructor",
)

// GetRouteQuery asks for the session's route as currently cached.
type GetRouteQuery struct {
	guard guard.ConstructorGuard
}

func NewGetRouteQuery() GetRouteQuery {
	return GetRouteQuery{guard: guard.NewConstructorGuard()}
}

func (q GetRouteQuery) Validate() error {
	return q.guard.Validate(ErrGetRouteQueryIsNotConstructed)
}

// GetRouteQueryResponse is the driver's route: every stop in package then
// delivery sequence, split by type, with a warning per stale package.
type GetRouteQueryResponse struct {
	DriverID kernel.UUID
	Date     time.Time
	Stops    []RouteStop
	Pickups  []RouteStop
	Dropoffs []RouteStop
	// UnscannedDropoffs counts drop-offs still pending activation.
	UnscannedDropoffs int
	Warnings          []StaleWarning
}

type RouteStop struct {
	// Position is 1-based across the whole route.
	Position  int
	PackageID kernel.UUID
	Order     OrderView
}

type StaleWarning struct {
	PackageID kernel.UUID
	Since     time.Time
	Reason    string
}
