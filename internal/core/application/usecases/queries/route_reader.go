// Package queries contains the read side: the driver's route view and order
// detail served from the session's order store, and delivery records read
// straight from the database for dispatchers.
package queries

import (
	"time"

	"routesync/internal/core/application/orderstore"
	"routesync/internal/core/domain/model/kernel"
	"routesync/internal/core/domain/model/order"
	"routesync/internal/core/domain/model/route"
)

// RouteReader is the read-only view of a session's order store.
type RouteReader interface {
	Route() (kernel.UUID, time.Time)
	Packages() []*route.Package
	Snapshot(packageID kernel.UUID) []*order.Order
	Find(orderID kernel.UUID) (*order.Order, bool)
	Staleness(packageID kernel.UUID) (orderstore.Staleness, bool)
}

// OrderView is the presentation of one order shared by the route and detail queries.
type OrderView struct {
	ID                  kernel.UUID
	Number              string
	Type                order.Type
	Status              order.Status
	DisplayGroup        order.DisplayGroup
	CustomerName        string
	Address             string
	Contact             string
	Location            *Coordinates
	WindowStart         *time.Time
	WindowEnd           *time.Time
	Items               []ItemView
	SpecialInstructions string
	NavigationURL       string
}

type Coordinates struct {
	Latitude  float64
	Longitude float64
}

type ItemView struct {
	ProductName string
	Quantity    int
}

// NewOrderView renders o for presentation.
func NewOrderView(o *order.Order) OrderView {
	customer := o.Customer()
	v := OrderView{
		ID:                  o.ID(),
		Number:              o.Number(),
		Type:                o.Type(),
		Status:              o.Status(),
		DisplayGroup:        o.Status().DisplayGroup(),
		CustomerName:        customer.Name(),
		Address:             customer.Address(),
		Contact:             customer.Contact(),
		SpecialInstructions: o.SpecialInstructions(),
	}

	if loc, ok := customer.Location(); ok {
		v.Location = &Coordinates{Latitude: loc.Latitude(), Longitude: loc.Longitude()}
		v.NavigationURL = loc.NavigationURL()
	}

	window := o.Window()
	if start := window.Start(); !start.IsZero() {
		v.WindowStart = &start
	}
	if end := window.End(); !end.IsZero() {
		v.WindowEnd = &end
	}

	items := o.Items()
	v.Items = make([]ItemView, 0, len(items))
	for _, item := range items {
		v.Items = append(v.Items, ItemView{ProductName: item.ProductName(), Quantity: item.Quantity()})
	}

	return v
}
