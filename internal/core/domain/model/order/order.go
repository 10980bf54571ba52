package order

import (
	"errors"
	"slices"
	"strings"

	"routesync/internal/core/domain/model/kernel"
	"routesync/internal/pkg/errs"
)

// ErrOrderIsNotConstructed is returned for orders not built by NewOrder or RestoreOrder.
var ErrOrderIsNotConstructed = errors.New("Order must be created via NewOrder or RestoreOrder constructor")

// Order is a single pickup or drop-off task on a driver's route.
//
// Invariants:
//   - id and number are set once and never change
//   - status only moves along the legal edges of Status
//   - items keep the order in which they were supplied
//
// Orders handed out by the order store are copies; mutating one never
// affects what other readers observe.
type Order struct {
	id                  kernel.UUID
	number              string
	typ                 Type
	status              Status
	customer            Customer
	window              TimeWindow
	items               []Item
	specialInstructions string

	isConstructed bool
}

// Attributes carries every field of an order, used to restore orders from the backend.
type Attributes struct {
	ID                  kernel.UUID
	Number              string
	Type                Type
	Status              Status
	Customer            Customer
	Window              TimeWindow
	Items               []Item
	SpecialInstructions string
}

// NewOrder creates an order in Pending status.
func NewOrder(
	id kernel.UUID, number string, typ Type, customer Customer, window TimeWindow, items []Item,
) (*Order, error) {
	return RestoreOrder(Attributes{
		ID:       id,
		Number:   number,
		Type:     typ,
		Status:   Pending,
		Customer: customer,
		Window:   window,
		Items:    items,
	})
}

// RestoreOrder rebuilds an order in any canonical status.
func RestoreOrder(attrs Attributes) (*Order, error) {
	o := &Order{
		customer:            attrs.Customer,
		window:              attrs.Window,
		items:               slices.Clone(attrs.Items),
		specialInstructions: strings.TrimSpace(attrs.SpecialInstructions),
		isConstructed:       true,
	}

	if err := errors.Join(
		o.setID(attrs.ID),
		o.setNumber(attrs.Number),
		o.setType(attrs.Type),
		o.setStatus(attrs.Status),
		o.setCustomer(attrs.Customer),
	); err != nil {
		return nil, err
	}

	return o, nil
}

func (o *Order) Validate() error {
	if o == nil || !o.isConstructed {
		return ErrOrderIsNotConstructed
	}
	return nil
}

func (o *Order) IsEqual(other *Order) bool {
	return other != nil && o.id.IsEqual(other.id)
}

func (o *Order) ID() kernel.UUID             { return o.id }
func (o *Order) Number() string              { return o.number }
func (o *Order) Type() Type                  { return o.typ }
func (o *Order) Status() Status              { return o.status }
func (o *Order) Customer() Customer          { return o.customer }
func (o *Order) Window() TimeWindow          { return o.window }
func (o *Order) SpecialInstructions() string { return o.specialInstructions }

// Items returns a copy of the order lines.
func (o *Order) Items() []Item {
	return slices.Clone(o.items)
}

// Clone returns an independent copy safe to hand to another reader.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	c.items = slices.Clone(o.items)
	return &c
}

// WithStatus returns a copy carrying status as stored by the system of record.
// It bypasses the transition table and is meant for syncing read projections.
func (o *Order) WithStatus(status Status) *Order {
	c := o.Clone()
	c.status = status
	return c
}

// Transition moves the order from -> to under optimistic concurrency rules.
//
//   - (from, to) not a legal edge: IllegalTransition
//   - current status already equals to: no-op, changed is false
//   - current status differs from from: StaleTransition
//   - otherwise the status becomes to and changed is true
func (o *Order) Transition(from, to Status) (bool, error) {
	if err := ValidateTransition(from, to); err != nil {
		var te *TransitionError
		if errors.As(err, &te) {
			te.OrderID = o.id.String()
		}
		return false, err
	}

	if o.status == to {
		return false, nil
	}

	if o.status != from {
		return false, NewStaleTransitionError(o.id.String(), from, to, o.status)
	}

	o.status = to
	return true, nil
}

func (o *Order) setID(id kernel.UUID) error {
	if err := id.Validate(); err != nil {
		return err
	}
	o.id = id
	return nil
}

func (o *Order) setNumber(number string) error {
	number = strings.TrimSpace(number)
	if number == "" {
		return errs.NewValueIsRequiredError("order number")
	}
	o.number = number
	return nil
}

func (o *Order) setType(typ Type) error {
	if _, err := ParseType(string(typ)); err != nil {
		return err
	}
	o.typ = typ
	return nil
}

func (o *Order) setStatus(status Status) error {
	if err := status.Validate(); err != nil {
		return err
	}
	o.status = status
	return nil
}

func (o *Order) setCustomer(customer Customer) error {
	if customer.name == "" {
		return errs.NewValueIsRequiredError("customer")
	}
	return nil
}
