package order

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"routesync/internal/core/domain/model/kernel"
	"routesync/internal/pkg/errs"
)

// Type tells whether the driver collects from or delivers to the customer.
type Type string

const (
	Pickup  Type = "pickup"
	Dropoff Type = "dropoff"
)

func ParseType(s string) (Type, error) {
	t := Type(s)
	if t != Pickup && t != Dropoff {
		return "", errs.NewValueIsInvalidErrorWithCause("type", fmt.Errorf("%q is not pickup or dropoff", s))
	}
	return t, nil
}

func (t Type) String() string {
	return string(t)
}

// Customer is the person and place an order is collected from or delivered to.
type Customer struct {
	name     string
	address  string
	contact  string
	location *kernel.GeoPoint
}

// NewCustomer requires a name; the address, contact and coordinates are optional
// because orders created by phone may not be geocoded yet.
func NewCustomer(name, address, contact string, location *kernel.GeoPoint) (Customer, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Customer{}, errs.NewValueIsRequiredError("customer name")
	}
	if location != nil {
		if err := location.Validate(); err != nil {
			return Customer{}, err
		}
		loc := *location
		location = &loc
	}
	return Customer{
		name:     name,
		address:  strings.TrimSpace(address),
		contact:  strings.TrimSpace(contact),
		location: location,
	}, nil
}

func (c Customer) Name() string    { return c.name }
func (c Customer) Address() string { return c.address }
func (c Customer) Contact() string { return c.contact }

// Location returns the customer's coordinates and whether they are known.
func (c Customer) Location() (kernel.GeoPoint, bool) {
	if c.location == nil {
		return kernel.GeoPoint{}, false
	}
	return *c.location, true
}

// TimeWindow is the scheduled slot of an order. End may be zero for open-ended slots.
type TimeWindow struct {
	start time.Time
	end   time.Time
}

func NewTimeWindow(start, end time.Time) (TimeWindow, error) {
	if start.IsZero() {
		return TimeWindow{}, errs.NewValueIsRequiredError("scheduled window start")
	}
	if !end.IsZero() && end.Before(start) {
		return TimeWindow{}, errs.NewValueIsInvalidErrorWithCause("scheduled window",
			fmt.Errorf("end %s is before start %s", end.Format(time.RFC3339), start.Format(time.RFC3339)))
	}
	return TimeWindow{start: start, end: end}, nil
}

func (w TimeWindow) Start() time.Time { return w.start }
func (w TimeWindow) End() time.Time   { return w.end }

// Item is one line of an order.
type Item struct {
	productName string
	quantity    int
}

func NewItem(productName string, quantity int) (Item, error) {
	productName = strings.TrimSpace(productName)
	var nameErr, qtyErr error
	if productName == "" {
		nameErr = errs.NewValueIsRequiredError("product name")
	}
	if quantity <= 0 {
		qtyErr = errs.NewValueIsInvalidErrorWithCause("quantity", fmt.Errorf("%d is not greater than 0", quantity))
	}
	if err := errors.Join(nameErr, qtyErr); err != nil {
		return Item{}, err
	}
	return Item{productName: productName, quantity: quantity}, nil
}

func (i Item) ProductName() string { return i.productName }
func (i Item) Quantity() int       { return i.quantity }
