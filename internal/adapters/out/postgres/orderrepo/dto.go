// Package orderrepo provides data transfer objects and mapping functions for order persistence.
// Orders are stored together with the canonical QR payload printed on their label.
package orderrepo

import (
	"time"

	"routesync/internal/core/domain/model/kernel"
	"routesync/internal/core/domain/model/order"

	"github.com/google/uuid"
)

// OrderDTO represents the database structure for persisting orders.
// Status is stored as text so that statuses written by other tools
// (finished, shipped) survive a round trip.
type OrderDTO struct {
	ID                  uuid.UUID   `gorm:"type:uuid;primaryKey"`
	Number              string      `gorm:"column:order_number;type:varchar(64);uniqueIndex;not null"`
	Type                string      `gorm:"type:varchar(16);not null"`
	Status              string      `gorm:"type:varchar(16);index;not null"`
	Customer            CustomerDTO `gorm:"embedded;embeddedPrefix:customer_"`
	WindowStart         *time.Time
	WindowEnd           *time.Time
	Items               []ItemDTO `gorm:"type:jsonb;serializer:json"`
	SpecialInstructions string
	QRCode              string `gorm:"column:qr_code;type:text"`
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// TableName overrides GORM's default naming convention to use "orders".
func (OrderDTO) TableName() string {
	return "orders"
}

// CustomerDTO is embedded into the orders table with the customer_ prefix.
type CustomerDTO struct {
	Name      string
	Address   string
	Contact   string
	Latitude  *float64
	Longitude *float64
}

type ItemDTO struct {
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
}

func fromDomain(o *order.Order, fingerprint string) OrderDTO {
	customer := o.Customer()
	dto := OrderDTO{
		ID:     o.ID().Bytes(),
		Number: o.Number(),
		Type:   o.Type().String(),
		Status: string(o.Status()),
		Customer: CustomerDTO{
			Name:    customer.Name(),
			Address: customer.Address(),
			Contact: customer.Contact(),
		},
		SpecialInstructions: o.SpecialInstructions(),
		QRCode:              fingerprint,
	}

	if loc, ok := customer.Location(); ok {
		lat, lng := loc.Latitude(), loc.Longitude()
		dto.Customer.Latitude = &lat
		dto.Customer.Longitude = &lng
	}

	window := o.Window()
	if start := window.Start(); !start.IsZero() {
		dto.WindowStart = &start
	}
	if end := window.End(); !end.IsZero() {
		dto.WindowEnd = &end
	}

	items := o.Items()
	dto.Items = make([]ItemDTO, 0, len(items))
	for _, item := range items {
		dto.Items = append(dto.Items, ItemDTO{ProductName: item.ProductName(), Quantity: item.Quantity()})
	}

	return dto
}

// toDomain rebuilds the order with RestoreOrder; rows that no longer satisfy
// the order invariants are reported rather than silently repaired.
func toDomain(dto OrderDTO) (*order.Order, error) {
	id, err := kernel.UUIDFromBytes(dto.ID[:])
	if err != nil {
		return nil, err
	}

	typ, err := order.ParseType(dto.Type)
	if err != nil {
		return nil, err
	}

	status, err := order.ParseStatus(dto.Status)
	if err != nil {
		return nil, err
	}

	var location *kernel.GeoPoint
	if dto.Customer.Latitude != nil && dto.Customer.Longitude != nil {
		loc, locErr := kernel.NewGeoPoint(*dto.Customer.Latitude, *dto.Customer.Longitude)
		if locErr != nil {
			return nil, locErr
		}
		location = &loc
	}

	customer, err := order.NewCustomer(dto.Customer.Name, dto.Customer.Address, dto.Customer.Contact, location)
	if err != nil {
		return nil, err
	}

	var window order.TimeWindow
	if dto.WindowStart != nil {
		var end time.Time
		if dto.WindowEnd != nil {
			end = *dto.WindowEnd
		}
		if window, err = order.NewTimeWindow(*dto.WindowStart, end); err != nil {
			return nil, err
		}
	}

	items := make([]order.Item, 0, len(dto.Items))
	for _, it := range dto.Items {
		item, itemErr := order.NewItem(it.ProductName, it.Quantity)
		if itemErr != nil {
			return nil, itemErr
		}
		items = append(items, item)
	}

	return order.RestoreOrder(order.Attributes{
		ID:                  id,
		Number:              dto.Number,
		Type:                typ,
		Status:              status,
		Customer:            customer,
		Window:              window,
		Items:               items,
		SpecialInstructions: dto.SpecialInstructions,
	})
}
