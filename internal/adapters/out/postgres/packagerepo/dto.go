// Package packagerepo persists driver packages: the per-day bundles of orders
// a driver runs, with the delivery sequence kept in package_orders.
package packagerepo

import (
	"time"

	"routesync/internal/core/domain/model/kernel"
	"routesync/internal/core/domain/model/route"

	"github.com/google/uuid"
)

type PackageDTO struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	DriverID    uuid.UUID `gorm:"type:uuid;not null;index:idx_driver_packages_driver_date,priority:1"`
	PackageDate time.Time `gorm:"type:date;not null;index:idx_driver_packages_driver_date,priority:2"`
	CreatedAt   time.Time
}

func (PackageDTO) TableName() string {
	return "driver_packages"
}

// PackageOrderDTO links an order to a package at a position. The unique index
// on (order_id, package_date) keeps an order on at most one package per day.
type PackageOrderDTO struct {
	PackageID      uuid.UUID `gorm:"type:uuid;primaryKey"`
	OrderID        uuid.UUID `gorm:"type:uuid;primaryKey;uniqueIndex:idx_package_orders_order_date,priority:1"`
	PackageDate    time.Time `gorm:"type:date;not null;uniqueIndex:idx_package_orders_order_date,priority:2"`
	SequenceNumber int       `gorm:"not null"`
}

func (PackageOrderDTO) TableName() string {
	return "package_orders"
}

func fromDomain(pkg *route.Package) (PackageDTO, []PackageOrderDTO) {
	dto := PackageDTO{
		ID:          pkg.ID().Bytes(),
		DriverID:    pkg.DriverID().Bytes(),
		PackageDate: pkg.Date(),
	}

	sequence := pkg.Sequence()
	links := make([]PackageOrderDTO, 0, len(sequence))
	for i, orderID := range sequence {
		links = append(links, PackageOrderDTO{
			PackageID:      dto.ID,
			OrderID:        orderID.Bytes(),
			PackageDate:    dto.PackageDate,
			SequenceNumber: i + 1,
		})
	}

	return dto, links
}

// toDomain expects links sorted by sequence number.
func toDomain(dto PackageDTO, links []PackageOrderDTO) (*route.Package, error) {
	id, err := kernel.UUIDFromBytes(dto.ID[:])
	if err != nil {
		return nil, err
	}

	driverID, err := kernel.UUIDFromBytes(dto.DriverID[:])
	if err != nil {
		return nil, err
	}

	sequence := make([]kernel.UUID, 0, len(links))
	for _, link := range links {
		orderID, idErr := kernel.UUIDFromBytes(link.OrderID[:])
		if idErr != nil {
			return nil, idErr
		}
		sequence = append(sequence, orderID)
	}

	return route.NewPackage(id, driverID, dto.PackageDate, sequence)
}
