// Package driverrepo persists drivers. Only active drivers may open a session.
package driverrepo

import (
	"time"

	"routesync/internal/core/domain/model/driver"
	"routesync/internal/core/domain/model/kernel"

	"github.com/google/uuid"
)

const (
	statusActive   = "active"
	statusInactive = "inactive"
)

type DriverDTO struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name      string    `gorm:"not null"`
	Email     string    `gorm:"index"`
	Status    string    `gorm:"type:varchar(16);not null;default:active"`
	CreatedAt time.Time
}

func (DriverDTO) TableName() string {
	return "drivers"
}

func fromDomain(d *driver.Driver) DriverDTO {
	status := statusInactive
	if d.IsActive() {
		status = statusActive
	}
	return DriverDTO{
		ID:     d.ID().Bytes(),
		Name:   d.Name(),
		Email:  d.Email(),
		Status: status,
	}
}

func toDomain(dto DriverDTO) (*driver.Driver, error) {
	id, err := kernel.UUIDFromBytes(dto.ID[:])
	if err != nil {
		return nil, err
	}
	return driver.NewDriver(id, dto.Name, dto.Email, dto.Status == statusActive)
}
