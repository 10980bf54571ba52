// Package deliveryrepo persists proof-of-delivery records in delivery_logs.
package deliveryrepo

import (
	"time"

	"routesync/internal/core/domain/model/delivery"
	"routesync/internal/core/domain/model/kernel"

	"github.com/google/uuid"
)

// DeliveryLogDTO is one row of delivery_logs. order_id is unique: an order is
// delivered once.
type DeliveryLogDTO struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	OrderID       uuid.UUID `gorm:"type:uuid;uniqueIndex;not null"`
	SignatureName string    `gorm:"not null"`
	Notes         string
	PhotoRefs     []string  `gorm:"type:jsonb;serializer:json;not null"`
	CompletedAt   time.Time `gorm:"not null"`
}

func (DeliveryLogDTO) TableName() string {
	return "delivery_logs"
}

func fromDomain(record delivery.Record) DeliveryLogDTO {
	return DeliveryLogDTO{
		ID:            uuid.New(),
		OrderID:       record.OrderID().Bytes(),
		SignatureName: record.SignatureName(),
		Notes:         record.Notes(),
		PhotoRefs:     record.PhotoRefs(),
		CompletedAt:   record.CompletedAt(),
	}
}

func toDomain(dto DeliveryLogDTO) (delivery.Record, error) {
	orderID, err := kernel.UUIDFromBytes(dto.OrderID[:])
	if err != nil {
		return delivery.Record{}, err
	}
	return delivery.RestoreRecord(orderID, dto.SignatureName, dto.Notes, dto.PhotoRefs, dto.CompletedAt)
}
