package deliveryrepo

import (
	"context"
	"errors"
	"fmt"

	"routesync/internal/core/domain/model/delivery"
	"routesync/internal/core/domain/model/kernel"
	"routesync/internal/pkg/errs"

	"gorm.io/gorm"
)

// GormDeliveryRepository implements ports.DeliveryRepository using GORM.
type GormDeliveryRepository struct {
	db *gorm.DB
}

func NewGormDeliveryRepository(db *gorm.DB) *GormDeliveryRepository {
	return &GormDeliveryRepository{db: db}
}

// Add stores the record. A second record for the same order fails with
// delivery.ErrAlreadyDelivered.
func (r *GormDeliveryRepository) Add(ctx context.Context, record delivery.Record) error {
	if err := record.OrderID().Validate(); err != nil {
		return err
	}

	dto := fromDomain(record)
	if err := r.db.WithContext(ctx).Create(&dto).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: order %s", delivery.ErrAlreadyDelivered, record.OrderID())
		}
		return err
	}

	return nil
}

func (r *GormDeliveryRepository) Get(ctx context.Context, orderID kernel.UUID) (delivery.Record, error) {
	if err := orderID.Validate(); err != nil {
		return delivery.Record{}, err
	}

	var dto DeliveryLogDTO
	if err := r.db.WithContext(ctx).First(&dto, "order_id = ?", orderID.Bytes()).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return delivery.Record{}, errs.NewObjectNotFoundError("delivery record", orderID.String())
		}
		return delivery.Record{}, err
	}

	return toDomain(dto)
}
