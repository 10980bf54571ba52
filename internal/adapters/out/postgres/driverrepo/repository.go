package driverrepo

import (
	"context"
	"errors"

	"routesync/internal/core/domain/model/driver"
	"routesync/internal/core/domain/model/kernel"
	"routesync/internal/pkg/errs"

	"gorm.io/gorm"
)

// GormDriverRepository implements ports.DriverRepository using GORM.
type GormDriverRepository struct {
	db *gorm.DB
}

func NewGormDriverRepository(db *gorm.DB) *GormDriverRepository {
	return &GormDriverRepository{db: db}
}

func (r *GormDriverRepository) Add(ctx context.Context, d *driver.Driver) error {
	if d == nil {
		return errs.NewValueIsRequiredError("driver")
	}
	dto := fromDomain(d)
	return r.db.WithContext(ctx).Create(&dto).Error
}

func (r *GormDriverRepository) Get(ctx context.Context, id kernel.UUID) (*driver.Driver, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}

	var dto DriverDTO
	if err := r.db.WithContext(ctx).First(&dto, "id = ?", id.Bytes()).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NewObjectNotFoundError("driver", id.String())
		}
		return nil, err
	}

	return toDomain(dto)
}
