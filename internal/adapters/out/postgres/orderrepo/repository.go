package orderrepo

import (
	"context"
	"errors"
	"fmt"

	"routesync/internal/core/domain/model/kernel"
	"routesync/internal/core/domain/model/order"
	"routesync/internal/core/domain/model/scan"
	"routesync/internal/pkg/errs"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormOrderRepository implements ports.OrderRepository using GORM.
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GORM order repository.
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// Add saves a new order with its QR fingerprint.
func (r *GormOrderRepository) Add(ctx context.Context, aggregate *order.Order, fingerprint string) error {
	if err := aggregate.Validate(); err != nil {
		return err
	}

	dto := fromDomain(aggregate, fingerprint)
	if err := r.db.WithContext(ctx).Create(&dto).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: order number %s is taken", errs.ErrConflict, aggregate.Number())
		}
		return err
	}

	return nil
}

// Get retrieves an order by ID.
func (r *GormOrderRepository) Get(ctx context.Context, id kernel.UUID) (*order.Order, error) {
	return r.get(r.db.WithContext(ctx), id)
}

// GetForUpdate retrieves an order by ID and holds a row lock until the
// surrounding transaction ends.
func (r *GormOrderRepository) GetForUpdate(ctx context.Context, id kernel.UUID) (*order.Order, error) {
	return r.get(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *GormOrderRepository) get(db *gorm.DB, id kernel.UUID) (*order.Order, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}

	var dto OrderDTO
	if err := db.First(&dto, "id = ?", id.Bytes()).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NewObjectNotFoundError("order", id.String())
		}
		return nil, err
	}

	return toDomain(dto)
}

// GetByNumber retrieves an order by its number together with the stored fingerprint.
func (r *GormOrderRepository) GetByNumber(ctx context.Context, number string) (*order.Order, scan.Fingerprint, error) {
	var dto OrderDTO
	if err := r.db.WithContext(ctx).First(&dto, "order_number = ?", number).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, scan.Fingerprint{}, errs.NewObjectNotFoundError("order", number)
		}
		return nil, scan.Fingerprint{}, err
	}

	o, err := toDomain(dto)
	if err != nil {
		return nil, scan.Fingerprint{}, err
	}

	return o, scan.ParseFingerprint(dto.QRCode), nil
}

// GetMany retrieves orders in the order of ids. Unknown ids are skipped.
func (r *GormOrderRepository) GetMany(ctx context.Context, ids []kernel.UUID) ([]*order.Order, error) {
	if len(ids) == 0 {
		return []*order.Order{}, nil
	}

	raw := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		raw = append(raw, id.Bytes())
	}

	var dtos []OrderDTO
	if err := r.db.WithContext(ctx).Find(&dtos, "id IN ?", raw).Error; err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]OrderDTO, len(dtos))
	for _, dto := range dtos {
		byID[dto.ID] = dto
	}

	orders := make([]*order.Order, 0, len(dtos))
	for _, id := range raw {
		dto, ok := byID[id]
		if !ok {
			continue
		}
		o, err := toDomain(dto)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}

	return orders, nil
}

// CompareAndSetStatus updates the status only if it still equals from.
func (r *GormOrderRepository) CompareAndSetStatus(
	ctx context.Context, id kernel.UUID, from, to order.Status,
) (bool, error) {
	if err := id.Validate(); err != nil {
		return false, err
	}

	result := r.db.WithContext(ctx).
		Model(&OrderDTO{}).
		Where("id = ? AND status = ?", id.Bytes(), string(from)).
		Update("status", string(to))
	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected == 1, nil
}
