package packagerepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"routesync/internal/core/domain/model/kernel"
	"routesync/internal/core/domain/model/route"
	"routesync/internal/pkg/errs"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormPackageRepository implements ports.PackageRepository using GORM.
type GormPackageRepository struct {
	db *gorm.DB
}

func NewGormPackageRepository(db *gorm.DB) *GormPackageRepository {
	return &GormPackageRepository{db: db}
}

// Add saves a package together with its initial sequence.
func (r *GormPackageRepository) Add(ctx context.Context, pkg *route.Package) error {
	if err := pkg.Validate(); err != nil {
		return err
	}

	dto, links := fromDomain(pkg)
	db := r.db.WithContext(ctx)
	if err := db.Create(&dto).Error; err != nil {
		return err
	}
	if len(links) == 0 {
		return nil
	}
	if err := db.Create(&links).Error; err != nil {
		return translateLinkError(err, pkg.Date())
	}

	return nil
}

func (r *GormPackageRepository) Get(ctx context.Context, id kernel.UUID) (*route.Package, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}

	db := r.db.WithContext(ctx)
	var dto PackageDTO
	if err := db.First(&dto, "id = ?", id.Bytes()).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NewObjectNotFoundError("package", id.String())
		}
		return nil, err
	}

	var links []PackageOrderDTO
	if err := db.Order("sequence_number").Find(&links, "package_id = ?", dto.ID).Error; err != nil {
		return nil, err
	}

	return toDomain(dto, links)
}

// ListByDriverAndDate returns the driver's packages for the day, oldest first.
func (r *GormPackageRepository) ListByDriverAndDate(
	ctx context.Context, driverID kernel.UUID, date time.Time,
) ([]*route.Package, error) {
	if err := driverID.Validate(); err != nil {
		return nil, err
	}

	db := r.db.WithContext(ctx)
	var dtos []PackageDTO
	if err := db.Order("created_at, id").
		Find(&dtos, "driver_id = ? AND package_date = ?", driverID.Bytes(), route.Day(date)).Error; err != nil {
		return nil, err
	}
	if len(dtos) == 0 {
		return []*route.Package{}, nil
	}

	ids := make([]uuid.UUID, 0, len(dtos))
	for _, dto := range dtos {
		ids = append(ids, dto.ID)
	}

	var links []PackageOrderDTO
	if err := db.Order("package_id, sequence_number").Find(&links, "package_id IN ?", ids).Error; err != nil {
		return nil, err
	}

	byPackage := make(map[uuid.UUID][]PackageOrderDTO, len(dtos))
	for _, link := range links {
		byPackage[link.PackageID] = append(byPackage[link.PackageID], link)
	}

	pkgs := make([]*route.Package, 0, len(dtos))
	for _, dto := range dtos {
		pkg, err := toDomain(dto, byPackage[dto.ID])
		if err != nil {
			return nil, err
		}
		pkgs = append(pkgs, pkg)
	}

	return pkgs, nil
}

// AppendOrder puts the order at the end of the package's sequence.
func (r *GormPackageRepository) AppendOrder(ctx context.Context, packageID, orderID kernel.UUID) error {
	if err := errors.Join(packageID.Validate(), orderID.Validate()); err != nil {
		return err
	}

	db := r.db.WithContext(ctx)
	var dto PackageDTO
	if err := db.First(&dto, "id = ?", packageID.Bytes()).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errs.NewObjectNotFoundError("package", packageID.String())
		}
		return err
	}

	var last int
	if err := db.Model(&PackageOrderDTO{}).
		Where("package_id = ?", dto.ID).
		Select("COALESCE(MAX(sequence_number), 0)").
		Scan(&last).Error; err != nil {
		return err
	}

	link := PackageOrderDTO{
		PackageID:      dto.ID,
		OrderID:        orderID.Bytes(),
		PackageDate:    dto.PackageDate,
		SequenceNumber: last + 1,
	}
	if err := db.Create(&link).Error; err != nil {
		return translateLinkError(err, dto.PackageDate)
	}

	return nil
}

func translateLinkError(err error, date time.Time) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: order is already on a package for %s", errs.ErrConflict, date.Format(route.DateLayout))
	}
	return err
}
