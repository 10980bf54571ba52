// Package assetstore keeps delivery photos as blobs in PostgreSQL and serves
// them under a public base URL.
package assetstore

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"routesync/internal/core/ports"
	"routesync/internal/pkg/errs"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var _ ports.AssetStorage = (*GormStore)(nil)

// AssetDTO is one stored object.
type AssetDTO struct {
	Path        string `gorm:"primaryKey;type:text"`
	ContentType string `gorm:"type:varchar(64);not null"`
	Data        []byte `gorm:"type:bytea;not null"`
	Size        int64
	UpdatedAt   time.Time
}

func (AssetDTO) TableName() string {
	return "assets"
}

// GormStore implements ports.AssetStorage. Uploading to an existing path
// replaces the object.
type GormStore struct {
	db      *gorm.DB
	baseURL string
}

// NewGormStore serves objects at baseURL + "/" + path; baseURL is normally
// the HTTP server's /assets prefix.
func NewGormStore(db *gorm.DB, baseURL string) *GormStore {
	return &GormStore{db: db, baseURL: strings.TrimRight(baseURL, "/")}
}

func (s *GormStore) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&AssetDTO{})
}

func (s *GormStore) Upload(ctx context.Context, path string, data []byte, contentType string) error {
	path = strings.TrimLeft(path, "/")
	if path == "" {
		return errs.NewValueIsRequiredError("asset path")
	}

	dto := AssetDTO{
		Path:        path,
		ContentType: contentType,
		Data:        data,
		Size:        int64(len(data)),
		UpdatedAt:   time.Now().UTC(),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "path"}},
		DoUpdates: clause.AssignmentColumns([]string{"content_type", "data", "size", "updated_at"}),
	}).Create(&dto).Error
	if err != nil {
		return errs.NewTransientError("upload "+path, err)
	}

	return nil
}

// PublicURL escapes each path segment.
func (s *GormStore) PublicURL(path string) string {
	segments := strings.Split(strings.TrimLeft(path, "/"), "/")
	u, err := url.JoinPath(s.baseURL, segments...)
	if err != nil {
		return s.baseURL + "/" + strings.TrimLeft(path, "/")
	}
	return u
}

func (s *GormStore) Download(ctx context.Context, path string) (ports.Asset, error) {
	path = strings.TrimLeft(path, "/")

	var dto AssetDTO
	if err := s.db.WithContext(ctx).First(&dto, "path = ?", path).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Asset{}, errs.NewObjectNotFoundError("asset", path)
		}
		return ports.Asset{}, errs.NewTransientError("download "+path, err)
	}

	return ports.Asset{Path: dto.Path, ContentType: dto.ContentType, Data: dto.Data}, nil
}
