package queries

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"routesync/internal/core/domain/model/kernel"
	"routesync/internal/pkg/errs"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GetDeliveryRecordQueryHandler reads delivery_logs joined with orders.
type GetDeliveryRecordQueryHandler struct {
	db *gorm.DB
}

func NewGetDeliveryRecordQueryHandler(db *gorm.DB) GetDeliveryRecordQueryHandler {
	return GetDeliveryRecordQueryHandler{db: db}
}

func (h GetDeliveryRecordQueryHandler) Handle(
	ctx context.Context,
	query GetDeliveryRecordQuery,
) (GetDeliveryRecordQueryResponse, error) {
	if err := query.Validate(); err != nil {
		return GetDeliveryRecordQueryResponse{}, err
	}

	rows, err := h.db.WithContext(ctx).Raw(`
		SELECT
			d.order_id,
			o.order_number,
			o.status,
			d.signature_name,
			d.notes,
			d.photo_refs,
			d.completed_at
		FROM delivery_logs d
		JOIN orders o ON o.id = d.order_id
		WHERE d.order_id = ?
	`, query.OrderID().Bytes()).Rows()
	if err != nil {
		return GetDeliveryRecordQueryResponse{}, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err = rows.Err(); err != nil {
			return GetDeliveryRecordQueryResponse{}, err
		}
		return GetDeliveryRecordQueryResponse{}, errs.NewObjectNotFoundError("delivery record", query.OrderID().String())
	}

	var (
		resp        GetDeliveryRecordQueryResponse
		id          uuid.UUID
		photoRefs   []byte
		completedAt time.Time
	)
	if err = rows.Scan(
		&id,
		&resp.OrderNumber,
		&resp.Status,
		&resp.SignatureName,
		&resp.Notes,
		&photoRefs,
		&completedAt,
	); err != nil {
		return GetDeliveryRecordQueryResponse{}, err
	}

	if resp.OrderID, err = kernel.UUIDFromBytes(id[:]); err != nil {
		return GetDeliveryRecordQueryResponse{}, err
	}
	if err = json.Unmarshal(photoRefs, &resp.PhotoURLs); err != nil {
		return GetDeliveryRecordQueryResponse{}, fmt.Errorf("decode photo refs: %w", err)
	}
	resp.CompletedAt = completedAt.UTC()

	return resp, rows.Err()
}
