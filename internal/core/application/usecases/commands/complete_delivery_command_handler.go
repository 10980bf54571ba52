package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"routesync/internal/core/domain/model/delivery"
	"routesync/internal/core/domain/model/order"
	"routesync/internal/core/ports"
	"routesync/internal/pkg/errs"
	"routesync/internal/pkg/metrics"
)

// CompleteDeliveryResult is the terminal outcome of a delivery completion.
type CompleteDeliveryResult struct {
	Order  *order.Order
	Record delivery.Record
	// AlreadyDelivered is set when another submission committed first.
	AlreadyDelivered bool
}

// ProgressFunc is called after each photo upload.
type ProgressFunc func(delivery.Progress)

// CompleteDeliveryCommandHandler uploads the delivery photos one by one and
// then commits the delivered status together with the delivery record.
//
// Preconditions are checked before any network call, in this order: the order
// is not delivered yet, the signature is present, and there are one to four
// photos. Photo paths are derived from the photo content, so re-submitting
// after a failure overwrites what the failed attempt left behind. Once the
// first upload has started the work is no longer tied to the caller's
// context: it runs to success or to an explicit failure.
type CompleteDeliveryCommandHandler struct {
	store   OrderStore
	storage ports.AssetStorage
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewCompleteDeliveryCommandHandler(
	store OrderStore, storage ports.AssetStorage, logger *slog.Logger, m *metrics.Metrics,
) CompleteDeliveryCommandHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return CompleteDeliveryCommandHandler{
		store:   store,
		storage: storage,
		logger:  logger.With("component", "CompleteDeliveryCommandHandler"),
		metrics: m,
		now:     time.Now,
	}
}

// Handle runs the completion synchronously. progress may be nil.
func (h CompleteDeliveryCommandHandler) Handle(
	ctx context.Context, cmd CompleteDeliveryCommand, progress ProgressFunc,
) (CompleteDeliveryResult, error) {
	result, err := h.handle(ctx, cmd, progress)
	h.metrics.ObserveDelivery(deliveryOutcome(result, err))
	return result, err
}

func (h CompleteDeliveryCommandHandler) handle(
	ctx context.Context, cmd CompleteDeliveryCommand, progress ProgressFunc,
) (CompleteDeliveryResult, error) {
	if err := cmd.Validate(); err != nil {
		return CompleteDeliveryResult{}, err
	}
	if progress == nil {
		progress = func(delivery.Progress) {}
	}
	orderID := cmd.OrderID()
	log := h.logger.With("order_id", orderID.String())

	cached, ok := h.store.Find(orderID)
	if !ok {
		return CompleteDeliveryResult{}, errs.NewObjectNotFoundError("order", orderID.String())
	}
	if cached.Status() == order.Delivered {
		return CompleteDeliveryResult{}, delivery.ErrAlreadyDelivered
	}

	proof, err := delivery.NewProof(orderID, cmd.SignatureName(), cmd.Notes(), cmd.Photos())
	if err != nil {
		return CompleteDeliveryResult{}, err
	}

	if cached.Status() != order.Processing {
		return CompleteDeliveryResult{}, order.NewStaleTransitionError(
			orderID.String(), order.Processing, order.Delivered, cached.Status())
	}

	if err = ctx.Err(); err != nil {
		log.Info("completion abandoned before upload", "error", err)
		return CompleteDeliveryResult{}, err
	}
	ctx = context.WithoutCancel(ctx)

	photos := proof.Photos()
	total := len(photos)
	refs := make([]string, 0, total)
	for i, photo := range photos {
		path := photo.AssetPath(orderID)
		started := h.now()
		if err = h.storage.Upload(ctx, path, photo.Data(), photo.ContentType()); err != nil {
			log.Warn("photo upload failed", "index", i, "total", total, "path", path, "error", err)
			return CompleteDeliveryResult{}, delivery.NewUploadError(i, total, err)
		}
		h.metrics.ObserveUpload(h.now().Sub(started))
		refs = append(refs, h.storage.PublicURL(path))
		progress(delivery.Progress{Completed: i + 1, Total: total})
	}

	record, err := delivery.NewRecord(proof, refs, h.now())
	if err != nil {
		return CompleteDeliveryResult{}, err
	}

	delivered, alreadyDelivered, err := h.store.CompleteDelivery(ctx, record)
	if err != nil {
		if !errors.Is(err, errs.ErrConflict) && !errors.Is(err, errs.ErrObjectNotFound) && !errs.IsTransient(err) {
			err = errs.NewTransientError("commit delivery", err)
		}
		return CompleteDeliveryResult{}, fmt.Errorf("photos uploaded, commit failed: %w", err)
	}

	log.Info("delivery completed", "photos", total, "already_delivered", alreadyDelivered)
	return CompleteDeliveryResult{
		Order:            delivered,
		Record:           record,
		AlreadyDelivered: alreadyDelivered,
	}, nil
}

func deliveryOutcome(result CompleteDeliveryResult, err error) string {
	switch {
	case err == nil && result.AlreadyDelivered:
		return "already_delivered"
	case err == nil:
		return "delivered"
	case errors.Is(err, delivery.ErrUploadFailed):
		return "upload_failed"
	case errors.Is(err, errs.ErrConflict):
		return "conflict"
	case errors.Is(err, errs.ErrValueIsRequired), errors.Is(err, errs.ErrValueIsOutOfRange):
		return "invalid"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "abandoned"
	default:
		return "failed"
	}
}
