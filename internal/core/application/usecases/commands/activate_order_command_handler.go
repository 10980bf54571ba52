package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"routesync/internal/core/domain/model/order"
	"routesync/internal/core/domain/model/scan"
	"routesync/internal/pkg/errs"
	"routesync/internal/pkg/metrics"
)

// ActivateOrderCommandHandler moves a scanned order from pending to processing.
//
// The scanned payload is checked against the fingerprint stored in the system
// of record, never against anything else the client sends, so a label copied
// onto another parcel cannot activate it. Every outcome lands in the session's
// scan log; an order number accepted earlier in the session is answered with
// scan.ErrAlreadyScanned without asking the backend.
//
// Example:
//
//	cmd, err := NewActivateOrderCommand(`{"order_number":"ORD-100"}`)
//	if err != nil {
//	    return err
//	}
//	activated, err := handler.Handle(ctx, cmd)
//	switch {
//	case errors.Is(err, scan.ErrFingerprintMismatch):
//	    // hard rejection, do not retry
//	case errors.Is(err, errs.ErrConflict):
//	    // order already moved on
//	}
type ActivateOrderCommandHandler struct {
	lookup  OrderLookup
	store   OrderStore
	scans   ScanLog
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewActivateOrderCommandHandler(
	lookup OrderLookup, store OrderStore, scans ScanLog, logger *slog.Logger, m *metrics.Metrics,
) ActivateOrderCommandHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return ActivateOrderCommandHandler{
		lookup:  lookup,
		store:   store,
		scans:   scans,
		logger:  logger.With("component", "ActivateOrderCommandHandler"),
		metrics: m,
		now:     time.Now,
	}
}

// Handle returns the activated order.
func (h ActivateOrderCommandHandler) Handle(ctx context.Context, cmd ActivateOrderCommand) (*order.Order, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	payload, err := scan.DecodePayload(cmd.Payload())
	if err != nil {
		return nil, h.reject("", scan.Hash(cmd.Payload()), err)
	}
	number, hash := payload.OrderNumber(), payload.Hash()

	if h.scans.WasAccepted(number) {
		return nil, h.reject(number, hash, scan.ErrAlreadyScanned)
	}

	found, fingerprint, err := h.lookup.FindOrderByNumber(ctx, number)
	if err != nil {
		return nil, h.reject(number, hash, err)
	}

	if err = fingerprint.Verify(payload); err != nil {
		return nil, h.reject(number, hash, err)
	}

	if found.Status() != order.Pending {
		return nil, h.reject(number, hash, fmt.Errorf("%w: status is %s", scan.ErrAlreadyProcessed, found.Status()))
	}

	activated, err := h.store.ApplyTransition(ctx, found.ID(), order.Pending, order.Processing, order.OriginScan)
	if err != nil {
		return nil, h.reject(number, hash, err)
	}

	h.scans.Record(scan.Event{
		OrderNumber: number,
		PayloadHash: hash,
		Timestamp:   h.now(),
		Outcome:     scan.Accepted,
	})
	h.metrics.ObserveScan(string(scan.Accepted), "")
	h.logger.Info("order activated", "order_number", number, "order_id", found.ID().String())

	return activated, nil
}

func (h ActivateOrderCommandHandler) reject(number, hash string, err error) error {
	reason := rejectionReason(err)
	h.scans.Record(scan.Event{
		OrderNumber: number,
		PayloadHash: hash,
		Timestamp:   h.now(),
		Outcome:     scan.Rejected,
		Reason:      reason,
	})
	h.metrics.ObserveScan(string(scan.Rejected), reason)

	level := slog.LevelInfo
	if errors.Is(err, errs.ErrIntegrity) {
		level = slog.LevelWarn
	}
	h.logger.Log(context.Background(), level, "scan rejected", "order_number", number, "reason", reason, "error", err)
	return err
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, scan.ErrMalformedPayload):
		return "malformed_payload"
	case errors.Is(err, scan.ErrAlreadyScanned):
		return "already_scanned"
	case errors.Is(err, errs.ErrObjectNotFound):
		return "order_not_found"
	case errors.Is(err, scan.ErrFingerprintMismatch):
		return "fingerprint_mismatch"
	case errors.Is(err, scan.ErrAlreadyProcessed):
		return "already_processed"
	case errors.Is(err, order.ErrStaleTransition):
		return "stale_transition"
	default:
		return "backend_error"
	}
}
