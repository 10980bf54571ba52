package http

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"routesync/internal/core/application/usecases/commands"
	"routesync/internal/core/domain/model/delivery"
	"routesync/internal/core/domain/model/order"

	"github.com/labstack/echo/v4"
)

// CompleteDelivery handles POST /api/v1/orders/{orderId}/delivery.
//
// The body is multipart: signature_name, notes and one to four photos. With
// Accept: text/event-stream the response streams a progress event per
// uploaded photo followed by a result or error event.
func (s *Server) CompleteDelivery(ctx echo.Context) error {
	orderID, err := parseOrderID(ctx)
	if err != nil {
		return badRequest(ctx, "invalid order id")
	}
	sess, err := s.currentSession(ctx)
	if err != nil {
		return s.fail(ctx, err)
	}
	// A resubmission answers 409 whatever its photos look like.
	if o, ok := sess.Store().Find(orderID); ok && o.Status() == order.Delivered {
		return s.fail(ctx, delivery.ErrAlreadyDelivered)
	}

	form, err := ctx.MultipartForm()
	if err != nil {
		return badRequest(ctx, "invalid multipart form")
	}
	photos, err := readPhotos(form.File["photos"])
	if err != nil {
		return s.fail(ctx, err)
	}

	cmd, err := commands.NewCompleteDeliveryCommand(orderID, ctx.FormValue("signature_name"), ctx.FormValue("notes"), photos)
	if err != nil {
		return s.fail(ctx, err)
	}
	handler := sess.CompleteDelivery()

	if !strings.Contains(ctx.Request().Header.Get(echo.HeaderAccept), "text/event-stream") {
		result, err := handler.Handle(ctx.Request().Context(), cmd, nil)
		if err != nil {
			return s.fail(ctx, err)
		}
		return ctx.JSON(http.StatusOK, s.toDeliveryResult(result))
	}

	submission := handler.Submit(ctx.Request().Context(), cmd)
	w := startEventStream(ctx)
	for p := range submission.Progress() {
		if err := writeEvent(w, "progress", toProgress(p)); err != nil {
			s.logger.Debug("progress stream closed by client", "order_id", orderID.String(), "error", err)
		}
	}

	result, err := submission.Wait()
	if err != nil {
		_ = writeEvent(w, "error", s.errorBody(ctx, err))
		return nil
	}
	_ = writeEvent(w, "result", s.toDeliveryResult(result))
	return nil
}

func (s *Server) toDeliveryResult(result commands.CompleteDeliveryResult) DeliveryResult {
	urls := result.Record.PhotoRefs()
	if urls == nil {
		urls = []string{}
	}
	return DeliveryResult{
		Order:            fromDomainOrder(result.Order),
		AlreadyDelivered: result.AlreadyDelivered,
		PhotoURLs:        urls,
		CompletedAt:      result.Record.CompletedAt(),
	}
}

func readPhotos(files []*multipart.FileHeader) ([]delivery.Photo, error) {
	photos := make([]delivery.Photo, 0, len(files))
	for _, fh := range files {
		data, err := readPart(fh)
		if err != nil {
			return nil, err
		}
		photo, err := delivery.NewPhoto(fh.Filename, fh.Header.Get(echo.HeaderContentType), data)
		if err != nil {
			return nil, err
		}
		photos = append(photos, photo)
	}
	return photos, nil
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	if fh.Size > delivery.MaxPhotoSize {
		return nil, delivery.ErrPhotoTooLarge
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open photo %s: %w", fh.Filename, err)
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, delivery.MaxPhotoSize+1))
}
