package delivery

import (
	"errors"
	"fmt"

	"routesync/internal/pkg/errs"
)

var (
	ErrAlreadyDelivered = fmt.Errorf("%w: order already delivered", errs.ErrConflict)
	ErrMissingSignature = fmt.Errorf("%w: signature name", errs.ErrValueIsRequired)
	ErrMissingPhoto     = fmt.Errorf("%w: at least one delivery photo", errs.ErrValueIsRequired)
	ErrTooManyPhotos    = fmt.Errorf("%w: at most %d delivery photos", errs.ErrValueIsOutOfRange, MaxPhotos)
	ErrPhotoTooLarge    = fmt.Errorf("%w: photo exceeds %d bytes", errs.ErrValueIsOutOfRange, MaxPhotoSize)
	ErrUploadFailed     = errors.New("photo upload failed")
)

// UploadError reports the zero-based index of the photo whose upload failed.
// Photos before Index are left in storage; re-submitting overwrites them.
type UploadError struct {
	Index int
	Total int
	Cause error
}

func NewUploadError(index, total int, cause error) *UploadError {
	return &UploadError{Index: index, Total: total, Cause: cause}
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("%s: photo %d of %d: %v", ErrUploadFailed, e.Index+1, e.Total, e.Cause)
}

func (e *UploadError) Unwrap() []error {
	return []error{ErrUploadFailed, errs.ErrTransient, e.Cause}
}
