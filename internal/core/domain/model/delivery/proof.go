package delivery

import (
	"slices"
	"strings"
	"time"

	"routesync/internal/core/domain/model/kernel"
	"routesync/internal/pkg/errs"
)

// MaxPhotos is the largest number of photos a proof may carry.
const MaxPhotos = 4

// Proof is what the driver submits to complete a delivery.
type Proof struct {
	orderID       kernel.UUID
	signatureName string
	notes         string
	photos        []Photo
}

// NewProof checks the signature first, then the photo count.
func NewProof(orderID kernel.UUID, signatureName, notes string, photos []Photo) (Proof, error) {
	if err := orderID.Validate(); err != nil {
		return Proof{}, err
	}
	signatureName = strings.TrimSpace(signatureName)
	if signatureName == "" {
		return Proof{}, ErrMissingSignature
	}
	if len(photos) == 0 {
		return Proof{}, ErrMissingPhoto
	}
	if len(photos) > MaxPhotos {
		return Proof{}, ErrTooManyPhotos
	}
	return Proof{
		orderID:       orderID,
		signatureName: signatureName,
		notes:         strings.TrimSpace(notes),
		photos:        slices.Clone(photos),
	}, nil
}

func (p Proof) OrderID() kernel.UUID  { return p.orderID }
func (p Proof) SignatureName() string { return p.signatureName }
func (p Proof) Notes() string         { return p.notes }
func (p Proof) Photos() []Photo       { return slices.Clone(p.photos) }

// Record is the immutable proof of a delivered order.
type Record struct {
	orderID       kernel.UUID
	signatureName string
	notes         string
	photoRefs     []string
	completedAt   time.Time
}

// NewRecord builds the record committed together with the delivered status.
// photoRefs are the durable references returned by asset storage, in upload order.
func NewRecord(proof Proof, photoRefs []string, completedAt time.Time) (Record, error) {
	return RestoreRecord(proof.orderID, proof.signatureName, proof.notes, photoRefs, completedAt)
}

func RestoreRecord(
	orderID kernel.UUID, signatureName, notes string, photoRefs []string, completedAt time.Time,
) (Record, error) {
	if err := orderID.Validate(); err != nil {
		return Record{}, err
	}
	if strings.TrimSpace(signatureName) == "" {
		return Record{}, ErrMissingSignature
	}
	if len(photoRefs) == 0 {
		return Record{}, ErrMissingPhoto
	}
	if len(photoRefs) > MaxPhotos {
		return Record{}, ErrTooManyPhotos
	}
	for _, ref := range photoRefs {
		if strings.TrimSpace(ref) == "" {
			return Record{}, errs.NewValueIsRequiredError("photo reference")
		}
	}
	if completedAt.IsZero() {
		return Record{}, errs.NewValueIsRequiredError("completed at")
	}
	return Record{
		orderID:       orderID,
		signatureName: strings.TrimSpace(signatureName),
		notes:         strings.TrimSpace(notes),
		photoRefs:     slices.Clone(photoRefs),
		completedAt:   completedAt.UTC(),
	}, nil
}

func (r Record) OrderID() kernel.UUID   { return r.orderID }
func (r Record) SignatureName() string  { return r.signatureName }
func (r Record) Notes() string          { return r.notes }
func (r Record) PhotoRefs() []string    { return slices.Clone(r.photoRefs) }
func (r Record) CompletedAt() time.Time { return r.completedAt }

// Progress reports how many photos of the submission have been uploaded.
type Progress struct {
	Completed int
	Total     int
}
