// Package delivery models proof of delivery: the photos and signature a driver
// collects and the immutable record written when an order is delivered.
package delivery

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"strings"

	"routesync/internal/core/domain/model/kernel"
	"routesync/internal/pkg/errs"
)

// Bucket is the asset storage namespace for delivery photos.
const Bucket = "delivery-photos"

// MaxPhotoSize bounds the bytes of a single photo.
const MaxPhotoSize = 15 << 20

var extensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
	"image/heic": "heic",
}

// Photo is a locally captured image waiting to be uploaded.
type Photo struct {
	ref         string
	contentType string
	data        []byte
}

// NewPhoto accepts JPEG, PNG, WebP and HEIC images.
func NewPhoto(ref, contentType string, data []byte) (Photo, error) {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}
	if _, ok := extensions[contentType]; !ok {
		return Photo{}, errs.NewValueIsInvalidErrorWithCause("photo content type",
			fmt.Errorf("%q is not a supported image type", contentType))
	}
	if len(data) == 0 {
		return Photo{}, errs.NewValueIsRequiredError("photo data")
	}
	if len(data) > MaxPhotoSize {
		return Photo{}, ErrPhotoTooLarge
	}
	return Photo{ref: ref, contentType: contentType, data: data}, nil
}

// Ref is the client-side name of the photo, kept for progress reporting.
func (p Photo) Ref() string         { return p.ref }
func (p Photo) ContentType() string { return p.contentType }
func (p Photo) Data() []byte        { return p.data }
func (p Photo) Size() int           { return len(p.data) }

// AssetPath is the storage path of the photo for orderID. The name is derived
// from the content so that re-uploading the same photo overwrites one object.
func (p Photo) AssetPath(orderID kernel.UUID) string {
	sum := sha256.Sum256(p.data)
	name := hex.EncodeToString(sum[:])[:32] + "." + extensions[p.contentType]
	return path.Join(Bucket, orderID.String(), name)
}
