package ports

import (
	"context"
)

// Asset is a stored object.
type Asset struct {
	Path        string
	ContentType string
	Data        []byte
}

// AssetStorage is durable object storage for delivery photos.
// Upload overwrites an existing object at the same path.
type AssetStorage interface {
	Upload(ctx context.Context, path string, data []byte, contentType string) error
	PublicURL(path string) string
	Download(ctx context.Context, path string) (Asset, error)
}
