package ports

import (
	"context"

	"routesync/internal/core/domain/model/kernel"
)

// SessionContext supplies the authenticated driver of a request.
type SessionContext interface {
	CurrentDriverID(ctx context.Context) (kernel.UUID, bool)
}
