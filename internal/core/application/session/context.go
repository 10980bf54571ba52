package session

import (
	"context"

	"routesync/internal/core/domain/model/kernel"
	"routesync/internal/core/ports"
)

type driverKey struct{}

// WithDriverID returns a context carrying the authenticated driver.
func WithDriverID(ctx context.Context, driverID kernel.UUID) context.Context {
	return context.WithValue(ctx, driverKey{}, driverID)
}

// DriverFromContext returns the driver stored by WithDriverID.
func DriverFromContext(ctx context.Context) (kernel.UUID, bool) {
	id, ok := ctx.Value(driverKey{}).(kernel.UUID)
	if !ok || id.Validate() != nil {
		return kernel.UUID{}, false
	}
	return id, true
}

// RequestContext resolves the current driver from the request context.
type RequestContext struct{}

var _ ports.SessionContext = RequestContext{}

func (RequestContext) CurrentDriverID(ctx context.Context) (kernel.UUID, bool) {
	return DriverFromContext(ctx)
}
