package commands

import (
	"errors"
	"strings"

	"routesync/internal/core/domain/model/scan"
	"routesync/internal/pkg/guard"
)

var ErrActivateOrderCommandIsNotConstructed = errors.New(
	"ActivateOrderCommand must be created via NewActivateOrderCommand constructor",
)

// ActivateOrderCommand carries the raw text of a scanned QR code.
type ActivateOrderCommand struct {
	payload string

	guard guard.ConstructorGuard
}

// NewActivateOrderCommand rejects blank scans with scan.ErrMalformedPayload.
func NewActivateOrderCommand(payload string) (ActivateOrderCommand, error) {
	if strings.TrimSpace(payload) == "" {
		return ActivateOrderCommand{}, scan.ErrMalformedPayload
	}
	return ActivateOrderCommand{
		payload: payload,
		guard:   guard.NewConstructorGuard(),
	}, nil
}

func (c ActivateOrderCommand) Validate() error {
	return c.guard.Validate(ErrActivateOrderCommandIsNotConstructed)
}

func (c ActivateOrderCommand) Payload() string {
	return c.payload
}
