// Package driver models the people who run routes.
package driver

import (
	"errors"
	"fmt"
	"strings"

	"routesync/internal/core/domain/model/kernel"
	"routesync/internal/pkg/errs"
)

// ErrDriverIsInactive is returned when a deactivated driver tries to open a session.
var ErrDriverIsInactive = fmt.Errorf("%w: driver is inactive", errs.ErrValueIsInvalid)

type Driver struct {
	id     kernel.UUID
	name   string
	email  string
	active bool
}

func NewDriver(id kernel.UUID, name, email string, active bool) (*Driver, error) {
	var nameErr error
	if strings.TrimSpace(name) == "" {
		nameErr = errs.NewValueIsRequiredError("driver name")
	}
	if err := errors.Join(id.Validate(), nameErr); err != nil {
		return nil, err
	}
	return &Driver{
		id:     id,
		name:   strings.TrimSpace(name),
		email:  strings.ToLower(strings.TrimSpace(email)),
		active: active,
	}, nil
}

func (d *Driver) ID() kernel.UUID { return d.id }
func (d *Driver) Name() string    { return d.name }
func (d *Driver) Email() string   { return d.email }
func (d *Driver) IsActive() bool  { return d.active }

// CanOpenSession fails with ErrDriverIsInactive for deactivated drivers.
func (d *Driver) CanOpenSession() error {
	if !d.active {
		return ErrDriverIsInactive
	}
	return nil
}
