// Package route models a driver's daily bundle of orders.
package route

import (
	"errors"
	"slices"
	"time"

	"routesync/internal/core/domain/model/kernel"
	"routesync/internal/pkg/errs"
)

var ErrPackageIsNotConstructed = errors.New("Package must be created via NewPackage constructor")

// DateLayout is the calendar-day format used on the wire and in storage.
const DateLayout = time.DateOnly

// Package groups the orders assigned to one driver for one calendar date.
// The sequence is computed elsewhere and kept as supplied.
type Package struct {
	id       kernel.UUID
	driverID kernel.UUID
	date     time.Time
	sequence []kernel.UUID

	isConstructed bool
}

// NewPackage normalizes date to midnight UTC of its calendar day and rejects
// sequences that list an order twice.
func NewPackage(id, driverID kernel.UUID, date time.Time, sequence []kernel.UUID) (*Package, error) {
	var dateErr, seqErr error
	if date.IsZero() {
		dateErr = errs.NewValueIsRequiredError("package date")
	}

	seen := make(map[kernel.UUID]struct{}, len(sequence))
	for _, orderID := range sequence {
		if _, dup := seen[orderID]; dup {
			seqErr = errs.NewValueIsInvalidError("package sequence: order " + orderID.String() + " listed twice")
			break
		}
		seen[orderID] = struct{}{}
	}

	if err := errors.Join(id.Validate(), driverID.Validate(), dateErr, seqErr); err != nil {
		return nil, err
	}

	return &Package{
		id:            id,
		driverID:      driverID,
		date:          Day(date),
		sequence:      slices.Clone(sequence),
		isConstructed: true,
	}, nil
}

// Day truncates t to its calendar day in UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (p *Package) Validate() error {
	if p == nil || !p.isConstructed {
		return ErrPackageIsNotConstructed
	}
	return nil
}

func (p *Package) ID() kernel.UUID       { return p.id }
func (p *Package) DriverID() kernel.UUID { return p.driverID }
func (p *Package) Date() time.Time       { return p.date }

// Sequence returns the delivery order of the package's orders.
func (p *Package) Sequence() []kernel.UUID {
	return slices.Clone(p.sequence)
}

func (p *Package) Contains(orderID kernel.UUID) bool {
	return p.Position(orderID) >= 0
}

// Position returns the index of orderID in the sequence, or -1.
func (p *Package) Position(orderID kernel.UUID) int {
	return slices.Index(p.sequence, orderID)
}
