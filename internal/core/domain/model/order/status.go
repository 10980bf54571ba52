package order

import (
	"fmt"

	"routesync/internal/pkg/errs"
)

// Status is the canonical lifecycle state of an order, stored verbatim as text.
//
// State transitions:
//
//	pending ──> processing ──> delivered
//	   │             │
//	   └─────────────┴──> cancelled   (dispatcher override)
//
// finished and shipped are canonical values written by other systems. They are
// stored and displayed as-is but no transition leads into or out of them.
type Status string

const (
	Unknown    Status = ""
	Pending    Status = "pending"
	Processing Status = "processing"
	Delivered  Status = "delivered"
	Cancelled  Status = "cancelled"
	Finished   Status = "finished"
	Shipped    Status = "shipped"
)

// DisplayGroup buckets statuses for presentation only.
type DisplayGroup string

const (
	GroupAwaiting  DisplayGroup = "awaiting"
	GroupInTransit DisplayGroup = "in_transit"
	GroupDelivered DisplayGroup = "delivered"
	GroupCancelled DisplayGroup = "cancelled"
	GroupUnknown   DisplayGroup = "unknown"
)

type edge struct {
	from Status
	to   Status
}

// legalEdges is the complete transition table; everything else is illegal.
var legalEdges = map[edge]struct{}{
	{Pending, Processing}:   {},
	{Processing, Delivered}: {},
	{Pending, Cancelled}:    {},
	{Processing, Cancelled}: {},
}

func knownStatuses() map[Status]struct{} {
	return map[Status]struct{}{
		Pending:    {},
		Processing: {},
		Delivered:  {},
		Cancelled:  {},
		Finished:   {},
		Shipped:    {},
	}
}

// ParseStatus converts a stored value into a Status, rejecting unknown values.
func ParseStatus(s string) (Status, error) {
	status := Status(s)
	if err := status.Validate(); err != nil {
		return Unknown, err
	}
	return status, nil
}

// Validate rejects Unknown and any value outside the canonical set.
func (s Status) Validate() error {
	if _, ok := knownStatuses()[s]; !ok {
		return errs.NewValueIsInvalidErrorWithCause("status", fmt.Errorf("%q is not a valid status", string(s)))
	}
	return nil
}

func (s Status) String() string {
	if s == Unknown {
		return "unknown"
	}
	return string(s)
}

// IsTerminal reports whether no further transition can leave s.
func (s Status) IsTerminal() bool {
	return s == Delivered || s == Cancelled
}

// DisplayGroup maps processing, finished and shipped to the in-transit group.
func (s Status) DisplayGroup() DisplayGroup {
	switch s {
	case Pending:
		return GroupAwaiting
	case Processing, Finished, Shipped:
		return GroupInTransit
	case Delivered:
		return GroupDelivered
	case Cancelled:
		return GroupCancelled
	default:
		return GroupUnknown
	}
}

// CanTransitionTo reports whether (s, to) is a legal edge.
func (s Status) CanTransitionTo(to Status) bool {
	_, ok := legalEdges[edge{from: s, to: to}]
	return ok
}

// ValidateTransition returns an IllegalTransition error when (from, to) is not a legal edge.
func ValidateTransition(from, to Status) error {
	if from.CanTransitionTo(to) {
		return nil
	}
	return &TransitionError{Kind: IllegalTransition, From: from, To: to, Actual: from}
}
