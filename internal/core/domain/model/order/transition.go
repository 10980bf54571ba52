package order

import (
	"errors"
	"fmt"

	"routesync/internal/pkg/errs"
)

var (
	ErrIllegalTransition = errors.New("illegal transition")
	ErrStaleTransition   = errors.New("stale transition")
)

// Origin names the actor that requested a transition.
type Origin string

const (
	OriginScan       Origin = "scan"
	OriginCompletion Origin = "completion"
	OriginDispatcher Origin = "dispatcher"
	OriginRealtime   Origin = "realtime"
)

func (o Origin) String() string {
	return string(o)
}

// TransitionErrorKind distinguishes a forbidden edge from a lost race.
type TransitionErrorKind int

const (
	// IllegalTransition means (From, To) is not in the transition table.
	IllegalTransition TransitionErrorKind = iota + 1
	// StaleTransition means the stored status was no longer From; Actual holds what was found.
	StaleTransition
)

// TransitionError is returned by every failed status transition.
//
// It unwraps to ErrIllegalTransition and errs.ErrValueIsInvalid, or to
// ErrStaleTransition and errs.ErrConflict, so callers can branch with errors.Is.
type TransitionError struct {
	Kind    TransitionErrorKind
	OrderID string
	From    Status
	To      Status
	Actual  Status
}

func (e *TransitionError) Error() string {
	subject := "order"
	if e.OrderID != "" {
		subject = "order " + e.OrderID
	}
	if e.Kind == StaleTransition {
		return fmt.Sprintf("%s: %s %s -> %s: status is already %s",
			ErrStaleTransition, subject, e.From, e.To, e.Actual)
	}
	return fmt.Sprintf("%s: %s %s -> %s", ErrIllegalTransition, subject, e.From, e.To)
}

func (e *TransitionError) Unwrap() []error {
	if e.Kind == StaleTransition {
		return []error{ErrStaleTransition, errs.ErrConflict}
	}
	return []error{ErrIllegalTransition, errs.ErrValueIsInvalid}
}

// NewStaleTransitionError reports that another origin already moved the order to actual.
func NewStaleTransitionError(orderID string, from, to, actual Status) *TransitionError {
	return &TransitionError{Kind: StaleTransition, OrderID: orderID, From: from, To: to, Actual: actual}
}
