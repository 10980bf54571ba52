// Package order provides the Order aggregate and its lifecycle state machine.
//
// The package includes:
//   - Order: identity, customer, schedule, items and canonical status
//   - Status: the canonical status values and the legal transition table
//   - TransitionError: the typed failure of a status change (illegal or stale)
//   - Origin: who asked for a transition (scan, completion, dispatcher)
//
// Key business rules:
//   - pending -> processing (QR activation), processing -> delivered (completion)
//   - pending|processing -> cancelled only through a dispatcher override
//   - re-applying a transition whose target is already reached is a no-op success
//   - finished and shipped are stored verbatim and never inferred
package order
