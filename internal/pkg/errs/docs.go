// Package errs provides the standardized error types of routesync.
//
// Validation failures are reported through ValueIsRequiredError,
// ValueIsInvalidError and ValueIsOutOfRangeError, missing objects through
// ObjectNotFoundError, and backend or network failures through TransientError.
//
// Beyond the concrete types the package defines error classes used by the
// order lifecycle engine. Domain errors unwrap to exactly one class so callers
// can decide how to recover with errors.Is:
//
//   - ErrValueIsRequired, ErrValueIsInvalid, ErrValueIsOutOfRange: the user corrects the input
//   - ErrConflict: the order already moved on; refresh and inform the user
//   - ErrIntegrity: hard rejection, never retried silently
//   - ErrTransient: retry with backoff where the operation is idempotent
//   - ErrObjectNotFound: surfaced immediately
package errs
