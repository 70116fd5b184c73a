/*
errors.go - Error taxonomy for the billing engine

PURPOSE:
  All storage-layer error types in one place. Backends translate their
  native failures (SQL constraint, HTTP status) into these so callers can
  branch on errors.Is without knowing which variant is active.

ERROR CATEGORIES:
  1. Validation errors - caller-supplied data violates an invariant
  2. Not-found errors  - operation targets a nonexistent id (recoverable)
  3. Unavailability    - storage engine or network fault, no corruption implied

USAGE:
  if errors.Is(err, billing.ErrNotFound) {
      // expected outcome, e.g. fall back to defaults
  }

SEE ALSO:
  - backend.go: Which operations return which errors
*/
package billing

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned when a record violates an invariant
	// (blank required field, non-positive price or quantity).
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when an operation targets a nonexistent id.
	// This is an expected, recoverable outcome, not a fault.
	ErrNotFound = errors.New("not found")

	// ErrUnavailable is returned for storage-engine or network faults.
	// The data itself is not implied to be corrupt.
	ErrUnavailable = errors.New("backend unavailable")
)

// IsNotFound reports whether err is a not-found outcome.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports which field broke which rule.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NotFoundError reports which record kind and id was missing.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}
