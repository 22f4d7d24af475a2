/*
errors.go - Centralized error types for the derivation engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Entity packages and stores wrap these errors with additional context.

ERROR CATEGORIES:
  1. Input errors - Rejected entity type, unparsable field values
  2. Store errors - Missing records, missing schemas

PARTIAL SUCCESS:
  A malformed date or percentage only disables the rule that reads it. Derive
  returns the remaining patch and alerts together with the joined field
  errors, so callers check both:

    result, err := engine.Derive(input)
    if result == nil {
        return err // rejected input, nothing to apply
    }
    if err != nil {
        log.Warn("partial derivation", zap.Error(err))
    }

SEE ALSO:
  - engine.go: Produces these errors
  - api/handlers.go: Maps them to HTTP status codes
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidEntityType is returned when the entity type is outside the
	// registered closed set. No partial result accompanies it.
	ErrInvalidEntityType = errors.New("invalid entity type")

	// ErrInvalidDate is returned when a date field is present but unparsable.
	ErrInvalidDate = errors.New("invalid date")

	// ErrInvalidPercentage is returned when a percentage is not an integer in 0..100.
	ErrInvalidPercentage = errors.New("invalid percentage")

	// ErrInvalidStatus is returned when a status is outside the schema's closed set.
	ErrInvalidStatus = errors.New("invalid status")

	// ErrInvalidPriority is returned when a priority is not one of AllPriorities.
	ErrInvalidPriority = errors.New("invalid priority")

	// ErrInvalidSchema is returned when a schema document is inconsistent.
	ErrInvalidSchema = errors.New("invalid schema")

	// ErrRecordNotFound is returned when a referenced record doesn't exist.
	ErrRecordNotFound = errors.New("record not found")

	// ErrSchemaNotFound is returned when no schema override is stored for an entity type.
	ErrSchemaNotFound = errors.New("schema not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidEntityTypeError names the rejected entity type.
type InvalidEntityTypeError struct {
	EntityType EntityType
}

func (e *InvalidEntityTypeError) Error() string {
	return fmt.Sprintf("invalid entity type: %q", string(e.EntityType))
}

func (e *InvalidEntityTypeError) Unwrap() error {
	return ErrInvalidEntityType
}

// InvalidFieldError reports a snapshot value the engine could not read.
// Err is ErrInvalidDate or ErrInvalidPercentage, or ErrInvalidStatus /
// ErrInvalidPriority when a caller rejects an edit.
type InvalidFieldError struct {
	Field Field
	Value any
	Err   error
}

func (e *InvalidFieldError) Error() string {
	return fmt.Sprintf("%v: field %s has value %v", e.Err, e.Field, e.Value)
}

func (e *InvalidFieldError) Unwrap() error {
	return e.Err
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidEntityType) ||
		errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrInvalidPercentage) ||
		errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, ErrInvalidPriority) ||
		errors.Is(err, ErrInvalidSchema)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRecordNotFound) ||
		errors.Is(err, ErrSchemaNotFound)
}

// FieldErrors unpacks the per-field errors of a partial derivation.
func FieldErrors(err error) []*InvalidFieldError {
	if err == nil {
		return nil
	}
	var out []*InvalidFieldError
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			out = append(out, FieldErrors(e)...)
		}
		return out
	}
	var fe *InvalidFieldError
	if errors.As(err, &fe) {
		out = append(out, fe)
	}
	return out
}
