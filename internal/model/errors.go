package model

import (
	"errors"
	"fmt"
)

// Shared error taxonomy translated by the HTTP layer. Services wrap these
// with fmt.Errorf("...: %w", err) so call sites can use errors.Is.
var (
	// ErrNotFound covers missing documents/ratings/users and syntactically
	// invalid ids.
	ErrNotFound = errors.New("not found")
	// ErrForbidden means the resource exists but the visibility predicate
	// rejected the caller. Kept distinct from ErrNotFound internally; the
	// HTTP layer may collapse the two to avoid existence disclosure.
	ErrForbidden = errors.New("access denied")
	// ErrUnavailable is returned when the store fails mid-operation. The
	// failed operation is guaranteed to have left no partial write.
	ErrUnavailable = errors.New("store unavailable")
)

// ValidationError reports malformed caller input, always naming the field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// NewValidationError builds a ValidationError for the given field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// AsValidationError unwraps err into a *ValidationError if possible.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	ok := errors.As(err, &ve)
	return ve, ok
}
