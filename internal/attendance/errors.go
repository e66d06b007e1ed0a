package attendance

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInitializationFailed is returned by InitErr when the relational
	// backend could not be prepared and the service fell back.
	ErrInitializationFailed = errors.New("store initialization failed")
	// ErrOperationFailed is returned when no backend could serve a call.
	ErrOperationFailed = errors.New("store operation failed")
	// ErrValidation marks missing or malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrConstraintViolation marks writes rejected by a uniqueness or
	// reference constraint.
	ErrConstraintViolation = errors.New("constraint violation")
)

// FieldError is used to indicate an error with a specific field.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// ValidationError lists the offending fields.
type ValidationError struct {
	Fields []FieldError
}

func NewValidationError(fields ...FieldError) error {
	return &ValidationError{Fields: fields}
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+" "+f.Error)
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, ", ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// OperationError reports a call that failed on every backend it was tried on.
type OperationError struct {
	Op      string
	Backend Backend
	Err     error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s via %s: %v", e.Op, e.Backend, e.Err)
}

func (e *OperationError) Unwrap() []error { return []error{ErrOperationFailed, e.Err} }

// isDataError reports errors that describe the caller's data rather than the
// health of the backend. They are returned as-is and never retried.
func isDataError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrConstraintViolation)
}
