package taxonomy

import (
	"errors"
	"fmt"
)

// ErrTaxonomy is the sentinel wrapped by every taxonomy validation failure
var ErrTaxonomy = errors.New("invalid taxonomy")

// ValidationError describes the first problem found in a taxonomy definition
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrTaxonomy, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrTaxonomy
}

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
