package listing

import (
	"errors"
	"strings"
)

// ErrInvalidInput matches every *ValidationError through errors.Is.
var ErrInvalidInput = errors.New("invalid listing input")

const (
	reasonRequired   = "is required"
	reasonText       = "must be text"
	reasonInteger    = "must be an integer"
	reasonNumber     = "must be a number"
	reasonPhotoURL   = "must be an http(s) URL or an absolute path"
	reasonNeedsPhoto = "at least one photo is required"
)

// FieldError names one violated field and why.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError lists every violated field of an input.
type ValidationError struct {
	Fields []FieldError
}

// NewValidationError builds a ValidationError from fields.
func NewValidationError(fields ...FieldError) *ValidationError {
	return &ValidationError{Fields: fields}
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Reason)
	}
	return ErrInvalidInput.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// Has reports whether field is among the violations.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}
