package services

import (
	"errors"
	"sort"
	"strings"
)

// Sentinel errors returned by the services. Handlers map them to HTTP status
// codes; callers should test with errors.Is.
var (
	// ErrNotFound covers both missing rows and rows owned by another user.
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("already exists")
	ErrInvalidCredentials = errors.New("unable to authenticate with provided credentials")
)

// ValidationError reports field-level problems with a payload.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+" "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
