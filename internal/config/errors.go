package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidConfig matches every configuration error via errors.Is.
var ErrInvalidConfig = errors.New("invalid configuration")

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// Is reports whether target is ErrInvalidConfig.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors struct {
	Errors []*ValidationError
}

func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 0 {
		return "no validation errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e.Errors)))
	for i, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Is reports whether target is ErrInvalidConfig.
func (e *ValidationErrors) Is(target error) bool {
	return target == ErrInvalidConfig
}

// Add adds an error to the collection.
func (e *ValidationErrors) Add(field, message string) {
	e.Errors = append(e.Errors, &ValidationError{Field: field, Message: message})
}

// Merge appends err to the collection, flattening nested validation errors.
func (e *ValidationErrors) Merge(err error) {
	if err == nil {
		return
	}

	var many *ValidationErrors
	var one *ValidationError
	switch {
	case errors.As(err, &many):
		e.Errors = append(e.Errors, many.Errors...)
	case errors.As(err, &one):
		e.Errors = append(e.Errors, one)
	default:
		e.Add("", err.Error())
	}
}

// HasErrors returns true if there are any errors.
func (e *ValidationErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

// Err returns the collection as an error, or nil when it is empty.
func (e *ValidationErrors) Err() error {
	if !e.HasErrors() {
		return nil
	}
	return e
}
