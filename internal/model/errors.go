package model

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")

	// ErrEmptyInput is the InputError of the request lifecycle.
	ErrEmptyInput = errors.New("empty message")
	// ErrAllProvidersFailed is returned when every completion provider failed.
	ErrAllProvidersFailed = errors.New("all completion providers failed")
	// ErrMediaFailed is returned when a media provider failed. Media has no fallback.
	ErrMediaFailed = errors.New("media provider failed")
)

// QuotaExceededError reports a rejected admission and carries the limit that was hit.
type QuotaExceededError struct {
	Kind  UsageKind
	Limit int
}

func (e QuotaExceededError) Error() string {
	return fmt.Sprintf("%s quota exceeded: limit %d per day", e.Kind, e.Limit)
}

// IsQuotaExceeded checks if err is a QuotaExceededError (including wrapped errors).
func IsQuotaExceeded(err error) bool {
	var qe QuotaExceededError
	return errors.As(err, &qe)
}

// ProviderError records which upstream failed and why. It is only ever logged.
type ProviderError struct {
	Provider string
	Err      error
}

func (e ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e ProviderError) Unwrap() error { return e.Err }

// ValidationError represents a rejected request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) ValidationError {
	return ValidationError{Field: field, Message: message}
}

// IsValidationError checks if an error is a validation error (including wrapped errors)
func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}
