package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrProductNotFound signals a missing catalog product.
	ErrProductNotFound = errors.New("product not found")
	// ErrInvalidProduct signals a product that fails validation.
	ErrInvalidProduct = errors.New("invalid product")
	// ErrInvalidRequest signals malformed request parameters.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrMissingParameter signals an absent subject or purpose.
	ErrMissingParameter = errors.New("missing parameter")
	// ErrResendCooldown signals a resend attempted before the cooldown elapsed.
	ErrResendCooldown = errors.New("resend cooldown active")
	// ErrVisionProviderError signals an image analysis provider failure.
	ErrVisionProviderError = errors.New("vision provider error")
	// ErrNotImplemented signals an operation the configured backend does not support.
	ErrNotImplemented = errors.New("not implemented")
)

// CooldownError wraps ErrResendCooldown with the time left before a resend is allowed.
type CooldownError struct {
	RetryAfter time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("%s: retry after %s", ErrResendCooldown.Error(), e.RetryAfter.Round(time.Second))
}

func (e *CooldownError) Unwrap() error { return ErrResendCooldown }

// NewCooldown creates a resend cooldown error.
func NewCooldown(retryAfter time.Duration) error {
	return &CooldownError{RetryAfter: retryAfter}
}
