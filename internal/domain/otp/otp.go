// Package otp models one-time passcodes scoped by subject and purpose.
package otp

import (
	"fmt"
	"net/url"
	"time"
)

// CodeType is the character set of a code.
type CodeType string

// Code types.
const (
	Numeric      CodeType = "numeric"
	Alphanumeric CodeType = "alphanumeric"
)

// IsValid checks if the type is supported.
func (t CodeType) IsValid() bool {
	return t == Numeric || t == Alphanumeric
}

// Code length bounds.
const (
	MinLength = 4
	MaxLength = 16
)

// Config controls how a code is issued.
type Config struct {
	Length      int
	ExpiresIn   time.Duration
	MaxAttempts int
	Type        CodeType
	// ResendCooldown is the minimum age of a live code before Resend replaces it.
	// Zero disables the cooldown.
	ResendCooldown time.Duration
}

// Validate checks config bounds.
func (c Config) Validate() error {
	if c.Length < MinLength || c.Length > MaxLength {
		return fmt.Errorf("length must be between %d and %d, got %d", MinLength, MaxLength, c.Length)
	}
	if c.ExpiresIn <= 0 {
		return fmt.Errorf("expiry must be positive")
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max attempts must be positive")
	}
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid code type %q", c.Type)
	}
	if c.ResendCooldown < 0 {
		return fmt.Errorf("resend cooldown must not be negative")
	}
	return nil
}

// Key identifies a record.
type Key struct {
	Subject string
	Purpose string
}

// String returns an unambiguous storage key.
func (k Key) String() string {
	return url.QueryEscape(k.Purpose) + ":" + url.QueryEscape(k.Subject)
}

// Record is an issued code and its validation state.
type Record struct {
	ID          string
	Subject     string
	Purpose     string
	Code        string
	Type        CodeType
	Length      int
	CreatedAt   time.Time
	ExpiresAt   time.Time
	Attempts    int
	MaxAttempts int
}

// Key returns the record's key.
func (r *Record) Key() Key { return Key{Subject: r.Subject, Purpose: r.Purpose} }

// Expired reports whether now is past the expiry.
func (r *Record) Expired(now time.Time) bool { return now.After(r.ExpiresAt) }

// Exhausted reports whether the attempt budget is used up.
func (r *Record) Exhausted() bool { return r.Attempts >= r.MaxAttempts }

// RemainingAttempts returns the attempts left, never negative.
func (r *Record) RemainingAttempts() int { return max(0, r.MaxAttempts-r.Attempts) }

// State returns the lifecycle state at now.
func (r *Record) State(now time.Time) State {
	switch {
	case r.Expired(now):
		return StateExpired
	case r.Exhausted():
		return StateExhausted
	default:
		return StateActive
	}
}

// State is the lifecycle state of a (subject, purpose) key.
type State string

// Lifecycle states. Consumed records are deleted, so a consumed key reads as StateNone.
const (
	StateNone      State = "none"
	StateActive    State = "active"
	StateExpired   State = "expired"
	StateExhausted State = "exhausted"
)
