package otp

import "time"

// Reason classifies a validation outcome.
type Reason string

// Validation outcomes.
const (
	ReasonVerified  Reason = "verified"
	ReasonNotFound  Reason = "not_found"
	ReasonExpired   Reason = "expired"
	ReasonExhausted Reason = "exhausted"
	ReasonMismatch  Reason = "mismatch"
)

// Validation messages.
const (
	MessageVerified  = "OTP verified successfully"
	MessageNotFound  = "OTP not found or expired"
	MessageExpired   = "OTP has expired"
	MessageExhausted = "Too many failed attempts. Please request a new OTP"
)

// Result is the structured outcome of a validation. Domain failures are
// results, not errors.
type Result struct {
	Valid   bool
	Reason  Reason
	Message string
	// RemainingAttempts is nil when the outcome has no attempt budget to report.
	RemainingAttempts *int
}

// Issued describes a freshly generated code.
type Issued struct {
	ID          string
	Subject     string
	Purpose     string
	Code        string
	Type        CodeType
	ExpiresAt   time.Time
	MaxAttempts int
}

// Status is a read-only snapshot for rendering countdowns. A missing record
// yields StateNone with every other field zeroed.
type Status struct {
	State             State
	ExpiresAt         time.Time
	MaxAttempts       int
	AttemptsRemaining int
}
