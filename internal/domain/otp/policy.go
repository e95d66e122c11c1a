package otp

import "time"

// Well-known purposes.
const (
	PurposeEmailVerification       = "email-verification"
	PurposePasswordReset           = "password-reset"
	PurposePhoneVerification       = "phone-verification"
	PurposeTransactionVerification = "transaction-verification"
	PurposeAdminAccess             = "admin-access"
)

// FallbackConfig applies to purposes without a policy entry.
var FallbackConfig = Config{Length: 6, ExpiresIn: 10 * time.Minute, MaxAttempts: 3, Type: Numeric}

// Policy maps purposes to their default issuance config.
type Policy map[string]Config

// DefaultPolicy returns the built-in per-purpose defaults.
func DefaultPolicy() Policy {
	return Policy{
		PurposeEmailVerification:       {Length: 6, ExpiresIn: 10 * time.Minute, MaxAttempts: 3, Type: Numeric},
		PurposePasswordReset:           {Length: 6, ExpiresIn: 30 * time.Minute, MaxAttempts: 5, Type: Numeric},
		PurposePhoneVerification:       {Length: 6, ExpiresIn: 10 * time.Minute, MaxAttempts: 3, Type: Numeric},
		PurposeTransactionVerification: {Length: 6, ExpiresIn: 5 * time.Minute, MaxAttempts: 2, Type: Numeric},
		PurposeAdminAccess:             {Length: 8, ExpiresIn: 5 * time.Minute, MaxAttempts: 1, Type: Alphanumeric},
	}
}

// For returns the config for purpose, or FallbackConfig.
func (p Policy) For(purpose string) Config {
	if c, ok := p[purpose]; ok {
		return c
	}
	return FallbackConfig
}

// Merge returns a copy of p with overrides applied on top.
func (p Policy) Merge(overrides Policy) Policy {
	out := make(Policy, len(p)+len(overrides))
	for k, v := range p {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

// Overrides holds optional per-request changes to a purpose's defaults.
// Zero values keep the default.
type Overrides struct {
	Type        CodeType
	Length      int
	ExpiresIn   time.Duration
	MaxAttempts int
}

// Apply returns c with non-zero overrides applied.
func (o Overrides) Apply(c Config) Config {
	if o.Type != "" {
		c.Type = o.Type
	}
	if o.Length > 0 {
		c.Length = o.Length
	}
	if o.ExpiresIn > 0 {
		c.ExpiresIn = o.ExpiresIn
	}
	if o.MaxAttempts > 0 {
		c.MaxAttempts = o.MaxAttempts
	}
	return c
}

// Tighten is Apply restricted to overrides that make c stricter: a longer
// code, alphanumeric over numeric, a shorter expiry, fewer attempts. Anything
// else keeps the value from c.
func (o Overrides) Tighten(c Config) Config {
	if o.Type == Alphanumeric {
		c.Type = Alphanumeric
	}
	if o.Length > c.Length {
		c.Length = o.Length
	}
	if o.ExpiresIn > 0 && o.ExpiresIn < c.ExpiresIn {
		c.ExpiresIn = o.ExpiresIn
	}
	if o.MaxAttempts > 0 && o.MaxAttempts < c.MaxAttempts {
		c.MaxAttempts = o.MaxAttempts
	}
	return c
}
