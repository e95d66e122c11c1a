package otp

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/storefront/internal/domain"
	domotp "github.com/kailas-cloud/storefront/internal/domain/otp"
	logpkg "github.com/kailas-cloud/storefront/internal/logger"
	"github.com/kailas-cloud/storefront/internal/metrics"
)

// Manager issues and validates one-time passcodes. Every read-modify-write on
// a key runs inside that key's critical section, so concurrent submissions
// cannot overrun the attempt budget.
type Manager struct {
	store   Store
	policy  domotp.Policy
	now     func() time.Time
	newCode domotp.CodeGenerator
	locks   keyLocks
	logger  *zap.Logger
}

// New creates a Manager. A nil policy uses domotp.DefaultPolicy.
func New(store Store, policy domotp.Policy, logger *zap.Logger) *Manager {
	if policy == nil {
		policy = domotp.DefaultPolicy()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:   store,
		policy:  policy,
		now:     time.Now,
		newCode: domotp.GenerateCode,
		logger:  logger,
	}
}

// WithClock replaces the time source.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// WithCodeGenerator replaces the code generator.
func (m *Manager) WithCodeGenerator(g domotp.CodeGenerator) *Manager {
	m.newCode = g
	return m
}

// Config returns the default config for purpose.
func (m *Manager) Config(purpose string) domotp.Config {
	return m.policy.For(purpose)
}

// Generate issues a fresh code, replacing any record for the key whatever its state.
// A nil cfg uses the purpose's default.
func (m *Manager) Generate(ctx context.Context, subject, purpose string, cfg *domotp.Config) (domotp.Issued, error) {
	return m.issue(ctx, subject, purpose, cfg, false)
}

// Resend behaves like Generate but honors the purpose's resend cooldown.
func (m *Manager) Resend(ctx context.Context, subject, purpose string, cfg *domotp.Config) (domotp.Issued, error) {
	return m.issue(ctx, subject, purpose, cfg, true)
}

func (m *Manager) issue(
	ctx context.Context, subject, purpose string, cfg *domotp.Config, resend bool,
) (domotp.Issued, error) {
	key, err := newKey(subject, purpose)
	if err != nil {
		return domotp.Issued{}, err
	}

	c := m.policy.For(key.Purpose)
	if cfg != nil {
		c = *cfg
	}
	if err := c.Validate(); err != nil {
		return domotp.Issued{}, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
	}

	unlock := m.locks.lock(key.String())
	defer unlock()

	now := m.now()

	if resend && c.ResendCooldown > 0 {
		if err := m.checkCooldown(ctx, key, c.ResendCooldown, now); err != nil {
			return domotp.Issued{}, err
		}
	}

	code, err := m.newCode(c.Length, c.Type)
	if err != nil {
		return domotp.Issued{}, fmt.Errorf("generate code: %w", err)
	}

	rec := domotp.Record{
		ID:          uuid.NewString(),
		Subject:     key.Subject,
		Purpose:     key.Purpose,
		Code:        code,
		Type:        c.Type,
		Length:      c.Length,
		CreatedAt:   now,
		ExpiresAt:   now.Add(c.ExpiresIn),
		MaxAttempts: c.MaxAttempts,
	}
	if err := m.store.Put(ctx, rec); err != nil {
		return domotp.Issued{}, fmt.Errorf("store otp: %w", err)
	}

	metrics.OTPIssuedTotal.WithLabelValues(m.purposeLabel(key.Purpose)).Inc()
	m.logger.Debug("OTP issued",
		zap.String("otp_id", rec.ID),
		logpkg.Subject(key.Subject),
		zap.String("purpose", key.Purpose),
		zap.Bool("resend", resend),
		zap.Time("expires_at", rec.ExpiresAt),
	)

	return domotp.Issued{
		ID:          rec.ID,
		Subject:     rec.Subject,
		Purpose:     rec.Purpose,
		Code:        rec.Code,
		Type:        rec.Type,
		ExpiresAt:   rec.ExpiresAt,
		MaxAttempts: rec.MaxAttempts,
	}, nil
}

func (m *Manager) checkCooldown(ctx context.Context, key domotp.Key, cooldown time.Duration, now time.Time) error {
	prev, err := m.store.Get(ctx, key)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load otp: %w", err)
	}
	if prev.State(now) != domotp.StateActive {
		return nil
	}
	if elapsed := now.Sub(prev.CreatedAt); elapsed < cooldown {
		return domain.NewCooldown(cooldown - elapsed)
	}
	return nil
}

// Validate checks a submitted code. Domain failures are reported in the
// Result; an error means bad parameters or a storage failure.
func (m *Manager) Validate(ctx context.Context, subject, purpose, code string) (domotp.Result, error) {
	key, err := newKey(subject, purpose)
	if err != nil {
		return domotp.Result{}, err
	}

	unlock := m.locks.lock(key.String())
	defer unlock()

	res, err := m.validateLocked(ctx, key, strings.TrimSpace(code))
	if err != nil {
		return domotp.Result{}, err
	}

	metrics.OTPValidationsTotal.WithLabelValues(m.purposeLabel(key.Purpose), string(res.Reason)).Inc()
	m.logger.Debug("OTP validated",
		logpkg.Subject(key.Subject),
		zap.String("purpose", key.Purpose),
		zap.String("outcome", string(res.Reason)),
	)
	return res, nil
}

func (m *Manager) validateLocked(ctx context.Context, key domotp.Key, code string) (domotp.Result, error) {
	rec, err := m.store.Get(ctx, key)
	if errors.Is(err, domain.ErrNotFound) {
		return domotp.Result{Reason: domotp.ReasonNotFound, Message: domotp.MessageNotFound}, nil
	}
	if err != nil {
		return domotp.Result{}, fmt.Errorf("load otp: %w", err)
	}

	now := m.now()
	if rec.Expired(now) {
		return domotp.Result{Reason: domotp.ReasonExpired, Message: domotp.MessageExpired}, nil
	}
	if rec.Exhausted() {
		return domotp.Result{
			Reason:            domotp.ReasonExhausted,
			Message:           domotp.MessageExhausted,
			RemainingAttempts: intPtr(0),
		}, nil
	}

	if subtle.ConstantTimeCompare([]byte(code), []byte(rec.Code)) != 1 {
		rec.Attempts++
		if err := m.store.Put(ctx, rec); err != nil {
			return domotp.Result{}, fmt.Errorf("store otp: %w", err)
		}
		remaining := rec.RemainingAttempts()
		return domotp.Result{
			Reason:            domotp.ReasonMismatch,
			Message:           fmt.Sprintf("Invalid OTP. %d attempts remaining", remaining),
			RemainingAttempts: &remaining,
		}, nil
	}

	if err := m.store.Delete(ctx, key); err != nil {
		return domotp.Result{}, fmt.Errorf("consume otp: %w", err)
	}
	return domotp.Result{Valid: true, Reason: domotp.ReasonVerified, Message: domotp.MessageVerified}, nil
}

// Status returns a snapshot of the key's record, or StateNone when absent.
func (m *Manager) Status(ctx context.Context, subject, purpose string) (domotp.Status, error) {
	key, err := newKey(subject, purpose)
	if err != nil {
		return domotp.Status{}, err
	}

	rec, err := m.store.Get(ctx, key)
	if errors.Is(err, domain.ErrNotFound) {
		return domotp.Status{State: domotp.StateNone}, nil
	}
	if err != nil {
		return domotp.Status{}, fmt.Errorf("load otp: %w", err)
	}

	return domotp.Status{
		State:             rec.State(m.now()),
		ExpiresAt:         rec.ExpiresAt,
		MaxAttempts:       rec.MaxAttempts,
		AttemptsRemaining: rec.RemainingAttempts(),
	}, nil
}

// purposeLabel bounds metric label cardinality to configured purposes.
func (m *Manager) purposeLabel(purpose string) string {
	if _, ok := m.policy[purpose]; ok {
		return purpose
	}
	return "other"
}

func newKey(subject, purpose string) (domotp.Key, error) {
	subject = strings.TrimSpace(subject)
	purpose = strings.TrimSpace(purpose)
	if subject == "" {
		return domotp.Key{}, fmt.Errorf("%w: subject", domain.ErrMissingParameter)
	}
	if purpose == "" {
		return domotp.Key{}, fmt.Errorf("%w: purpose", domain.ErrMissingParameter)
	}
	return domotp.Key{Subject: subject, Purpose: purpose}, nil
}

func intPtr(v int) *int { return &v }
