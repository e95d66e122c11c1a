package otpstore

import (
	"time"

	domotp "github.com/kailas-cloud/storefront/internal/domain/otp"
)

type recordDTO struct {
	ID          string    `json:"id"`
	Subject     string    `json:"subject"`
	Purpose     string    `json:"purpose"`
	Code        string    `json:"code"`
	Type        string    `json:"type"`
	Length      int       `json:"length"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	Attempts    int       `json:"attempts"`
	MaxAttempts int       `json:"max_attempts"`
}

func recordFromDomain(r domotp.Record) recordDTO {
	return recordDTO{
		ID:          r.ID,
		Subject:     r.Subject,
		Purpose:     r.Purpose,
		Code:        r.Code,
		Type:        string(r.Type),
		Length:      r.Length,
		CreatedAt:   r.CreatedAt,
		ExpiresAt:   r.ExpiresAt,
		Attempts:    r.Attempts,
		MaxAttempts: r.MaxAttempts,
	}
}

func (d recordDTO) toDomain() domotp.Record {
	return domotp.Record{
		ID:          d.ID,
		Subject:     d.Subject,
		Purpose:     d.Purpose,
		Code:        d.Code,
		Type:        domotp.CodeType(d.Type),
		Length:      d.Length,
		CreatedAt:   d.CreatedAt,
		ExpiresAt:   d.ExpiresAt,
		Attempts:    d.Attempts,
		MaxAttempts: d.MaxAttempts,
	}
}
