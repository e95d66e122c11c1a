package otp

import (
	"context"

	domotp "github.com/kailas-cloud/storefront/internal/domain/otp"
)

// Store persists at most one record per key. Get returns domain.ErrNotFound
// when no record exists.
type Store interface {
	Get(ctx context.Context, key domotp.Key) (domotp.Record, error)
	Put(ctx context.Context, rec domotp.Record) error
	Delete(ctx context.Context, key domotp.Key) error
}
