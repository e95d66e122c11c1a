package otpstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/storefront/internal/db"
	"github.com/kailas-cloud/storefront/internal/domain"
	domotp "github.com/kailas-cloud/storefront/internal/domain/otp"
)

// minTTL is the smallest expiry accepted by SET EX.
const minTTL = time.Second

// store is the consumer interface for the KV-backed OTP store (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// KV keeps records in Redis/Valkey as JSON with a TTL of expiry plus retention.
// Per-key serialization still comes from the OTP manager, so a KV store
// shared by several processes does not make validation atomic across them.
type KV struct {
	store     store
	prefix    string
	retention time.Duration
	now       func() time.Time
}

// NewKV creates a KV-backed store. keyPrefix is prepended to every key.
func NewKV(s store, keyPrefix string, retention time.Duration) *KV {
	return &KV{store: s, prefix: keyPrefix + "otp:", retention: retention, now: time.Now}
}

// Get returns the record for key.
func (k *KV) Get(ctx context.Context, key domotp.Key) (domotp.Record, error) {
	data, err := k.store.Get(ctx, k.redisKey(key))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domotp.Record{}, domain.ErrNotFound
		}
		return domotp.Record{}, fmt.Errorf("get otp: %w", err)
	}

	var d recordDTO
	if err := json.Unmarshal(data, &d); err != nil {
		return domotp.Record{}, fmt.Errorf("decode otp: %w", err)
	}
	return d.toDomain(), nil
}

// Put stores rec with a TTL covering its lifetime plus retention.
func (k *KV) Put(ctx context.Context, rec domotp.Record) error {
	data, err := json.Marshal(recordFromDomain(rec))
	if err != nil {
		return fmt.Errorf("encode otp: %w", err)
	}

	ttl := rec.ExpiresAt.Sub(k.now()) + k.retention
	if ttl < minTTL {
		ttl = minTTL
	}
	if err := k.store.SetWithTTL(ctx, k.redisKey(rec.Key()), data, ttl); err != nil {
		return fmt.Errorf("set otp: %w", err)
	}
	return nil
}

// Delete removes the record for key.
func (k *KV) Delete(ctx context.Context, key domotp.Key) error {
	if err := k.store.Del(ctx, k.redisKey(key)); err != nil {
		return fmt.Errorf("delete otp: %w", err)
	}
	return nil
}

func (k *KV) redisKey(key domotp.Key) string {
	return k.prefix + key.String()
}
