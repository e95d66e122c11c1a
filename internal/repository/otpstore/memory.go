package otpstore

import (
	"context"
	"sync"
	"time"

	"github.com/kailas-cloud/storefront/internal/domain"
	domotp "github.com/kailas-cloud/storefront/internal/domain/otp"
)

// Memory keeps records in process memory. A restart drops every outstanding code.
type Memory struct {
	mu      sync.RWMutex
	records map[domotp.Key]domotp.Record
}

// NewMemory creates an empty in-process store.
func NewMemory() *Memory {
	return &Memory{records: make(map[domotp.Key]domotp.Record)}
}

// Get returns the record for key.
func (m *Memory) Get(_ context.Context, key domotp.Key) (domotp.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[key]
	if !ok {
		return domotp.Record{}, domain.ErrNotFound
	}
	return rec, nil
}

// Put stores rec, replacing any record with the same key.
func (m *Memory) Put(_ context.Context, rec domotp.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.Key()] = rec
	return nil
}

// Delete removes the record for key. Missing keys are ignored.
func (m *Memory) Delete(_ context.Context, key domotp.Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, key)
	return nil
}

// Len returns the number of stored records.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// Sweep drops records that expired more than retention before now and
// returns how many were removed. Expired records inside the retention window
// are kept so validation can still report them as expired.
func (m *Memory) Sweep(now time.Time, retention time.Duration) int {
	cutoff := now.Add(-retention)
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for k, rec := range m.records {
		if rec.ExpiresAt.Before(cutoff) {
			delete(m.records, k)
			removed++
		}
	}
	return removed
}
