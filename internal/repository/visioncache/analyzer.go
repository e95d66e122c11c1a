// Package visioncache memoizes image analysis by image content.
package visioncache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/storefront/internal/db"
	"github.com/kailas-cloud/storefront/internal/domain/vision"
)

// store is the consumer interface for the analysis cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CachedAnalyzer caches provider results keyed by the SHA-256 of the image.
// Cache failures degrade to a provider call; they never fail the request.
type CachedAnalyzer struct {
	inner      vision.Analyzer
	store      store
	prefix     string
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a caching decorator.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(
	inner vision.Analyzer,
	s store,
	keyPrefix string,
	ttl time.Duration,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedAnalyzer {
	return &CachedAnalyzer{
		inner:      inner,
		store:      s,
		prefix:     keyPrefix + "vision_cache:",
		ttl:        ttl,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Analyze returns a cached analysis or calls the inner analyzer.
func (c *CachedAnalyzer) Analyze(ctx context.Context, image []byte, contentType string) (vision.Analysis, error) {
	key := c.cacheKey(image)

	if a, ok := c.getFromCache(ctx, key); ok {
		c.incCache("hit")
		return a, nil
	}
	c.incCache("miss")

	a, err := c.inner.Analyze(ctx, image, contentType)
	if err != nil {
		return vision.Analysis{}, fmt.Errorf("analyze image: %w", err)
	}

	if a.Source == vision.SourceVision && len(a.Keywords) > 0 {
		c.putToCache(ctx, key, a)
	}
	return a, nil
}

// HealthCheck delegates to the inner analyzer when it supports health checks.
func (c *CachedAnalyzer) HealthCheck(ctx context.Context) error {
	if hc, ok := c.inner.(vision.HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}

func (c *CachedAnalyzer) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func (c *CachedAnalyzer) cacheKey(image []byte) string {
	h := sha256.Sum256(image)
	return c.prefix + hex.EncodeToString(h[:])
}

func (c *CachedAnalyzer) getFromCache(ctx context.Context, key string) (vision.Analysis, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached analysis", zap.String("key", key), zap.Error(err))
		}
		return vision.Analysis{}, false
	}

	var a vision.Analysis
	if err := json.Unmarshal(data, &a); err != nil || len(a.Keywords) == 0 {
		c.logger.Warn("Discarding unreadable cached analysis", zap.String("key", key), zap.Error(err))
		return vision.Analysis{}, false
	}
	return a, true
}

func (c *CachedAnalyzer) putToCache(ctx context.Context, key string, a vision.Analysis) {
	data, err := json.Marshal(a)
	if err != nil {
		return
	}
	if err := c.store.SetWithTTL(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("Failed to cache analysis", zap.String("key", key), zap.Error(err))
	}
}
