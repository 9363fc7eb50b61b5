package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync/atomic"
	"time"

	"github.com/cetsp/diario-scraper/pkg/logger"
)

// RedisClient defines the interface for Redis operations.
type RedisClient interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error
	Close() error
}

// CacheConfig holds configuration for the detail-page cache.
type CacheConfig struct {
	Prefix string
	TTL    time.Duration
	// MaxBytes skips caching pages larger than this. Zero means no limit.
	MaxBytes int
}

// DefaultCacheConfig returns a default cache configuration.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Prefix:   "diario:detail",
		TTL:      24 * time.Hour,
		MaxBytes: 2 << 20,
	}
}

// CacheStats tracks cache hit/miss statistics.
type CacheStats struct {
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
	Errors uint64 `json:"errors"`
}

// DetailCache keeps raw detail-page HTML in Redis, keyed by URL. Every
// failure degrades to a miss: the scraper then fetches the page itself.
type DetailCache struct {
	client  RedisClient
	config  CacheConfig
	log     *logger.Logger
	healthy atomic.Bool

	hits   atomic.Uint64
	misses atomic.Uint64
	errors atomic.Uint64
}

// NewDetailCache creates a cache over client. A nil or unreachable client
// yields a disabled cache.
func NewDetailCache(client RedisClient, log *logger.Logger, config CacheConfig) *DetailCache {
	if log == nil {
		log = logger.Default()
	}

	dc := &DetailCache{
		client: client,
		config: config,
		log:    log.WithComponent("detail_cache"),
	}

	if client == nil {
		return dc
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		dc.log.WithError(err).Warn("Redis connection failed, cache will be disabled")
		return dc
	}
	dc.healthy.Store(true)

	return dc
}

// IsHealthy returns whether the cache is operational.
func (dc *DetailCache) IsHealthy() bool {
	return dc.client != nil && dc.healthy.Load()
}

// Stats returns current cache statistics.
func (dc *DetailCache) Stats() CacheStats {
	return CacheStats{
		Hits:   dc.hits.Load(),
		Misses: dc.misses.Load(),
		Errors: dc.errors.Load(),
	}
}

// Get returns the cached page for url.
func (dc *DetailCache) Get(ctx context.Context, url string) (string, bool) {
	if !dc.IsHealthy() {
		return "", false
	}

	html, err := dc.client.Get(ctx, dc.key(url))
	if err != nil {
		dc.misses.Add(1)
		if !errors.Is(err, ErrCacheMiss) {
			dc.errors.Add(1)
			dc.log.WithError(err).Warn("detail cache read failed", "url", url)
		}
		return "", false
	}
	if html == "" {
		dc.misses.Add(1)
		return "", false
	}

	dc.hits.Add(1)
	dc.log.Debug("detail cache hit", "url", url)
	return html, true
}

// Set stores html for url with the configured TTL.
func (dc *DetailCache) Set(ctx context.Context, url, html string) {
	if !dc.IsHealthy() || html == "" {
		return
	}
	if dc.config.MaxBytes > 0 && len(html) > dc.config.MaxBytes {
		dc.log.Debug("page too large to cache", "url", url, "bytes", len(html))
		return
	}

	if err := dc.client.Set(ctx, dc.key(url), html, dc.config.TTL); err != nil {
		dc.errors.Add(1)
		dc.log.WithError(err).Warn("failed to cache detail page", "url", url)
	}
}

// Invalidate drops the cached page for url.
func (dc *DetailCache) Invalidate(ctx context.Context, url string) error {
	if !dc.IsHealthy() {
		return nil
	}
	return dc.client.Del(ctx, dc.key(url))
}

// Close closes the underlying client.
func (dc *DetailCache) Close() error {
	if dc.client == nil {
		return nil
	}
	return dc.client.Close()
}

func (dc *DetailCache) key(url string) string {
	sum := sha256.Sum256([]byte(url))
	return dc.config.Prefix + ":" + hex.EncodeToString(sum[:16])
}
