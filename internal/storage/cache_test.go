package storage

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cetsp/diario-scraper/pkg/logger"
)

// MockRedisClient implements RedisClient in memory.
type MockRedisClient struct {
	mu      sync.Mutex
	data    map[string]string
	ttls    map[string]time.Duration
	pingErr error
	getErr  error
	setErr  error
}

func newMockRedis() *MockRedisClient {
	return &MockRedisClient{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *MockRedisClient) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return "", ErrCacheMiss
	}
	return v, nil
}

func (m *MockRedisClient) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value.(string)
	m.ttls[key] = expiration
	return nil
}

func (m *MockRedisClient) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *MockRedisClient) Ping(ctx context.Context) error { return m.pingErr }

func (m *MockRedisClient) Close() error { return nil }

func TestDetailCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	client := newMockRedis()
	cache := NewDetailCache(client, logger.Nop(), DefaultCacheConfig())
	require.True(t, cache.IsHealthy())

	url := "https://diariooficial.prefeitura.sp.gov.br/md_epubli_visualizar.php?id=1"

	_, ok := cache.Get(ctx, url)
	assert.False(t, ok)

	cache.Set(ctx, url, "<html>detalhe</html>")
	html, ok := cache.Get(ctx, url)
	require.True(t, ok)
	assert.Equal(t, "<html>detalhe</html>", html)

	require.Len(t, client.data, 1)
	for key, ttl := range client.ttls {
		assert.True(t, strings.HasPrefix(key, "diario:detail:"), key)
		assert.Equal(t, 24*time.Hour, ttl)
	}

	assert.Equal(t, CacheStats{Hits: 1, Misses: 1}, cache.Stats())

	require.NoError(t, cache.Invalidate(ctx, url))
	_, ok = cache.Get(ctx, url)
	assert.False(t, ok)
}

func TestDetailCacheDegradesOnErrors(t *testing.T) {
	ctx := context.Background()
	client := newMockRedis()
	cache := NewDetailCache(client, logger.Nop(), DefaultCacheConfig())

	client.setErr = errors.New("connection reset")
	cache.Set(ctx, "u", "<html/>")
	assert.Empty(t, client.data)

	client.getErr = errors.New("connection reset")
	_, ok := cache.Get(ctx, "u")
	assert.False(t, ok)

	stats := cache.Stats()
	assert.Equal(t, uint64(2), stats.Errors)
	assert.Equal(t, uint64(1), stats.Misses)
}

func TestDetailCacheDisabled(t *testing.T) {
	ctx := context.Background()

	cache := NewDetailCache(nil, logger.Nop(), DefaultCacheConfig())
	assert.False(t, cache.IsHealthy())
	cache.Set(ctx, "u", "<html/>")
	_, ok := cache.Get(ctx, "u")
	assert.False(t, ok)
	assert.NoError(t, cache.Close())

	client := newMockRedis()
	client.pingErr = errors.New("dial tcp: connection refused")
	cache = NewDetailCache(client, logger.Nop(), DefaultCacheConfig())
	assert.False(t, cache.IsHealthy())
	cache.Set(ctx, "u", "<html/>")
	assert.Empty(t, client.data)
}

func TestDetailCacheSkipsLargePages(t *testing.T) {
	client := newMockRedis()
	cfg := DefaultCacheConfig()
	cfg.MaxBytes = 8
	cache := NewDetailCache(client, logger.Nop(), cfg)

	cache.Set(context.Background(), "u", strings.Repeat("x", 9))
	assert.Empty(t, client.data)
}
