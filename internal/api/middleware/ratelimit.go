package middleware

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cetsp/diario-scraper/internal/api/handlers"
	"github.com/cetsp/diario-scraper/pkg/logger"
)

// Limit types accepted by RateLimiter.Middleware.
const (
	LimitSearch = "search"
	LimitRender = "render"
)

// RateLimitConfig holds configuration for rate limiting.
type RateLimitConfig struct {
	// Searches drive a real browser against the gazette, so they get the
	// tightest budget.
	Searches Limit
	Renders  Limit
	Default  Limit
	// GracefulDegradation lets requests through while the store is down.
	GracefulDegradation bool
	// Registerer receives the decision counter. Nil keeps it unregistered.
	Registerer prometheus.Registerer
}

// Limit allows Requests per fixed Window.
type Limit struct {
	Requests int
	Window   time.Duration
}

// DefaultRateLimitConfig returns default rate limit configuration.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Searches:            Limit{Requests: 10, Window: time.Minute},
		Renders:             Limit{Requests: 60, Window: time.Minute},
		Default:             Limit{Requests: 100, Window: time.Minute},
		GracefulDegradation: true,
	}
}

// Usage is a counter reading after an increment.
type Usage struct {
	Count int64
	// Reset is the time left until the window starts over.
	Reset time.Duration
}

// RateLimitStore counts requests per key in fixed windows.
type RateLimitStore interface {
	// Increment counts one request, opening a new window when none is
	// active.
	Increment(ctx context.Context, key string, window time.Duration) (Usage, error)
	IsHealthy() bool
}

// MemoryRateLimitStore keeps windows in process memory. Counters are not
// shared between server instances.
type MemoryRateLimitStore struct {
	mu      sync.Mutex
	windows map[string]memoryWindow
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

type memoryWindow struct {
	count     int64
	expiresAt time.Time
}

// NewMemoryRateLimitStore creates an in-memory store and starts its sweeper.
// Call Close to stop it.
func NewMemoryRateLimitStore() *MemoryRateLimitStore {
	s := &MemoryRateLimitStore{
		windows: make(map[string]memoryWindow),
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go s.sweep(5 * time.Minute)
	return s
}

// Close stops the sweeper.
func (s *MemoryRateLimitStore) Close() {
	s.once.Do(func() { close(s.stop) })
}

// Increment implements RateLimitStore.
func (s *MemoryRateLimitStore) Increment(ctx context.Context, key string, window time.Duration) (Usage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	w, ok := s.windows[key]
	if !ok || !now.Before(w.expiresAt) {
		w = memoryWindow{expiresAt: now.Add(window)}
	}
	w.count++
	s.windows[key] = w
	return Usage{Count: w.count, Reset: w.expiresAt.Sub(now)}, nil
}

// IsHealthy implements RateLimitStore.
func (s *MemoryRateLimitStore) IsHealthy() bool { return true }

func (s *MemoryRateLimitStore) sweep(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
		}
		s.mu.Lock()
		now := s.now()
		for key, w := range s.windows {
			if !now.Before(w.expiresAt) {
				delete(s.windows, key)
			}
		}
		s.mu.Unlock()
	}
}

// RedisClient is the subset of Redis used for counting.
// *storage.RedisClientWrapper implements it.
type RedisClient interface {
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, expiration time.Duration) error
	TTL(ctx context.Context, key string) (time.Duration, error)
	Ping(ctx context.Context) error
}

var errRedisUnavailable = errors.New("redis not available")

// RedisRateLimitStore shares windows between server instances through
// INCR and EXPIRE on prefixed keys.
type RedisRateLimitStore struct {
	client  RedisClient
	prefix  string
	healthy bool
	log     *logger.Logger
}

// NewRedisRateLimitStore creates a Redis store. A nil client or a failed
// ping leaves the store unhealthy.
func NewRedisRateLimitStore(client RedisClient, prefix string, log *logger.Logger) *RedisRateLimitStore {
	s := &RedisRateLimitStore{
		client: client,
		prefix: prefix,
		log:    log.WithComponent("rate_limit_store"),
	}
	if client == nil {
		return s
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		s.log.WithError(err).Warn("Redis connection failed for rate limiting")
		return s
	}
	s.healthy = true
	return s
}

// Increment implements RateLimitStore. A key left without an expiry, for
// instance after a failed EXPIRE, gets one on its next request.
func (s *RedisRateLimitStore) Increment(ctx context.Context, key string, window time.Duration) (Usage, error) {
	if !s.IsHealthy() {
		return Usage{}, errRedisUnavailable
	}

	key = s.prefix + ":" + key
	count, err := s.client.Incr(ctx, key)
	if err != nil {
		return Usage{}, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}

	reset := window
	if count > 1 {
		if ttl, err := s.client.TTL(ctx, key); err == nil && ttl > 0 {
			return Usage{Count: count, Reset: ttl}, nil
		}
	}
	if err := s.client.Expire(ctx, key, window); err != nil {
		s.log.WithError(err).Warn("failed to set rate limit expiration", "key", key)
	}
	return Usage{Count: count, Reset: reset}, nil
}

// IsHealthy implements RateLimitStore.
func (s *RedisRateLimitStore) IsHealthy() bool {
	return s.healthy && s.client != nil
}

// RateLimiter provides rate limiting middleware.
type RateLimiter struct {
	store     RateLimitStore
	config    RateLimitConfig
	log       *logger.Logger
	decisions *prometheus.CounterVec
}

// NewRateLimiter creates a RateLimiter. The decision counter is registered
// on config.Registerer when set.
func NewRateLimiter(store RateLimitStore, config RateLimitConfig, log *logger.Logger) *RateLimiter {
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "diario",
		Subsystem: "ratelimit",
		Name:      "decisions_total",
		Help:      "Rate limit decisions by limit type and outcome.",
	}, []string{"limit", "decision"})

	if config.Registerer != nil {
		if err := config.Registerer.Register(decisions); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				decisions = already.ExistingCollector.(*prometheus.CounterVec)
			} else {
				log.WithError(err).Warn("failed to register rate limit metrics")
			}
		}
	}

	return &RateLimiter{
		store:     store,
		config:    config,
		log:       log.WithComponent("rate_limiter"),
		decisions: decisions,
	}
}

// Middleware returns a rate limiting middleware for a specific limit type.
// Clients are told apart by r.RemoteAddr, which chi's RealIP middleware
// rewrites from the proxy headers.
func (rl *RateLimiter) Middleware(limitType string) func(next http.Handler) http.Handler {
	limit := rl.limitFor(limitType)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := clientIP(r)
			key := limitType + ":" + client

			if !rl.store.IsHealthy() {
				rl.degrade(w, r, next, limitType)
				return
			}
			usage, err := rl.store.Increment(r.Context(), key, limit.Window)
			if err != nil {
				rl.log.WithContext(r.Context()).WithError(err).Error("rate limit check failed", "key", key)
				rl.degrade(w, r, next, limitType)
				return
			}

			reset := strconv.Itoa(int(math.Ceil(usage.Reset.Seconds())))
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit.Requests))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(max(int64(limit.Requests)-usage.Count, 0), 10))
			w.Header().Set("X-RateLimit-Reset", reset)

			if usage.Count > int64(limit.Requests) {
				rl.decisions.WithLabelValues(limitType, "rejected").Inc()
				rl.log.WithContext(r.Context()).Warn("rate limit exceeded",
					"client", client,
					"limit_type", limitType,
					"count", usage.Count,
					"limit", limit.Requests,
				)
				w.Header().Set("Retry-After", reset)
				handlers.RespondError(w, http.StatusTooManyRequests, handlers.ErrCodeRateLimit,
					"Limite de requisições excedido. Tente novamente mais tarde.")
				return
			}

			rl.decisions.WithLabelValues(limitType, "allowed").Inc()
			next.ServeHTTP(w, r)
		})
	}
}

func (rl *RateLimiter) degrade(w http.ResponseWriter, r *http.Request, next http.Handler, limitType string) {
	if rl.config.GracefulDegradation {
		rl.decisions.WithLabelValues(limitType, "unchecked").Inc()
		next.ServeHTTP(w, r)
		return
	}
	handlers.RespondServiceUnavailable(w, "")
}

func (rl *RateLimiter) limitFor(limitType string) Limit {
	switch limitType {
	case LimitSearch:
		return rl.config.Searches
	case LimitRender:
		return rl.config.Renders
	default:
		return rl.config.Default
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
