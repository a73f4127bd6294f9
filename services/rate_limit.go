package services

import (
	"context"
	"os"
	"strconv"
	"sync"
	"time"

	appContext "github.com/alphabatem/common/context"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/scix-archive/gateway_api/dto"
)

// Registered by MonitoringService.
var (
	rateLimitChecks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rate_limit_checks_total",
		Help: "Rate limit decisions by strategy and outcome",
	}, []string{"strategy", "outcome"})

	rateLimitFailOpen = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rate_limit_fail_open_total",
		Help: "Requests allowed because the rate limit backend errored",
	})
)

// slidingWindowCounter is the slice of RedisService the redis strategy needs.
type slidingWindowCounter interface {
	SlidingWindowCount(c context.Context, key string, window time.Duration) (int64, error)
	Delete(c context.Context, keys ...string) (int64, error)
}

// rateLimitStrategy decides whether a request identified by key proceeds.
type rateLimitStrategy interface {
	Allow(c context.Context, key string) (*dto.RateLimitInfo, bool)
	Reset(c context.Context, key string)
	Name() string
}

// RateLimitService enforces a per-client sliding window. The backing
// strategy is chosen per request: Redis when the feature flag buckets the
// client in, otherwise a bounded in-process window.
type RateLimitService struct {
	appContext.DefaultService

	flagSvc *FeatureFlagService

	redisStrategy rateLimitStrategy
	localStrategy rateLimitStrategy

	maxRequests int
	window      time.Duration
}

const RATE_LIMIT_SVC = "rate_limit_svc"

const (
	defaultRateLimitMax      = 100
	defaultRateLimitWindowMs = 60_000
)

func (svc RateLimitService) Id() string {
	return RATE_LIMIT_SVC
}

func (svc *RateLimitService) Configure(ctx *appContext.Context) error {
	svc.maxRequests = envInt("RATE_LIMIT_MAX_REQUESTS", defaultRateLimitMax)
	svc.window = time.Duration(envInt("RATE_LIMIT_WINDOW_MS", defaultRateLimitWindowMs)) * time.Millisecond

	local, err := newLocalRateLimiter(svc.maxRequests, svc.window)
	if err != nil {
		return err
	}
	svc.localStrategy = local

	return svc.DefaultService.Configure(ctx)
}

func (svc *RateLimitService) Start() error {
	svc.flagSvc = svc.Service(FEATURE_FLAG_SVC).(*FeatureFlagService)
	redisSvc := svc.Service(REDIS_SVC).(*RedisService)
	svc.redisStrategy = newRedisRateLimiter(redisSvc, svc.maxRequests, svc.window)

	log.WithFields(log.Fields{
		"max_requests": svc.maxRequests,
		"window":       svc.window,
	}).Info("Rate limiter configured")
	return nil
}

func (svc *RateLimitService) MaxRequests() int {
	return svc.maxRequests
}

func (svc *RateLimitService) Window() time.Duration {
	return svc.window
}

func (svc *RateLimitService) strategyFor(key string) rateLimitStrategy {
	if svc.flagSvc != nil && svc.flagSvc.ShouldUseRedisRateLimit(key) && svc.redisStrategy != nil {
		return svc.redisStrategy
	}
	return svc.localStrategy
}

// Allow records the request against key's window and reports whether it is
// within the limit, along with the client-facing window state.
func (svc *RateLimitService) Allow(c context.Context, key string) (*dto.RateLimitInfo, bool) {
	strategy := svc.strategyFor(key)
	info, allowed := strategy.Allow(c, key)

	outcome := "allowed"
	if !allowed {
		outcome = "denied"
	}
	rateLimitChecks.WithLabelValues(strategy.Name(), outcome).Inc()

	if !allowed {
		log.WithFields(log.Fields{
			"key":      key,
			"strategy": strategy.Name(),
			"count":    info.Count,
			"limit":    info.Limit,
		}).Warn("Rate limit exceeded")
	}
	return info, allowed
}

// Reset clears key's window in whichever strategy currently serves it.
func (svc *RateLimitService) Reset(c context.Context, key string) {
	svc.strategyFor(key).Reset(c, key)
}

// redisRateLimiter keeps the window in a Redis sorted set so counts are
// shared across instances. Backend failures allow the request through.
type redisRateLimiter struct {
	counter     slidingWindowCounter
	maxRequests int
	window      time.Duration
}

func newRedisRateLimiter(counter slidingWindowCounter, maxRequests int, window time.Duration) *redisRateLimiter {
	return &redisRateLimiter{counter: counter, maxRequests: maxRequests, window: window}
}

func (r *redisRateLimiter) Name() string {
	return "redis"
}

func rateLimitKey(key string) string {
	return "rate_limit:" + key
}

func (r *redisRateLimiter) Allow(c context.Context, key string) (*dto.RateLimitInfo, bool) {
	count, err := r.counter.SlidingWindowCount(c, rateLimitKey(key), r.window)
	if err != nil {
		// An unreachable backend must not take the whole site down with
		// it, so limiting is skipped rather than the request rejected.
		rateLimitFailOpen.Inc()
		log.WithError(err).WithField("key", key).Warn("Rate limit check failed, allowing request")
		return &dto.RateLimitInfo{
			Limit:     r.maxRequests,
			Remaining: r.maxRequests,
			ResetAt:   time.Now().Add(r.window).UnixMilli(),
		}, true
	}

	total := int(count) + 1
	remaining := r.maxRequests - total
	if remaining < 0 {
		remaining = 0
	}

	return &dto.RateLimitInfo{
		Count:     total,
		Limit:     r.maxRequests,
		Remaining: remaining,
		ResetAt:   time.Now().Add(r.window).UnixMilli(),
	}, total <= r.maxRequests
}

func (r *redisRateLimiter) Reset(c context.Context, key string) {
	if _, err := r.counter.Delete(c, rateLimitKey(key)); err != nil {
		log.WithError(err).WithField("key", key).Warn("Failed to reset rate limit window")
	}
}

type localWindow struct {
	mu          sync.Mutex
	count       int
	windowStart time.Time
}

// localRateLimiter is the in-process fallback. Windows live in a bounded
// LRU so a scan across many IPs cannot grow memory without limit.
type localRateLimiter struct {
	windows     *lru.Cache[string, *localWindow]
	maxRequests int
	window      time.Duration
}

const localRateLimitCacheSize = 4096

func newLocalRateLimiter(maxRequests int, window time.Duration) (*localRateLimiter, error) {
	cache, err := lru.New[string, *localWindow](localRateLimitCacheSize)
	if err != nil {
		return nil, err
	}
	return &localRateLimiter{windows: cache, maxRequests: maxRequests, window: window}, nil
}

func (l *localRateLimiter) Name() string {
	return "local"
}

func (l *localRateLimiter) Allow(_ context.Context, key string) (*dto.RateLimitInfo, bool) {
	now := time.Now()

	w, ok := l.windows.Get(key)
	if !ok {
		w = &localWindow{windowStart: now}
		l.windows.Add(key, w)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if now.Sub(w.windowStart) >= l.window {
		w.count = 0
		w.windowStart = now
	}
	w.count++

	remaining := l.maxRequests - w.count
	if remaining < 0 {
		remaining = 0
	}

	return &dto.RateLimitInfo{
		Count:     w.count,
		Limit:     l.maxRequests,
		Remaining: remaining,
		ResetAt:   w.windowStart.Add(l.window).UnixMilli(),
	}, w.count <= l.maxRequests
}

func (l *localRateLimiter) Reset(_ context.Context, key string) {
	l.windows.Remove(key)
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		log.WithField(key, raw).Warn("Invalid numeric env value, using default")
		return fallback
	}
	return v
}
