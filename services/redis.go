package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"regexp"
	"strconv"
	"sync"
	"time"

	appContext "github.com/alphabatem/common/context"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// RedisService owns the process-wide Redis connection. The client is built at
// Configure time but go-redis dials lazily, so processes that never take the
// Redis path never open a connection. Health checks are cached for 30s to
// avoid probe storms from concurrent health requests.
type RedisService struct {
	appContext.DefaultService

	redis  *redis.Client
	prefix string

	mu              sync.RWMutex
	healthy         bool
	lastHealthCheck time.Time
}

const REDIS_SVC = "redis_svc"

const (
	healthCheckInterval = 30 * time.Second
	defaultKeyPrefix    = "scix_"
)

var redisCredentialRe = regexp.MustCompile(`://([^:@/]*):([^@/]*)@`)

func (svc RedisService) Id() string {
	return REDIS_SVC
}

func (svc *RedisService) Configure(ctx *appContext.Context) error {
	if err := svc.initRedisClient(); err != nil {
		return err
	}
	return svc.DefaultService.Configure(ctx)
}

func (svc *RedisService) Start() error {
	return nil
}

func (svc *RedisService) Shutdown() {
	if svc.redis == nil {
		return
	}
	if err := svc.redis.Close(); err != nil {
		log.WithError(err).Warn("Error closing Redis connection")
	}
	svc.mu.Lock()
	svc.healthy = false
	svc.mu.Unlock()
}

func (svc *RedisService) initRedisClient() error {
	svc.prefix = defaultKeyPrefix

	var opts *redis.Options
	if url := os.Getenv("REDIS_URL"); url != "" {
		parsed, err := redis.ParseURL(url)
		if err != nil {
			return fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		opts = parsed
		log.WithField("url", redactCredentials(url)).Info("Initializing Redis connection")
	} else {
		addr := os.Getenv("REDIS_ADDR")
		if addr == "" {
			addr = "localhost:6379"
		}
		db := 0
		if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
			if parsed, err := strconv.Atoi(dbStr); err == nil {
				db = parsed
			}
		}
		opts = &redis.Options{
			Addr:     addr,
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       db,
		}
		log.WithField("addr", addr).Info("Initializing Redis connection")
	}

	// Bounded retries with capped backoff; brief reconnect windows queue
	// commands rather than failing them immediately.
	opts.MaxRetries = 3
	opts.MinRetryBackoff = 50 * time.Millisecond
	opts.MaxRetryBackoff = 2 * time.Second
	opts.DialTimeout = 10 * time.Second
	opts.ReadTimeout = 5 * time.Second
	opts.WriteTimeout = 5 * time.Second

	svc.redis = redis.NewClient(opts)
	return nil
}

func redactCredentials(url string) string {
	return redisCredentialRe.ReplaceAllString(url, "://$1:***@")
}

func (svc *RedisService) GetClient() *redis.Client {
	return svc.redis
}

func (svc *RedisService) key(k string) string {
	return svc.prefix + k
}

// HealthCheck issues a PING, caching a positive result for 30 seconds.
func (svc *RedisService) HealthCheck(c context.Context) bool {
	svc.mu.RLock()
	if time.Since(svc.lastHealthCheck) < healthCheckInterval && svc.healthy {
		svc.mu.RUnlock()
		return true
	}
	svc.mu.RUnlock()

	healthy := false
	if svc.redis != nil {
		start := time.Now()
		res, err := svc.redis.Ping(c).Result()
		if err != nil {
			log.WithError(err).Error("Redis health check failed")
		} else if res != "PONG" {
			log.WithField("result", res).Warn("Redis health check returned unexpected response")
		} else {
			healthy = true
			log.WithField("duration", time.Since(start)).Debug("Redis health check passed")
		}
	}

	svc.mu.Lock()
	svc.healthy = healthy
	svc.lastHealthCheck = time.Now()
	svc.mu.Unlock()
	return healthy
}

// Healthy returns the last known health state without probing.
func (svc *RedisService) Healthy() bool {
	svc.mu.RLock()
	defer svc.mu.RUnlock()
	return svc.healthy
}

// LastHealthCheck returns when the health state was last refreshed.
func (svc *RedisService) LastHealthCheck() time.Time {
	svc.mu.RLock()
	defer svc.mu.RUnlock()
	return svc.lastHealthCheck
}

func (svc *RedisService) Set(c context.Context, key string, value interface{}, expiration time.Duration) error {
	if svc.redis == nil {
		return fmt.Errorf("redis client not initialized")
	}

	var data []byte
	var err error

	switch v := value.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		data, err = json.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to marshal value: %w", err)
		}
	}

	return svc.redis.Set(c, svc.key(key), data, expiration).Err()
}

// Get returns the value at key, or ("", nil) when the key does not exist.
func (svc *RedisService) Get(c context.Context, key string) (string, error) {
	if svc.redis == nil {
		return "", fmt.Errorf("redis client not initialized")
	}

	result, err := svc.redis.Get(c, svc.key(key)).Result()
	if err == redis.Nil {
		return "", nil
	}
	return result, err
}

// GetJSON unmarshals the value at key into dest. Missing keys leave dest
// untouched and return (false, nil).
func (svc *RedisService) GetJSON(c context.Context, key string, dest interface{}) (bool, error) {
	if svc.redis == nil {
		return false, fmt.Errorf("redis client not initialized")
	}

	result, err := svc.redis.Get(c, svc.key(key)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := json.Unmarshal([]byte(result), dest); err != nil {
		return false, err
	}
	return true, nil
}

func (svc *RedisService) Delete(c context.Context, keys ...string) (int64, error) {
	if svc.redis == nil {
		return 0, fmt.Errorf("redis client not initialized")
	}

	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = svc.key(k)
	}
	return svc.redis.Del(c, prefixed...).Result()
}

func (svc *RedisService) Exists(c context.Context, key string) (bool, error) {
	if svc.redis == nil {
		return false, fmt.Errorf("redis client not initialized")
	}

	result, err := svc.redis.Exists(c, svc.key(key)).Result()
	return result > 0, err
}

func (svc *RedisService) Expire(c context.Context, key string, expiration time.Duration) error {
	if svc.redis == nil {
		return fmt.Errorf("redis client not initialized")
	}

	return svc.redis.Expire(c, svc.key(key), expiration).Err()
}

func (svc *RedisService) SAdd(c context.Context, key string, members ...interface{}) error {
	if svc.redis == nil {
		return fmt.Errorf("redis client not initialized")
	}

	return svc.redis.SAdd(c, svc.key(key), members...).Err()
}

func (svc *RedisService) SMembers(c context.Context, key string) ([]string, error) {
	if svc.redis == nil {
		return nil, fmt.Errorf("redis client not initialized")
	}

	return svc.redis.SMembers(c, svc.key(key)).Result()
}

func (svc *RedisService) SRem(c context.Context, key string, members ...interface{}) error {
	if svc.redis == nil {
		return fmt.Errorf("redis client not initialized")
	}

	return svc.redis.SRem(c, svc.key(key), members...).Err()
}

// ScanKeys iterates the keyspace with SCAN rather than KEYS so large
// keyspaces do not block the server. Returned keys have the service prefix
// stripped.
func (svc *RedisService) ScanKeys(c context.Context, pattern string) ([]string, error) {
	if svc.redis == nil {
		return nil, fmt.Errorf("redis client not initialized")
	}

	var keys []string
	var cursor uint64
	for {
		batch, next, err := svc.redis.Scan(c, cursor, svc.key(pattern), 100).Result()
		if err != nil {
			return nil, err
		}
		for _, k := range batch {
			keys = append(keys, k[len(svc.prefix):])
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}

// SlidingWindowCount runs the four-step sliding window sequence as one atomic
// batch: drop entries older than the window, count what remains, record the
// current request, and refresh the key TTL with a safety margin. Returns the
// count of requests in the window before this one was added.
func (svc *RedisService) SlidingWindowCount(c context.Context, key string, window time.Duration) (int64, error) {
	if svc.redis == nil {
		return 0, fmt.Errorf("redis client not initialized")
	}

	now := time.Now().UnixMilli()
	windowStart := now - window.Milliseconds()
	member := fmt.Sprintf("%d-%d", now, rand.Int63())

	pipe := svc.redis.TxPipeline()
	pipe.ZRemRangeByScore(c, svc.key(key), "0", strconv.FormatInt(windowStart, 10))
	countCmd := pipe.ZCard(c, svc.key(key))
	pipe.ZAdd(c, svc.key(key), redis.Z{Score: float64(now), Member: member})
	pipe.Expire(c, svc.key(key), window+10*time.Second)

	if _, err := pipe.Exec(c); err != nil {
		return 0, err
	}

	return countCmd.Val(), nil
}
