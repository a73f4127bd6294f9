package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/alphabatem/common/context"
	"github.com/gofiber/fiber/v2"

	"github.com/scix-archive/gateway_api/services"
	"github.com/scix-archive/gateway_api/shared"
)

// RateLimitMiddleware applies the shared sliding window per client IP on
// everything the page/API matcher covers.
type RateLimitMiddleware struct {
	context.DefaultService

	rateLimitSvc *services.RateLimitService
}

const RATE_LIMIT_MIDDLEWARE_SVC = "rate_limit"

func (svc RateLimitMiddleware) Id() string {
	return RATE_LIMIT_MIDDLEWARE_SVC
}

func (svc *RateLimitMiddleware) Configure(ctx *context.Context) error {
	return svc.DefaultService.Configure(ctx)
}

func (svc *RateLimitMiddleware) Start() error {
	svc.rateLimitSvc = svc.Service(services.RATE_LIMIT_SVC).(*services.RateLimitService)
	return nil
}

// Handler limits by client IP. Denials answer 429 with Retry-After; the
// window state rides on X-RateLimit headers either way.
func (svc *RateLimitMiddleware) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !AppliesToPath(c.Path()) {
			return c.Next()
		}

		ip := ClientIP(c)
		info, allowed := svc.rateLimitSvc.Allow(c.UserContext(), ip)

		c.Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		c.Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetAt/1000, 10))

		if !allowed {
			retryAfter := (info.ResetAt - time.Now().UnixMilli()) / 1000
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Set("Retry-After", strconv.FormatInt(retryAfter, 10))
			return shared.ResponseError(c, fiber.StatusTooManyRequests, shared.ErrCodeRateLimited)
		}

		return c.Next()
	}
}

// AppliesToPath mirrors the page matcher: static assets and API routes are
// exempt, except /api/user which is always covered.
func AppliesToPath(path string) bool {
	if path == "/api/user" {
		return true
	}
	if strings.HasPrefix(path, "/api/") {
		return false
	}
	return !IsStaticAsset(path)
}

var staticPrefixes = []string{
	"/_next/",
	"/static/",
	"/images/",
	"/styles/",
	"/mockServiceWorker",
}

var staticSuffixes = []string{
	".ico", ".png", ".jpg", ".jpeg", ".svg", ".gif", ".webp",
	".js", ".css", ".map", ".txt", ".xml", ".json", ".webmanifest",
	".woff", ".woff2",
}

// IsStaticAsset reports whether the path serves build output or other
// static files that never carry session state.
func IsStaticAsset(path string) bool {
	for _, prefix := range staticPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	for _, suffix := range staticSuffixes {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
}

// ClientIP resolves the originating client address behind proxies.
func ClientIP(c *fiber.Ctx) string {
	forwarded := c.Get("X-Forwarded-For")
	if forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 && strings.TrimSpace(parts[0]) != "" {
			return strings.TrimSpace(parts[0])
		}
	}

	realIP := c.Get("X-Real-IP")
	if realIP != "" {
		return realIP
	}

	return c.IP()
}
