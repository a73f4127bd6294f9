package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/scix-archive/gateway_api/dto"
	"github.com/scix-archive/gateway_api/model"
)

type SessionStoreInterface interface {
	Get(c context.Context, sessionID string) (*model.SessionRecord, error)
	Set(c context.Context, record *model.SessionRecord) error
	Destroy(c context.Context, sessionID string) (bool, error)
	GetUserSessions(c context.Context, userID string) ([]model.SessionRecord, error)
	DestroyAllUserSessions(c context.Context, userID, exceptSessionID string) (int, error)
	Stats(c context.Context) (*dto.SessionStats, error)
}

type FeatureFlagInterface interface {
	RedisSessionsEnabled() bool
	ShouldUseRedisSessions(sessionID string) bool
	Status() map[string]interface{}
}

type RedisHealthInterface interface {
	HealthCheck(c context.Context) bool
	Healthy() bool
	LastHealthCheck() time.Time
}

type CookieSessionInterface interface {
	Load(c *fiber.Ctx) model.CookieSession
	Save(c *fiber.Ctx, session model.CookieSession) error
	Clear(c *fiber.Ctx)
}

type AccountInterface interface {
	CookieName() string
	Bootstrap(c context.Context, upstreamCookie string) (*model.TokenData, string, error)
	Logout(c context.Context, accessToken, upstreamCookie string) (string, error)
}

type AuditInterface interface {
	RecordAudit(entry *model.AuthAuditLog)
}
