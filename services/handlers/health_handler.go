package handlers

import (
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"

	"github.com/scix-archive/gateway_api/dto"
)

// HealthHandler reports gateway health including the Redis session backend.
type HealthHandler struct {
	redisSvc   RedisHealthInterface
	sessionSvc SessionStoreInterface
	flagSvc    FeatureFlagInterface

	startedAt time.Time
}

func NewHealthHandler(redisSvc RedisHealthInterface, sessionSvc SessionStoreInterface, flagSvc FeatureFlagInterface) *HealthHandler {
	return &HealthHandler{
		redisSvc:   redisSvc,
		sessionSvc: sessionSvc,
		flagSvc:    flagSvc,
		startedAt:  time.Now(),
	}
}

// @Summary Gateway health
// @Description Report gateway status including Redis backend health and session counts
// @Tags health
// @Produce json
// @Success 200 {object} dto.HealthResponse
// @Failure 503 {object} dto.HealthResponse
// @Router /api/health [get]
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	resp := dto.HealthResponse{
		Status:    dto.HealthStatusHealthy,
		Timestamp: time.Now().UnixMilli(),
		Uptime:    time.Since(h.startedAt).Seconds(),
	}

	enabled := h.flagSvc.RedisSessionsEnabled()
	if enabled {
		healthy := h.redisSvc.HealthCheck(c.UserContext())
		resp.Redis = &dto.RedisHealth{
			Enabled:         true,
			Connected:       h.redisSvc.Healthy(),
			Healthy:         healthy,
			LastHealthCheck: h.redisSvc.LastHealthCheck().UnixMilli(),
		}

		if healthy {
			if stats, err := h.sessionSvc.Stats(c.UserContext()); err == nil {
				resp.Sessions = stats
			} else {
				log.WithError(err).Warn("Failed to collect session stats for health report")
			}
		} else {
			// cookie sessions still work, the gateway is degraded not down
			resp.Status = dto.HealthStatusDegraded
		}
	} else {
		resp.Redis = &dto.RedisHealth{Enabled: false}
	}

	if os.Getenv("APP_ENV") != "production" {
		resp.FeatureFlags = h.flagSvc.Status()
	}

	return c.JSON(resp)
}
