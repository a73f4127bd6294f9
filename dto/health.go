package dto

type RedisHealth struct {
	Enabled         bool  `json:"enabled"`
	Connected       bool  `json:"connected"`
	Healthy         bool  `json:"healthy"`
	LastHealthCheck int64 `json:"last_health_check"`
}

type SessionStats struct {
	TotalSessions int `json:"total_sessions"`
	TotalIndexes  int `json:"total_indexes"`
}

type HealthResponse struct {
	Status       string                 `json:"status"`
	Timestamp    int64                  `json:"timestamp"`
	Uptime       float64                `json:"uptime"`
	Redis        *RedisHealth           `json:"redis,omitempty"`
	Sessions     *SessionStats          `json:"sessions,omitempty"`
	FeatureFlags map[string]interface{} `json:"feature_flags,omitempty"`
}

const (
	HealthStatusHealthy   = "healthy"
	HealthStatusDegraded  = "degraded"
	HealthStatusUnhealthy = "unhealthy"
)
