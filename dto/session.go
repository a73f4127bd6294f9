package dto

import "github.com/scix-archive/gateway_api/model"

// ==================== SESSION MANAGEMENT DTOs ====================

type SessionInfo struct {
	SessionID    string `json:"session_id" example:"9f2c4a1b7d3e5f60"`
	CreatedAt    int64  `json:"created_at" example:"1700000000000"`
	LastActivity int64  `json:"last_activity" example:"1700000600000"`
	UserAgent    string `json:"user_agent,omitempty" example:"Mozilla/5.0..."`
	IP           string `json:"ip,omitempty" example:"192.168.1.1"`
	Current      bool   `json:"current" example:"false"`
}

type SessionListResponse struct {
	Success  bool          `json:"success"`
	Sessions []SessionInfo `json:"sessions"`
}

type RevokeSessionRequest struct {
	SessionID string `json:"session_id" validate:"required,session_id"`
}

func (r RevokeSessionRequest) Validate() error {
	return GetValidator().Struct(r)
}

type RevokeSessionResponse struct {
	Success bool `json:"success"`
}

type RevokeAllSessionsResponse struct {
	Success bool `json:"success"`
	Count   int  `json:"count" example:"3"`
}

// ==================== USER IDENTITY DTOs ====================

type UserResponse struct {
	IsAuthenticated bool            `json:"is_authenticated"`
	User            model.TokenData `json:"user"`
}

type LogoutResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// ==================== RATE LIMIT DTOs ====================

type RateLimitInfo struct {
	Count     int   `json:"count"`
	Limit     int   `json:"limit"`
	Remaining int   `json:"remaining"`
	ResetAt   int64 `json:"reset_at,omitempty"`
}

// ==================== VALIDATION DTOs ====================

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationErrorResponse struct {
	Code    int               `json:"code"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors"`
}
