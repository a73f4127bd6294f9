package model

import "time"

// AuthAuditLog records authentication-affecting events (bootstrap, logout,
// session revocation) for operator review.
type AuthAuditLog struct {
	ID        string    `json:"id" gorm:"primaryKey;type:text;not null"`
	UserID    string    `json:"user_id,omitempty" gorm:"index;size:255"`
	SessionID string    `json:"session_id,omitempty" gorm:"index;size:64"`
	Action    string    `json:"action" gorm:"not null;size:50"`
	IP        string    `json:"ip,omitempty" gorm:"size:64"`
	UserAgent string    `json:"user_agent,omitempty" gorm:"size:512"`
	Success   bool      `json:"success" gorm:"not null"`
	Details   string    `json:"details,omitempty" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at" gorm:"index;not null"`
}

const (
	AuditActionBootstrap = "bootstrap"
	AuditActionLogout    = "logout"
	AuditActionRevoke    = "session_revoke"
	AuditActionRevokeAll = "session_revoke_all"
	AuditActionVerify    = "account_verify"
)
