package handlers

import (
	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"

	"github.com/scix-archive/gateway_api/dto"
	"github.com/scix-archive/gateway_api/model"
	"github.com/scix-archive/gateway_api/shared"
)

// SessionHandler serves the session management endpoints. All three require
// an authenticated caller whose session is on the Redis path; cookie-only
// sessions have nothing to manage.
type SessionHandler struct {
	sessionSvc SessionStoreInterface
	flagSvc    FeatureFlagInterface
	cookieSvc  CookieSessionInterface
	auditSvc   AuditInterface
}

func NewSessionHandler(sessionSvc SessionStoreInterface, flagSvc FeatureFlagInterface, cookieSvc CookieSessionInterface, auditSvc AuditInterface) *SessionHandler {
	return &SessionHandler{
		sessionSvc: sessionSvc,
		flagSvc:    flagSvc,
		cookieSvc:  cookieSvc,
		auditSvc:   auditSvc,
	}
}

// requireManagedSession resolves the caller's session and enforces the
// availability and authentication preconditions shared by every endpoint.
func (h *SessionHandler) requireManagedSession(c *fiber.Ctx) (*model.CookieSession, error) {
	session := h.cookieSvc.Load(c)

	if session.SessionID == "" || !h.flagSvc.ShouldUseRedisSessions(session.SessionID) {
		return nil, shared.ResponseError(c, fiber.StatusServiceUnavailable, shared.ErrCodeSessionMgmtDisabled)
	}
	if !session.Token.Authenticated() {
		return nil, shared.ResponseError(c, fiber.StatusUnauthorized, shared.ErrCodeUnauthorized)
	}
	return &session, nil
}

// @Summary List active sessions
// @Description List the calling user's active sessions, marking the current one
// @Tags sessions
// @Produce json
// @Success 200 {object} dto.SessionListResponse
// @Failure 401 {object} shared.APIError
// @Failure 503 {object} shared.APIError
// @Router /api/sessions [get]
func (h *SessionHandler) ListSessions(c *fiber.Ctx) error {
	session, err := h.requireManagedSession(c)
	if session == nil {
		return err
	}

	records, err := h.sessionSvc.GetUserSessions(c.UserContext(), session.Token.Username)
	if err != nil {
		log.WithError(err).WithField("user_id", session.Token.Username).Error("Failed to list sessions")
		return shared.ResponseError(c, fiber.StatusInternalServerError, shared.ErrCodeInternalError)
	}

	sessions := make([]dto.SessionInfo, 0, len(records))
	for _, record := range records {
		sessions = append(sessions, dto.SessionInfo{
			SessionID:    record.SessionID,
			CreatedAt:    record.CreatedAt,
			LastActivity: record.LastActivity,
			UserAgent:    record.UserAgent,
			IP:           record.IP,
			Current:      record.SessionID == session.SessionID,
		})
	}

	return c.JSON(dto.SessionListResponse{Success: true, Sessions: sessions})
}

// @Summary Revoke one session
// @Description Revoke a single session by ID; the current session cannot revoke itself
// @Tags sessions
// @Accept json
// @Produce json
// @Param revokeRequest body dto.RevokeSessionRequest true "Session to revoke"
// @Success 200 {object} dto.RevokeSessionResponse
// @Failure 400 {object} shared.APIError
// @Failure 401 {object} shared.APIError
// @Failure 404 {object} shared.APIError
// @Router /api/sessions/revoke [post]
func (h *SessionHandler) RevokeSession(c *fiber.Ctx) error {
	session, err := h.requireManagedSession(c)
	if session == nil {
		return err
	}

	var req dto.RevokeSessionRequest
	if err := c.BodyParser(&req); err != nil || req.Validate() != nil {
		return shared.ResponseError(c, fiber.StatusBadRequest, shared.ErrCodeMissingSessionID)
	}
	if req.SessionID == session.SessionID {
		return shared.ResponseError(c, fiber.StatusBadRequest, shared.ErrCodeCannotRevokeCurrent)
	}

	// ownership check before destroying anything
	target, err := h.sessionSvc.Get(c.UserContext(), req.SessionID)
	if err != nil {
		log.WithError(err).WithField("session_id", req.SessionID).Error("Failed to load session for revocation")
		return shared.ResponseError(c, fiber.StatusInternalServerError, shared.ErrCodeInternalError)
	}
	if target == nil || target.UserID != session.Token.Username {
		return shared.ResponseError(c, fiber.StatusNotFound, shared.ErrCodeSessionNotFound)
	}

	destroyed, err := h.sessionSvc.Destroy(c.UserContext(), req.SessionID)
	if err != nil {
		log.WithError(err).WithField("session_id", req.SessionID).Error("Failed to revoke session")
		return shared.ResponseError(c, fiber.StatusInternalServerError, shared.ErrCodeRevocationFailed)
	}
	if !destroyed {
		return shared.ResponseError(c, fiber.StatusNotFound, shared.ErrCodeSessionNotFound)
	}

	h.auditSvc.RecordAudit(&model.AuthAuditLog{
		UserID:    session.Token.Username,
		SessionID: req.SessionID,
		Action:    model.AuditActionRevoke,
		IP:        c.IP(),
		UserAgent: c.Get(fiber.HeaderUserAgent),
		Success:   true,
	})

	return c.JSON(dto.RevokeSessionResponse{Success: true})
}

// @Summary Revoke all other sessions
// @Description Revoke every session belonging to the calling user except the current one
// @Tags sessions
// @Produce json
// @Success 200 {object} dto.RevokeAllSessionsResponse
// @Failure 401 {object} shared.APIError
// @Failure 503 {object} shared.APIError
// @Router /api/sessions/revoke-all [post]
func (h *SessionHandler) RevokeAllSessions(c *fiber.Ctx) error {
	session, err := h.requireManagedSession(c)
	if session == nil {
		return err
	}

	count, err := h.sessionSvc.DestroyAllUserSessions(c.UserContext(), session.Token.Username, session.SessionID)
	if err != nil {
		log.WithError(err).WithField("user_id", session.Token.Username).Error("Failed to revoke sessions")
		return shared.ResponseError(c, fiber.StatusInternalServerError, shared.ErrCodeRevocationFailed)
	}

	h.auditSvc.RecordAudit(&model.AuthAuditLog{
		UserID:    session.Token.Username,
		SessionID: session.SessionID,
		Action:    model.AuditActionRevokeAll,
		IP:        c.IP(),
		UserAgent: c.Get(fiber.HeaderUserAgent),
		Success:   true,
	})

	return c.JSON(dto.RevokeAllSessionsResponse{Success: true, Count: count})
}
