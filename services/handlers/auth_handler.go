package handlers

import (
	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"

	"github.com/scix-archive/gateway_api/dto"
	"github.com/scix-archive/gateway_api/model"
	"github.com/scix-archive/gateway_api/shared"
)

// AuthHandler serves the user identity and logout endpoints.
type AuthHandler struct {
	cookieSvc  CookieSessionInterface
	accountSvc AccountInterface
	sessionSvc SessionStoreInterface
	flagSvc    FeatureFlagInterface
	auditSvc   AuditInterface
}

func NewAuthHandler(cookieSvc CookieSessionInterface, accountSvc AccountInterface, sessionSvc SessionStoreInterface, flagSvc FeatureFlagInterface, auditSvc AuditInterface) *AuthHandler {
	return &AuthHandler{
		cookieSvc:  cookieSvc,
		accountSvc: accountSvc,
		sessionSvc: sessionSvc,
		flagSvc:    flagSvc,
		auditSvc:   auditSvc,
	}
}

// @Summary Current user
// @Description Return the calling user's token state from the sealed session
// @Tags auth
// @Produce json
// @Success 200 {object} dto.UserResponse
// @Router /api/user [get]
func (h *AuthHandler) User(c *fiber.Ctx) error {
	session := h.cookieSvc.Load(c)
	return c.JSON(dto.UserResponse{
		IsAuthenticated: session.Token.Authenticated(),
		User:            session.Token,
	})
}

// @Summary Log out
// @Description Invalidate the upstream session, destroy the stored session and reset to an anonymous one
// @Tags auth
// @Produce json
// @Success 200 {object} dto.LogoutResponse
// @Failure 401 {object} shared.APIError
// @Router /api/auth/logout [post]
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	session := h.cookieSvc.Load(c)
	upstreamCookie := c.Cookies(h.accountSvc.CookieName())

	if !session.Token.Valid() {
		return shared.ResponseError(c, fiber.StatusUnauthorized, shared.ErrCodeLogoutFailed)
	}

	rotated, err := h.accountSvc.Logout(c.UserContext(), session.Token.AccessToken, upstreamCookie)
	if err != nil {
		log.WithError(err).Warn("Upstream logout failed")
		h.recordLogout(c, &session, false, err.Error())
		return shared.ResponseError(c, fiber.StatusUnauthorized, shared.ErrCodeLogoutFailed)
	}

	if session.SessionID != "" && h.flagSvc.ShouldUseRedisSessions(session.SessionID) {
		if _, err := h.sessionSvc.Destroy(c.UserContext(), session.SessionID); err != nil {
			log.WithError(err).WithField("session_id", session.SessionID).Warn("Failed to destroy Redis session on logout")
		}
	}

	h.recordLogout(c, &session, true, "")
	h.cookieSvc.Clear(c)

	// immediately re-bootstrap so the client leaves with a working
	// anonymous session instead of none at all
	if rotated != "" {
		upstreamCookie = rotated
	}
	token, rotated, err := h.accountSvc.Bootstrap(c.UserContext(), upstreamCookie)
	if err == nil && token.Valid() {
		if rotated != "" {
			upstreamCookie = rotated
			c.Cookie(&fiber.Cookie{
				Name:     h.accountSvc.CookieName(),
				Value:    rotated,
				Path:     "/",
				HTTPOnly: true,
				SameSite: fiber.CookieSameSiteLaxMode,
			})
		}
		fresh := model.CookieSession{
			Token:         *token,
			APICookieHash: shared.HashAPICookie(upstreamCookie),
		}
		if err := h.cookieSvc.Save(c, fresh); err != nil {
			log.WithError(err).Warn("Failed to save anonymous session after logout")
		}
	} else if err != nil {
		log.WithError(err).Warn("Anonymous bootstrap after logout failed")
	}

	return c.JSON(dto.LogoutResponse{Success: true})
}

func (h *AuthHandler) recordLogout(c *fiber.Ctx, session *model.CookieSession, success bool, details string) {
	userID := ""
	if session.Token.Authenticated() {
		userID = session.Token.Username
	}
	h.auditSvc.RecordAudit(&model.AuthAuditLog{
		UserID:    userID,
		SessionID: session.SessionID,
		Action:    model.AuditActionLogout,
		IP:        c.IP(),
		UserAgent: c.Get(fiber.HeaderUserAgent),
		Success:   success,
		Details:   details,
	})
}
