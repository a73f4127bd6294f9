package middleware

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/alphabatem/common/context"
	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"

	"github.com/scix-archive/gateway_api/model"
	"github.com/scix-archive/gateway_api/services"
	"github.com/scix-archive/gateway_api/shared"
)

// AuthMiddleware drives the per-request session lifecycle for page routes:
// load the sealed cookie, bootstrap a token when the current one is invalid
// or the upstream cookie rotated, then apply the route rules (login
// redirects, protected paths, verification and logout flows).
type AuthMiddleware struct {
	context.DefaultService

	cookieSvc  *services.CookieSessionService
	sessionSvc *services.SessionStoreService
	flagSvc    *services.FeatureFlagService
	accountSvc *services.AccountService
	pgSvc      *services.PostgresService
}

const AUTH_MIDDLEWARE_SVC = "auth"

var protectedPrefixes = []string{shared.RouteLibraries, shared.RouteSettings}

var errInvalidBootstrapToken = errors.New("upstream bootstrap returned an invalid token")

func (svc AuthMiddleware) Id() string {
	return AUTH_MIDDLEWARE_SVC
}

func (svc *AuthMiddleware) Configure(ctx *context.Context) error {
	return svc.DefaultService.Configure(ctx)
}

func (svc *AuthMiddleware) Start() error {
	svc.cookieSvc = svc.Service(services.COOKIE_SESSION_SVC).(*services.CookieSessionService)
	svc.sessionSvc = svc.Service(services.SESSION_STORE_SVC).(*services.SessionStoreService)
	svc.flagSvc = svc.Service(services.FEATURE_FLAG_SVC).(*services.FeatureFlagService)
	svc.accountSvc = svc.Service(services.ACCOUNT_SVC).(*services.AccountService)
	svc.pgSvc = svc.Service(services.POSTGRES_SVC).(*services.PostgresService)
	return nil
}

// Handler returns the page-route middleware.
func (svc *AuthMiddleware) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		path := c.Path()
		if !AppliesToPath(path) {
			return c.Next()
		}

		session := svc.cookieSvc.Load(c)
		upstreamCookie := c.Cookies(svc.accountSvc.CookieName())

		// verification and logout run before any token refresh
		if strings.HasPrefix(path, shared.RouteVerify) {
			return svc.handleVerify(c, &session, upstreamCookie)
		}
		if strings.HasPrefix(path, shared.RouteLogout) {
			return svc.handleSignOut(c, &session)
		}

		refresh := c.Get("X-RefreshToken") != ""
		cookieHash := ""
		if upstreamCookie != "" {
			cookieHash = shared.HashAPICookie(upstreamCookie)
		}

		// the session is reusable only while the token is valid and the
		// upstream cookie has not rotated underneath it
		if !refresh && session.Token.Valid() && cookieHash != "" && cookieHash == session.APICookieHash {
			return svc.routeResponse(c, &session)
		}

		if err := svc.bootstrapSession(c, &session, upstreamCookie); err != nil {
			log.WithError(err).WithField("path", path).Warn("Bootstrap failed")
			return svc.redirect(c, shared.RouteHome, nil, shared.NotifyAPIConnectFailed)
		}

		return svc.routeResponse(c, &session)
	}
}

// bootstrapSession exchanges the upstream cookie for a fresh token and
// persists the result in the sealed cookie and, when the rollout selects it,
// the Redis store.
func (svc *AuthMiddleware) bootstrapSession(c *fiber.Ctx, session *model.CookieSession, upstreamCookie string) error {
	token, rotated, err := svc.accountSvc.Bootstrap(c.UserContext(), upstreamCookie)
	if err != nil {
		svc.audit(c, session, model.AuditActionBootstrap, false, err.Error())
		return err
	}
	if !token.Valid() {
		svc.audit(c, session, model.AuditActionBootstrap, false, "invalid token from upstream")
		return errInvalidBootstrapToken
	}

	effectiveCookie := upstreamCookie
	if rotated != "" {
		effectiveCookie = rotated
		c.Cookie(&fiber.Cookie{
			Name:     svc.accountSvc.CookieName(),
			Value:    rotated,
			Path:     "/",
			HTTPOnly: true,
			SameSite: fiber.CookieSameSiteLaxMode,
		})
	}

	session.Token = *token
	session.IsAuthenticated = token.Authenticated()
	session.APICookieHash = shared.HashAPICookie(effectiveCookie)
	if session.SessionID == "" {
		session.SessionID = services.GenerateSessionID()
	}

	if err := svc.cookieSvc.Save(c, *session); err != nil {
		return err
	}

	svc.persistSession(c, session)
	svc.audit(c, session, model.AuditActionBootstrap, true, "")
	return nil
}

// persistSession mirrors the cookie session into Redis for clients the
// rollout has selected. Store failures degrade to cookie-only sessions.
func (svc *AuthMiddleware) persistSession(c *fiber.Ctx, session *model.CookieSession) {
	if !svc.flagSvc.ShouldUseRedisSessions(session.SessionID) {
		return
	}

	userID := ""
	if session.IsAuthenticated {
		userID = session.Token.Username
	}

	record := &model.SessionRecord{
		SessionID:       session.SessionID,
		UserID:          userID,
		Token:           session.Token,
		IsAuthenticated: session.IsAuthenticated,
		APICookieHash:   session.APICookieHash,
		Bot:             IsBotUserAgent(c.Get(fiber.HeaderUserAgent)),
		CreatedAt:       time.Now().UnixMilli(),
		UserAgent:       c.Get(fiber.HeaderUserAgent),
		IP:              ClientIP(c),
	}

	if err := svc.sessionSvc.Set(c.UserContext(), record); err != nil {
		log.WithError(err).WithField("session_id", session.SessionID).
			Warn("Failed to persist session to Redis, continuing with cookie only")
	}
}

// routeResponse applies the route rules in order; the first match wins.
func (svc *AuthMiddleware) routeResponse(c *fiber.Ctx, session *model.CookieSession) error {
	path := c.Path()
	authenticated := session.IsAuthenticated && session.Token.Authenticated()

	c.Locals(shared.SessionID, session.SessionID)
	if authenticated {
		c.Locals(shared.UserID, session.Token.Username)
	}

	svc.touchSession(c, session)

	switch {
	case strings.HasPrefix(path, shared.RouteLogin):
		if authenticated {
			target := ValidRedirectTarget(c.Query(shared.RedirectParam))
			if target == "" {
				target = shared.RouteHome
			}
			return svc.redirect(c, target, nil, "")
		}
		return c.Next()

	case strings.HasPrefix(path, shared.RouteRegister), strings.HasPrefix(path, shared.RouteForgotPassword):
		if authenticated {
			return svc.redirect(c, shared.RouteHome, nil, "")
		}
		return c.Next()

	case isProtectedPath(path):
		if !authenticated {
			params := map[string]string{shared.RedirectParam: path}
			return svc.redirect(c, shared.RouteLogin, params, shared.NotifyLoginRequired)
		}
		return c.Next()

	default:
		return c.Next()
	}
}

// touchSession refreshes activity on the Redis record for selected clients.
func (svc *AuthMiddleware) touchSession(c *fiber.Ctx, session *model.CookieSession) {
	if session.SessionID == "" || !svc.flagSvc.ShouldUseRedisSessions(session.SessionID) {
		return
	}
	if err := svc.sessionSvc.Touch(c.UserContext(), session.SessionID); err != nil {
		log.WithError(err).WithField("session_id", session.SessionID).Debug("Session touch failed")
	}
}

// handleVerify consumes one-time email verification links of the form
// /user/account/verify/<route>/<token>.
func (svc *AuthMiddleware) handleVerify(c *fiber.Ctx, session *model.CookieSession, upstreamCookie string) error {
	parts := strings.Split(c.Path(), "/")
	if len(parts) < 6 {
		return svc.redirect(c, shared.RouteHome, nil, "")
	}
	route, token := parts[4], parts[5]

	switch route {
	case "reset-password":
		// password reset prompts for a new password on the page itself
		return c.Next()
	case "change-email", "register":
	default:
		return svc.redirect(c, shared.RouteHome, nil, "")
	}

	outcome, rotated, err := svc.accountSvc.VerifyAccount(c.UserContext(), token, session.Token.AccessToken, upstreamCookie)
	if rotated != "" {
		c.Cookie(&fiber.Cookie{
			Name:     svc.accountSvc.CookieName(),
			Value:    rotated,
			Path:     "/",
			HTTPOnly: true,
			SameSite: fiber.CookieSameSiteLaxMode,
		})
	}

	switch outcome {
	case services.VerifySuccess:
		svc.audit(c, session, model.AuditActionVerify, true, route)
		return svc.redirect(c, shared.RouteHome, nil, shared.NotifyVerifySuccess)
	case services.VerifyInvalidToken:
		svc.audit(c, session, model.AuditActionVerify, false, "unknown verification token")
		return svc.redirect(c, shared.RouteHome, nil, shared.NotifyVerifyFailed)
	default:
		if err != nil {
			log.WithError(err).Warn("Account verification errored")
		}
		svc.audit(c, session, model.AuditActionVerify, false, "already validated or upstream error")
		return svc.redirect(c, shared.RouteHome, nil, shared.NotifyVerifyWasValid)
	}
}

// handleSignOut serves the /__/out page route: destroy everything, land on
// the home page with a notification.
func (svc *AuthMiddleware) handleSignOut(c *fiber.Ctx, session *model.CookieSession) error {
	if session.SessionID != "" && svc.flagSvc.ShouldUseRedisSessions(session.SessionID) {
		if _, err := svc.sessionSvc.Destroy(c.UserContext(), session.SessionID); err != nil {
			log.WithError(err).WithField("session_id", session.SessionID).Warn("Failed to destroy Redis session on sign-out")
		}
	}

	svc.cookieSvc.Clear(c)
	svc.audit(c, session, model.AuditActionLogout, true, "page sign-out")
	return svc.redirect(c, shared.RouteHome, nil, shared.NotifyLogoutSuccess)
}

// redirect issues a 307 to path, carrying over the current query string
// minus the routing params, then applying extras and the notification ID.
func (svc *AuthMiddleware) redirect(c *fiber.Ctx, path string, params map[string]string, notifyID string) error {
	query, err := url.ParseQuery(string(c.Request().URI().QueryString()))
	if err != nil {
		query = url.Values{}
	}
	query.Del(shared.RedirectParam)
	query.Del(shared.NotifyParam)

	for k, v := range params {
		query.Set(k, v)
	}
	if notifyID != "" {
		query.Set(shared.NotifyParam, notifyID)
	}

	target := path
	if encoded := query.Encode(); encoded != "" {
		target += "?" + encoded
	}
	return c.Redirect(target, fiber.StatusTemporaryRedirect)
}

func (svc *AuthMiddleware) audit(c *fiber.Ctx, session *model.CookieSession, action string, success bool, details string) {
	userID := ""
	if session.Token.Authenticated() {
		userID = session.Token.Username
	}
	svc.pgSvc.RecordAudit(&model.AuthAuditLog{
		UserID:    userID,
		SessionID: session.SessionID,
		Action:    action,
		IP:        ClientIP(c),
		UserAgent: c.Get(fiber.HeaderUserAgent),
		Success:   success,
		Details:   details,
	})
}

func isProtectedPath(path string) bool {
	for _, prefix := range protectedPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// ValidRedirectTarget decodes a next param and returns it only when it is a
// same-origin relative path under an allow-listed prefix. Anything else
// returns empty, which sends the client to the home page instead.
func ValidRedirectTarget(raw string) string {
	if raw == "" {
		return ""
	}

	decoded, err := url.QueryUnescape(raw)
	if err != nil {
		return ""
	}

	parsed, err := url.Parse(decoded)
	if err != nil || parsed.IsAbs() || parsed.Host != "" {
		return ""
	}
	if !strings.HasPrefix(decoded, "/") || strings.HasPrefix(decoded, "//") {
		return ""
	}

	for _, prefix := range protectedPrefixes {
		if strings.HasPrefix(parsed.Path, prefix) {
			return parsed.Path
		}
	}
	return ""
}

var botUserAgentTokens = []string{"bot", "crawler", "spider", "curl", "wget", "python-requests"}

// IsBotUserAgent flags well-known crawler user agents so their sessions get
// the shorter bot TTL.
func IsBotUserAgent(userAgent string) bool {
	ua := strings.ToLower(userAgent)
	for _, token := range botUserAgentTokens {
		if strings.Contains(ua, token) {
			return true
		}
	}
	return false
}
