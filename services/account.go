package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	appContext "github.com/alphabatem/common/context"
	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"github.com/scix-archive/gateway_api/model"
)

// VerifyOutcome classifies upstream account verification results.
type VerifyOutcome int

const (
	VerifySuccess VerifyOutcome = iota
	VerifyInvalidToken
	VerifyAlreadyValid
	VerifyError
)

// AccountService talks to the upstream accounts API for token bootstrap,
// email verification and logout. It forwards the upstream session cookie on
// every call and surfaces the rotated cookie from Set-Cookie so callers can
// pass it back to the client.
type AccountService struct {
	appContext.DefaultService

	apiHost    string
	cookieName string
	client     *http.Client
}

const ACCOUNT_SVC = "account_svc"

const accountRequestTimeout = 10 * time.Second

func (svc AccountService) Id() string {
	return ACCOUNT_SVC
}

func (svc *AccountService) Configure(ctx *appContext.Context) error {
	svc.apiHost = strings.TrimRight(os.Getenv("API_HOST_SERVER"), "/")
	if svc.apiHost == "" {
		return fmt.Errorf("API_HOST_SERVER is required")
	}

	svc.cookieName = os.Getenv("API_SESSION_COOKIE_NAME")
	if svc.cookieName == "" {
		svc.cookieName = "ads_session"
	}

	svc.client = &http.Client{Timeout: accountRequestTimeout}
	return svc.DefaultService.Configure(ctx)
}

func (svc *AccountService) Start() error {
	return nil
}

// CookieName returns the upstream session cookie name.
func (svc *AccountService) CookieName() string {
	return svc.cookieName
}

type bootstrapResponse struct {
	AccessToken string `json:"access_token"`
	Username    string `json:"username"`
	Anonymous   bool   `json:"anonymous"`
	ExpiresAt   string `json:"expires_at"`
}

type accountsResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Bootstrap exchanges the upstream cookie (or nothing) for a token. Returns
// the token and the rotated upstream cookie value, which is empty when the
// upstream did not rotate.
func (svc *AccountService) Bootstrap(c context.Context, upstreamCookie string) (*model.TokenData, string, error) {
	req, err := http.NewRequestWithContext(c, http.MethodGet, svc.apiHost+"/accounts/bootstrap", nil)
	if err != nil {
		return nil, "", err
	}
	svc.attachCookie(req, upstreamCookie)

	resp, err := svc.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("bootstrap request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("bootstrap returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}

	var payload bootstrapResponse
	if err := sonic.Unmarshal(body, &payload); err != nil {
		return nil, "", fmt.Errorf("failed to decode bootstrap response: %w", err)
	}

	token := &model.TokenData{
		AccessToken: payload.AccessToken,
		Username:    payload.Username,
		Anonymous:   payload.Anonymous,
		ExpiresAt:   parseExpiresAt(payload.ExpiresAt),
	}

	return token, svc.rotatedCookie(resp), nil
}

// VerifyAccount consumes a one-time email verification token.
func (svc *AccountService) VerifyAccount(c context.Context, token, accessToken, upstreamCookie string) (VerifyOutcome, string, error) {
	req, err := http.NewRequestWithContext(c, http.MethodGet, svc.apiHost+"/accounts/verify/"+token, nil)
	if err != nil {
		return VerifyError, "", err
	}
	req.Header.Set("Authorization", "Bearer:"+accessToken)
	svc.attachCookie(req, upstreamCookie)

	resp, err := svc.client.Do(req)
	if err != nil {
		return VerifyError, "", fmt.Errorf("verify request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return VerifyError, "", err
	}

	var payload accountsResponse
	if err := sonic.Unmarshal(body, &payload); err != nil {
		return VerifyError, "", fmt.Errorf("failed to decode verify response: %w", err)
	}

	rotated := svc.rotatedCookie(resp)

	switch {
	case payload.Message == "success":
		return VerifySuccess, rotated, nil
	case strings.Contains(payload.Error, "unknown verification token"):
		return VerifyInvalidToken, rotated, nil
	case strings.Contains(payload.Error, "already been validated"):
		return VerifyAlreadyValid, rotated, nil
	default:
		return VerifyError, rotated, fmt.Errorf("verify failed: %s", payload.Error)
	}
}

// Logout invalidates the upstream session. The rotated cookie from the
// response replaces the client's upstream cookie.
func (svc *AccountService) Logout(c context.Context, accessToken, upstreamCookie string) (string, error) {
	req, err := http.NewRequestWithContext(c, http.MethodPost, svc.apiHost+"/accounts/logout", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer:"+accessToken)
	svc.attachCookie(req, upstreamCookie)

	resp, err := svc.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("logout request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var payload accountsResponse
	if err := sonic.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("failed to decode logout response: %w", err)
	}
	if payload.Message != "success" {
		return "", fmt.Errorf("upstream logout failed: %s", payload.Error)
	}

	return svc.rotatedCookie(resp), nil
}

func (svc *AccountService) attachCookie(req *http.Request, value string) {
	if value != "" {
		req.AddCookie(&http.Cookie{Name: svc.cookieName, Value: value})
	}
}

func (svc *AccountService) rotatedCookie(resp *http.Response) string {
	for _, cookie := range resp.Cookies() {
		if cookie.Name == svc.cookieName {
			return cookie.Value
		}
	}
	return ""
}

// parseExpiresAt accepts the upstream's epoch-seconds string. Anything
// unparseable yields the zero time, which fails TokenData.Valid.
func parseExpiresAt(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		log.WithField("expires_at", raw).Warn("Unparseable token expiry from upstream")
		return time.Time{}
	}
	// The upstream occasionally hands back far-future sentinel values that
	// overflow time.Unix display ranges; clamp to 10 years out.
	max := time.Now().Add(10 * 365 * 24 * time.Hour)
	t := time.Unix(secs, 0)
	if t.After(max) {
		return max
	}
	return t
}
