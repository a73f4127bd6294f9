package handlers

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"

	"github.com/scix-archive/gateway_api/dto"
	"github.com/scix-archive/gateway_api/model"
)

var errStoreDown = errors.New("store down")

type fakeStore struct {
	sessions map[string]*model.SessionRecord
	failing  bool

	destroyed []string
}

func newFakeStore(records ...*model.SessionRecord) *fakeStore {
	s := &fakeStore{sessions: map[string]*model.SessionRecord{}}
	for _, r := range records {
		s.sessions[r.SessionID] = r
	}
	return s
}

func (s *fakeStore) Get(_ context.Context, sessionID string) (*model.SessionRecord, error) {
	if s.failing {
		return nil, errStoreDown
	}
	return s.sessions[sessionID], nil
}

func (s *fakeStore) Set(_ context.Context, record *model.SessionRecord) error {
	if s.failing {
		return errStoreDown
	}
	s.sessions[record.SessionID] = record
	return nil
}

func (s *fakeStore) Destroy(_ context.Context, sessionID string) (bool, error) {
	if s.failing {
		return false, errStoreDown
	}
	if _, ok := s.sessions[sessionID]; !ok {
		return false, nil
	}
	delete(s.sessions, sessionID)
	s.destroyed = append(s.destroyed, sessionID)
	return true, nil
}

func (s *fakeStore) GetUserSessions(_ context.Context, userID string) ([]model.SessionRecord, error) {
	if s.failing {
		return nil, errStoreDown
	}
	var out []model.SessionRecord
	for _, r := range s.sessions {
		if r.UserID == userID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (s *fakeStore) DestroyAllUserSessions(_ context.Context, userID, exceptSessionID string) (int, error) {
	if s.failing {
		return 0, errStoreDown
	}
	count := 0
	for id, r := range s.sessions {
		if r.UserID == userID && id != exceptSessionID {
			delete(s.sessions, id)
			s.destroyed = append(s.destroyed, id)
			count++
		}
	}
	return count, nil
}

func (s *fakeStore) Stats(_ context.Context) (*dto.SessionStats, error) {
	if s.failing {
		return nil, errStoreDown
	}
	users := map[string]bool{}
	for _, r := range s.sessions {
		if r.UserID != "" {
			users[r.UserID] = true
		}
	}
	return &dto.SessionStats{TotalSessions: len(s.sessions), TotalIndexes: len(users)}, nil
}

type fakeFlags struct {
	enabled   bool
	shouldUse bool
}

func (f *fakeFlags) RedisSessionsEnabled() bool { return f.enabled }

func (f *fakeFlags) ShouldUseRedisSessions(sessionID string) bool { return f.shouldUse }
func (f *fakeFlags) Status() map[string]interface{} {
	return map[string]interface{}{"redis_sessions_enabled": f.enabled}
}

type fakeCookies struct {
	session model.CookieSession

	saved   []model.CookieSession
	cleared bool
}

func (f *fakeCookies) Load(_ *fiber.Ctx) model.CookieSession { return f.session }
func (f *fakeCookies) Save(_ *fiber.Ctx, session model.CookieSession) error {
	f.saved = append(f.saved, session)
	return nil
}
func (f *fakeCookies) Clear(_ *fiber.Ctx) { f.cleared = true }

type fakeAudit struct {
	entries []*model.AuthAuditLog
}

func (f *fakeAudit) RecordAudit(entry *model.AuthAuditLog) {
	f.entries = append(f.entries, entry)
}

type fakeRedisHealth struct {
	healthy bool
	last    time.Time
}

func (f *fakeRedisHealth) HealthCheck(_ context.Context) bool { return f.healthy }
func (f *fakeRedisHealth) Healthy() bool                      { return f.healthy }
func (f *fakeRedisHealth) LastHealthCheck() time.Time         { return f.last }

type fakeAccount struct {
	token        *model.TokenData
	bootstrapErr error
	logoutErr    error
	rotated      string

	logoutTokens []string
}

func (f *fakeAccount) CookieName() string { return "ads_session" }

func (f *fakeAccount) Bootstrap(_ context.Context, upstreamCookie string) (*model.TokenData, string, error) {
	if f.bootstrapErr != nil {
		return nil, "", f.bootstrapErr
	}
	return f.token, f.rotated, nil
}

func (f *fakeAccount) Logout(_ context.Context, accessToken, upstreamCookie string) (string, error) {
	f.logoutTokens = append(f.logoutTokens, accessToken)
	if f.logoutErr != nil {
		return "", f.logoutErr
	}
	return f.rotated, nil
}

func authedCookieSession(sessionID string) model.CookieSession {
	return model.CookieSession{
		SessionID: sessionID,
		Token: model.TokenData{
			AccessToken: "access",
			Username:    "user@example.com",
			ExpiresAt:   time.Now().Add(time.Hour),
		},
		IsAuthenticated: true,
		APICookieHash:   "hash",
	}
}

func anonymousCookieSession(sessionID string) model.CookieSession {
	return model.CookieSession{
		SessionID: sessionID,
		Token: model.TokenData{
			AccessToken: "access",
			Username:    model.AnonymousUsername,
			Anonymous:   true,
			ExpiresAt:   time.Now().Add(time.Hour),
		},
	}
}

func doRequest(t *testing.T, app *fiber.App, method, path, body string) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, raw
}

func decodeJSON(t *testing.T, raw []byte, out interface{}) {
	t.Helper()
	if err := sonic.Unmarshal(raw, out); err != nil {
		t.Fatalf("unmarshal %s: %v", raw, err)
	}
}
