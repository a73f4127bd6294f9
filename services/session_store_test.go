package services

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/bytedance/sonic"

	"github.com/scix-archive/gateway_api/model"
)

// fakeBackend is an in-memory stand-in for RedisService.
type fakeBackend struct {
	values  map[string][]byte
	sets    map[string]map[string]bool
	failing bool
}

var errBackendDown = errors.New("backend unreachable")

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		values: make(map[string][]byte),
		sets:   make(map[string]map[string]bool),
	}
}

func (f *fakeBackend) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	if f.failing {
		return errBackendDown
	}
	data, err := sonic.Marshal(value)
	if err != nil {
		return err
	}
	f.values[key] = data
	return nil
}

func (f *fakeBackend) GetJSON(_ context.Context, key string, dest interface{}) (bool, error) {
	if f.failing {
		return false, errBackendDown
	}
	data, ok := f.values[key]
	if !ok {
		return false, nil
	}
	return true, sonic.Unmarshal(data, dest)
}

func (f *fakeBackend) Delete(_ context.Context, keys ...string) (int64, error) {
	if f.failing {
		return 0, errBackendDown
	}
	var deleted int64
	for _, key := range keys {
		if _, ok := f.values[key]; ok {
			delete(f.values, key)
			deleted++
		}
	}
	return deleted, nil
}

func (f *fakeBackend) Exists(_ context.Context, key string) (bool, error) {
	if f.failing {
		return false, errBackendDown
	}
	_, ok := f.values[key]
	return ok, nil
}

func (f *fakeBackend) Expire(_ context.Context, _ string, _ time.Duration) error {
	if f.failing {
		return errBackendDown
	}
	return nil
}

func (f *fakeBackend) SAdd(_ context.Context, key string, members ...interface{}) error {
	if f.failing {
		return errBackendDown
	}
	set, ok := f.sets[key]
	if !ok {
		set = make(map[string]bool)
		f.sets[key] = set
	}
	for _, m := range members {
		set[m.(string)] = true
	}
	return nil
}

func (f *fakeBackend) SMembers(_ context.Context, key string) ([]string, error) {
	if f.failing {
		return nil, errBackendDown
	}
	members := make([]string, 0, len(f.sets[key]))
	for m := range f.sets[key] {
		members = append(members, m)
	}
	return members, nil
}

func (f *fakeBackend) SRem(_ context.Context, key string, members ...interface{}) error {
	if f.failing {
		return errBackendDown
	}
	for _, m := range members {
		delete(f.sets[key], m.(string))
	}
	return nil
}

func (f *fakeBackend) ScanKeys(_ context.Context, pattern string) ([]string, error) {
	if f.failing {
		return nil, errBackendDown
	}
	var keys []string
	switch pattern {
	case "session:*":
		for k := range f.values {
			keys = append(keys, k)
		}
	case "user_sessions:*":
		for k := range f.sets {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func newTestStore(backend sessionBackend) *SessionStoreService {
	return &SessionStoreService{backend: backend}
}

func authRecord(sessionID, userID string) *model.SessionRecord {
	return &model.SessionRecord{
		SessionID:       sessionID,
		UserID:          userID,
		IsAuthenticated: true,
		Token: model.TokenData{
			AccessToken: "t-" + sessionID,
			Username:    userID,
			ExpiresAt:   time.Now().Add(time.Hour),
		},
		CreatedAt: time.Now().UnixMilli(),
	}
}

func TestSessionStoreSetGet(t *testing.T) {
	store := newTestStore(newFakeBackend())
	ctx := context.Background()

	if err := store.Set(ctx, authRecord("sess-1", "user@example.com")); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := store.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil || got.SessionID != "sess-1" || got.UserID != "user@example.com" {
		t.Errorf("unexpected record: %+v", got)
	}
	if got.LastActivity == 0 {
		t.Error("Set did not stamp LastActivity")
	}
}

func TestSessionStoreGetMissing(t *testing.T) {
	store := newTestStore(newFakeBackend())

	got, err := store.Get(context.Background(), "absent")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for missing session, got %+v", got)
	}

	got, err = store.Get(context.Background(), "")
	if err != nil || got != nil {
		t.Errorf("empty id should be (nil, nil), got (%+v, %v)", got, err)
	}
}

func TestSessionStoreSetRejectsEmptyID(t *testing.T) {
	store := newTestStore(newFakeBackend())
	if err := store.Set(context.Background(), &model.SessionRecord{}); err == nil {
		t.Error("Set accepted a record without a session ID")
	}
}

func TestSessionStoreDestroy(t *testing.T) {
	store := newTestStore(newFakeBackend())
	ctx := context.Background()

	if err := store.Set(ctx, authRecord("sess-1", "user@example.com")); err != nil {
		t.Fatalf("Set: %v", err)
	}

	destroyed, err := store.Destroy(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if !destroyed {
		t.Error("Destroy returned false for an existing session")
	}

	if got, _ := store.Get(ctx, "sess-1"); got != nil {
		t.Error("session still readable after Destroy")
	}

	sessions, err := store.GetUserSessions(ctx, "user@example.com")
	if err != nil {
		t.Fatalf("GetUserSessions: %v", err)
	}
	if len(sessions) != 0 {
		t.Errorf("destroyed session still indexed: %+v", sessions)
	}

	destroyed, err = store.Destroy(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Destroy again: %v", err)
	}
	if destroyed {
		t.Error("second Destroy reported a record was present")
	}
}

func TestSessionStoreGetUserSessionsCleansOrphans(t *testing.T) {
	backend := newFakeBackend()
	store := newTestStore(backend)
	ctx := context.Background()

	if err := store.Set(ctx, authRecord("live", "user@example.com")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	// index points at a session whose record has expired
	if err := backend.SAdd(ctx, userSessionsKey("user@example.com"), "expired"); err != nil {
		t.Fatalf("SAdd: %v", err)
	}

	sessions, err := store.GetUserSessions(ctx, "user@example.com")
	if err != nil {
		t.Fatalf("GetUserSessions: %v", err)
	}
	if len(sessions) != 1 || sessions[0].SessionID != "live" {
		t.Errorf("expected only the live session, got %+v", sessions)
	}

	if backend.sets[userSessionsKey("user@example.com")]["expired"] {
		t.Error("orphaned index entry was not cleaned up")
	}
}

func TestSessionStoreDestroyAllExceptCurrent(t *testing.T) {
	store := newTestStore(newFakeBackend())
	ctx := context.Background()

	for _, id := range []string{"current", "other-1", "other-2", "other-3"} {
		if err := store.Set(ctx, authRecord(id, "user@example.com")); err != nil {
			t.Fatalf("Set(%s): %v", id, err)
		}
	}

	count, err := store.DestroyAllUserSessions(ctx, "user@example.com", "current")
	if err != nil {
		t.Fatalf("DestroyAllUserSessions: %v", err)
	}
	if count != 3 {
		t.Errorf("destroyed %d sessions, want 3", count)
	}

	if got, _ := store.Get(ctx, "current"); got == nil {
		t.Error("current session was destroyed")
	}
	for _, id := range []string{"other-1", "other-2", "other-3"} {
		if got, _ := store.Get(ctx, id); got != nil {
			t.Errorf("session %s survived revoke-all", id)
		}
	}
}

func TestSessionStoreStats(t *testing.T) {
	store := newTestStore(newFakeBackend())
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := store.Set(ctx, authRecord(id, "user@example.com")); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalSessions != 3 {
		t.Errorf("TotalSessions = %d, want 3", stats.TotalSessions)
	}
	if stats.TotalIndexes != 1 {
		t.Errorf("TotalIndexes = %d, want 1", stats.TotalIndexes)
	}
}

func TestSessionStoreFailsLoud(t *testing.T) {
	backend := newFakeBackend()
	backend.failing = true
	store := newTestStore(backend)
	ctx := context.Background()

	if _, err := store.Get(ctx, "sess-1"); err == nil {
		t.Error("Get swallowed a backend error")
	}
	if err := store.Set(ctx, authRecord("sess-1", "u")); err == nil {
		t.Error("Set swallowed a backend error")
	}
	if _, err := store.Destroy(ctx, "sess-1"); err == nil {
		t.Error("Destroy swallowed a backend error")
	}
	if _, err := store.GetUserSessions(ctx, "u"); err == nil {
		t.Error("GetUserSessions swallowed a backend error")
	}
}

func TestSessionStoreCleanupOrphanedIndexes(t *testing.T) {
	backend := newFakeBackend()
	store := newTestStore(backend)
	ctx := context.Background()

	if err := store.Set(ctx, authRecord("live", "user@example.com")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	_ = backend.SAdd(ctx, userSessionsKey("user@example.com"), "gone-1", "gone-2")

	cleaned, errs := store.CleanupOrphanedIndexes(ctx)
	if errs != 0 {
		t.Errorf("cleanup reported %d errors", errs)
	}
	if cleaned != 2 {
		t.Errorf("cleaned %d entries, want 2", cleaned)
	}
}

func TestGenerateSessionID(t *testing.T) {
	hexRe := regexp.MustCompile(`^[a-f0-9]{64}$`)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := GenerateSessionID()
		if !hexRe.MatchString(id) {
			t.Fatalf("session ID %q is not 64 hex chars", id)
		}
		if seen[id] {
			t.Fatalf("duplicate session ID generated: %s", id)
		}
		seen[id] = true
	}
}

func TestSessionTTLByKind(t *testing.T) {
	if got := sessionTTL(&model.SessionRecord{IsAuthenticated: true}); got != sessionTTLAuthenticated {
		t.Errorf("authenticated TTL = %v, want %v", got, sessionTTLAuthenticated)
	}
	if got := sessionTTL(&model.SessionRecord{}); got != sessionTTLAnonymous {
		t.Errorf("anonymous TTL = %v, want %v", got, sessionTTLAnonymous)
	}
	if got := sessionTTL(&model.SessionRecord{Bot: true, IsAuthenticated: true}); got != sessionTTLBot {
		t.Errorf("bot TTL = %v, want %v", got, sessionTTLBot)
	}
}
