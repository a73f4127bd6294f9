package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	appContext "github.com/alphabatem/common/context"
	log "github.com/sirupsen/logrus"

	"github.com/scix-archive/gateway_api/dto"
	"github.com/scix-archive/gateway_api/model"
)

// sessionBackend is the slice of RedisService the store depends on.
type sessionBackend interface {
	Set(c context.Context, key string, value interface{}, expiration time.Duration) error
	GetJSON(c context.Context, key string, dest interface{}) (bool, error)
	Delete(c context.Context, keys ...string) (int64, error)
	SAdd(c context.Context, key string, members ...interface{}) error
	SRem(c context.Context, key string, members ...interface{}) error
	SMembers(c context.Context, key string) ([]string, error)
	Expire(c context.Context, key string, expiration time.Duration) error
	Exists(c context.Context, key string) (bool, error)
	ScanKeys(c context.Context, pattern string) ([]string, error)
}

// SessionStoreService keeps session records in Redis together with a
// per-user index set so "list my sessions" and "log out other devices" never
// need a full scan.
//
// Unlike rate limiting, session storage fails loud: a backend error on any
// primary operation propagates to the caller. Only index maintenance is
// best-effort.
type SessionStoreService struct {
	appContext.DefaultService

	backend sessionBackend
	flagSvc *FeatureFlagService

	closed chan struct{}
}

const SESSION_STORE_SVC = "session_store_svc"

const (
	sessionTTLAuthenticated = 30 * 24 * time.Hour
	sessionTTLAnonymous     = 24 * time.Hour
	sessionTTLBot           = 7 * 24 * time.Hour
)

func sessionKey(sessionID string) string {
	return "session:" + sessionID
}

func userSessionsKey(userID string) string {
	return "user_sessions:" + userID
}

func (svc SessionStoreService) Id() string {
	return SESSION_STORE_SVC
}

func (svc *SessionStoreService) Configure(ctx *appContext.Context) error {
	return svc.DefaultService.Configure(ctx)
}

func (svc *SessionStoreService) Start() error {
	svc.backend = svc.Service(REDIS_SVC).(*RedisService)
	svc.flagSvc = svc.Service(FEATURE_FLAG_SVC).(*FeatureFlagService)

	svc.closed = make(chan struct{}, 1)
	go svc.cleanupLoop()
	return nil
}

func (svc *SessionStoreService) Shutdown() {
	svc.closed <- struct{}{}
}

// cleanupLoop sweeps orphaned user index entries hourly. Redis expires the
// session records themselves.
func (svc *SessionStoreService) cleanupLoop() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c, cancel := context.WithTimeout(context.Background(), time.Minute)
			svc.CleanupOrphanedIndexes(c)
			cancel()

		case <-svc.closed:
			return
		}
	}
}

// GenerateSessionID returns a 64-char hex session identifier from a CSPRNG.
func GenerateSessionID() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the process is in serious trouble;
		// fall back to a time-based id so the request can still complete.
		log.WithError(err).Error("Failed to generate session ID from crypto/rand")
		return fmt.Sprintf("%x", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}

func sessionTTL(record *model.SessionRecord) time.Duration {
	if record.Bot {
		return sessionTTLBot
	}
	if record.IsAuthenticated {
		return sessionTTLAuthenticated
	}
	return sessionTTLAnonymous
}

// Get returns the session record, or nil when the session does not exist or
// has expired. Backend failures propagate.
func (svc *SessionStoreService) Get(c context.Context, sessionID string) (*model.SessionRecord, error) {
	if sessionID == "" {
		return nil, nil
	}

	var record model.SessionRecord
	found, err := svc.backend.GetJSON(c, sessionKey(sessionID), &record)
	if err != nil {
		return nil, fmt.Errorf("failed to get session %s: %w", sessionID, err)
	}
	if !found {
		return nil, nil
	}
	return &record, nil
}

// Set writes the record with a TTL matching its lifetime and maintains the
// user index for authenticated sessions.
func (svc *SessionStoreService) Set(c context.Context, record *model.SessionRecord) error {
	if record.SessionID == "" {
		return fmt.Errorf("cannot store session with empty session ID")
	}

	record.LastActivity = time.Now().UnixMilli()
	ttl := sessionTTL(record)

	if err := svc.backend.Set(c, sessionKey(record.SessionID), record, ttl); err != nil {
		return fmt.Errorf("failed to store session %s: %w", record.SessionID, err)
	}

	if record.UserID != "" && record.IsAuthenticated {
		svc.indexUserSession(c, record.SessionID, record.UserID, ttl)
	}

	if svc.flagSvc != nil && svc.flagSvc.VerboseSessionLogging() {
		log.WithFields(log.Fields{
			"session_id":       record.SessionID,
			"user_id":          record.UserID,
			"is_authenticated": record.IsAuthenticated,
			"ttl":              ttl,
		}).Info("Session saved")
	}
	return nil
}

// Touch refreshes the activity timestamp. No-op when activity tracking is
// disabled or the session no longer exists.
func (svc *SessionStoreService) Touch(c context.Context, sessionID string) error {
	if svc.flagSvc != nil && !svc.flagSvc.ActivityTrackingEnabled() {
		return nil
	}

	record, err := svc.Get(c, sessionID)
	if err != nil {
		return err
	}
	if record == nil {
		return nil
	}
	return svc.Set(c, record)
}

// Destroy removes the session and its index entry, reporting whether a
// record was actually present.
func (svc *SessionStoreService) Destroy(c context.Context, sessionID string) (bool, error) {
	if sessionID == "" {
		return false, nil
	}

	record, err := svc.Get(c, sessionID)
	if err != nil {
		return false, err
	}

	deleted, err := svc.backend.Delete(c, sessionKey(sessionID))
	if err != nil {
		return false, fmt.Errorf("failed to destroy session %s: %w", sessionID, err)
	}

	if record != nil && record.UserID != "" {
		svc.removeUserSessionIndex(c, sessionID, record.UserID)
	}

	return deleted > 0, nil
}

func (svc *SessionStoreService) indexUserSession(c context.Context, sessionID, userID string, ttl time.Duration) {
	key := userSessionsKey(userID)
	if err := svc.backend.SAdd(c, key, sessionID); err != nil {
		log.WithError(err).WithFields(log.Fields{"session_id": sessionID, "user_id": userID}).
			Error("Failed to index session for user")
		return
	}
	// Keep the index alive at least as long as its longest-lived member.
	if err := svc.backend.Expire(c, key, ttl); err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Failed to refresh user index TTL")
	}
}

func (svc *SessionStoreService) removeUserSessionIndex(c context.Context, sessionID, userID string) {
	if err := svc.backend.SRem(c, userSessionsKey(userID), sessionID); err != nil {
		log.WithError(err).WithFields(log.Fields{"session_id": sessionID, "user_id": userID}).
			Error("Failed to remove session from user index")
	}
}

// GetUserSessions resolves the user's index set to live records. Index
// entries pointing at expired sessions are dropped and cleaned up
// best-effort.
func (svc *SessionStoreService) GetUserSessions(c context.Context, userID string) ([]model.SessionRecord, error) {
	if userID == "" {
		return nil, nil
	}

	sessionIDs, err := svc.backend.SMembers(c, userSessionsKey(userID))
	if err != nil {
		return nil, fmt.Errorf("failed to read session index for %s: %w", userID, err)
	}

	sessions := make([]model.SessionRecord, 0, len(sessionIDs))
	for _, id := range sessionIDs {
		record, err := svc.Get(c, id)
		if err != nil {
			return nil, err
		}
		if record == nil {
			svc.removeUserSessionIndex(c, id, userID)
			continue
		}
		sessions = append(sessions, *record)
	}

	return sessions, nil
}

// DestroyAllUserSessions revokes every session in the user's index except
// exceptSessionID, returning how many were removed.
func (svc *SessionStoreService) DestroyAllUserSessions(c context.Context, userID, exceptSessionID string) (int, error) {
	sessions, err := svc.GetUserSessions(c, userID)
	if err != nil {
		return 0, err
	}

	destroyed := 0
	for _, session := range sessions {
		if session.SessionID == exceptSessionID {
			continue
		}
		ok, err := svc.Destroy(c, session.SessionID)
		if err != nil {
			return destroyed, err
		}
		if ok {
			destroyed++
		}
	}

	log.WithFields(log.Fields{
		"user_id":   userID,
		"destroyed": destroyed,
		"excluded":  exceptSessionID,
	}).Info("Destroyed user sessions")

	return destroyed, nil
}

// Stats returns coarse counts for the health endpoint.
func (svc *SessionStoreService) Stats(c context.Context) (*dto.SessionStats, error) {
	sessionKeys, err := svc.backend.ScanKeys(c, "session:*")
	if err != nil {
		return nil, err
	}
	indexKeys, err := svc.backend.ScanKeys(c, "user_sessions:*")
	if err != nil {
		return nil, err
	}

	return &dto.SessionStats{
		TotalSessions: len(sessionKeys),
		TotalIndexes:  len(indexKeys),
	}, nil
}

// CleanupOrphanedIndexes drops index entries whose session record has
// already expired. Redis expires the records themselves; this sweeps the
// indexes that pointed at them.
func (svc *SessionStoreService) CleanupOrphanedIndexes(c context.Context) (cleaned int, errs int) {
	indexKeys, err := svc.backend.ScanKeys(c, "user_sessions:*")
	if err != nil {
		log.WithError(err).Error("Session index cleanup failed to scan")
		return 0, 1
	}

	for _, indexKey := range indexKeys {
		members, err := svc.backend.SMembers(c, indexKey)
		if err != nil {
			errs++
			continue
		}
		for _, sessionID := range members {
			exists, err := svc.backend.Exists(c, sessionKey(sessionID))
			if err != nil {
				errs++
				continue
			}
			if !exists {
				if err := svc.backend.SRem(c, indexKey, sessionID); err != nil {
					errs++
					continue
				}
				cleaned++
			}
		}
	}

	log.WithFields(log.Fields{"cleaned": cleaned, "errors": errs}).Info("Session index cleanup complete")
	return cleaned, errs
}
