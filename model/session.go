package model

import "time"

// TokenData is the short-lived bearer credential issued by the upstream
// accounts service during bootstrap.
type TokenData struct {
	AccessToken string    `json:"access_token"`
	Username    string    `json:"username"`
	Anonymous   bool      `json:"anonymous"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Valid reports whether the token can still be presented upstream.
func (t TokenData) Valid() bool {
	return t.AccessToken != "" && time.Now().Before(t.ExpiresAt)
}

// AnonymousUsername is the placeholder identity the upstream accounts
// service assigns to bootstrap-only tokens.
const AnonymousUsername = "anonymous@ads"

// Authenticated reports whether the token belongs to a logged-in user as
// opposed to an anonymous bootstrap token.
func (t TokenData) Authenticated() bool {
	return t.Valid() && !t.Anonymous && t.Username != AnonymousUsername
}

// SessionRecord is the session document stored in Redis. Timestamps are
// epoch milliseconds to keep the wire format compact.
type SessionRecord struct {
	SessionID       string    `json:"session_id"`
	UserID          string    `json:"user_id,omitempty"`
	Token           TokenData `json:"token"`
	IsAuthenticated bool      `json:"is_authenticated"`
	APICookieHash   string    `json:"api_cookie_hash,omitempty"`
	Bot             bool      `json:"bot,omitempty"`
	CreatedAt       int64     `json:"created_at"`
	LastActivity    int64     `json:"last_activity"`
	UserAgent       string    `json:"user_agent,omitempty"`
	IP              string    `json:"ip,omitempty"`
}

// CookieSession is the sealed payload carried in the encrypted session
// cookie. It is the transport for session identity regardless of which
// store backs the session.
type CookieSession struct {
	SessionID       string    `json:"session_id,omitempty"`
	Token           TokenData `json:"token"`
	IsAuthenticated bool      `json:"is_authenticated"`
	APICookieHash   string    `json:"api_cookie_hash,omitempty"`
}
