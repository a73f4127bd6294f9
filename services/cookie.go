package services

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	appContext "github.com/alphabatem/common/context"
	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/scix-archive/gateway_api/model"
)

// CookieCodec seals and unseals small JSON payloads with an AEAD so the
// session cookie cannot be read or forged by the client.
type CookieCodec struct {
	key []byte
}

func NewCookieCodec(key []byte) (*CookieCodec, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("cookie secret must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	return &CookieCodec{key: key}, nil
}

func (cc *CookieCodec) Seal(v interface{}) (string, error) {
	plaintext, err := sonic.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal session payload: %w", err)
	}

	aead, err := chacha20poly1305.NewX(cc.key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, plaintext, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (cc *CookieCodec) Unseal(sealed string, dest interface{}) error {
	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil {
		return fmt.Errorf("malformed session cookie: %w", err)
	}

	aead, err := chacha20poly1305.NewX(cc.key)
	if err != nil {
		return err
	}

	if len(raw) < aead.NonceSize() {
		return fmt.Errorf("session cookie too short")
	}

	nonce, ciphertext := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return fmt.Errorf("session cookie failed authentication: %w", err)
	}

	return sonic.Unmarshal(plaintext, dest)
}

// CookieSessionService is the sealed-cookie transport for session identity.
// Whichever store backs the session, the cookie is the vehicle the browser
// carries it in.
type CookieSessionService struct {
	appContext.DefaultService

	cookieName string
	codec      *CookieCodec
	secure     bool
	maxAge     time.Duration
}

const COOKIE_SESSION_SVC = "cookie_session_svc"

const defaultCookieMaxAge = 30 * 24 * time.Hour

func (svc CookieSessionService) Id() string {
	return COOKIE_SESSION_SVC
}

func (svc *CookieSessionService) Configure(ctx *appContext.Context) error {
	svc.cookieName = os.Getenv("SESSION_COOKIE_NAME")
	if svc.cookieName == "" {
		svc.cookieName = "scix_session"
	}

	secret := os.Getenv("SESSION_COOKIE_SECRET")
	if secret == "" {
		return fmt.Errorf("SESSION_COOKIE_SECRET is required")
	}
	key, err := hex.DecodeString(secret)
	if err != nil {
		return fmt.Errorf("SESSION_COOKIE_SECRET must be hex encoded: %w", err)
	}

	svc.codec, err = NewCookieCodec(key)
	if err != nil {
		return err
	}

	svc.secure = os.Getenv("APP_ENV") == "production"
	svc.maxAge = defaultCookieMaxAge

	return svc.DefaultService.Configure(ctx)
}

func (svc *CookieSessionService) Start() error {
	return nil
}

func (svc *CookieSessionService) CookieName() string {
	return svc.cookieName
}

// Load returns the session carried by the request cookie. Absent, tampered or
// otherwise undecodable cookies yield an empty anonymous session; a bad
// cookie must never fail the request.
func (svc *CookieSessionService) Load(c *fiber.Ctx) model.CookieSession {
	var session model.CookieSession

	sealed := c.Cookies(svc.cookieName)
	if sealed == "" {
		return session
	}

	if err := svc.codec.Unseal(sealed, &session); err != nil {
		return model.CookieSession{}
	}
	return session
}

func (svc *CookieSessionService) Save(c *fiber.Ctx, session model.CookieSession) error {
	sealed, err := svc.codec.Seal(session)
	if err != nil {
		return err
	}

	c.Cookie(&fiber.Cookie{
		Name:     svc.cookieName,
		Value:    sealed,
		Path:     "/",
		MaxAge:   int(svc.maxAge.Seconds()),
		HTTPOnly: true,
		Secure:   svc.secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return nil
}

func (svc *CookieSessionService) Clear(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     svc.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HTTPOnly: true,
		Secure:   svc.secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}
