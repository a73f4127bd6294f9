// Local stand-in for the upstream accounts service, for development and
// end-to-end testing. Scenario selection comes from the X-Test-Scenario
// header so a test can drive failure paths deterministically.
package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

const defaultPort = 18080

type claims struct {
	Username  string `json:"username"`
	Anonymous bool   `json:"anonymous"`
	jwt.RegisteredClaims
}

var jwtSecret []byte

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	secret := os.Getenv("JWT_OAUTH_SECRET")
	if secret == "" {
		secret = "stub-dev-secret"
	}
	jwtSecret = []byte(secret)

	port, err := strconv.Atoi(os.Getenv("STUB_PORT"))
	if err != nil {
		port = defaultPort
	}

	app := fiber.New(fiber.Config{DisableStartupMessage: true})

	app.Get("/accounts/bootstrap", bootstrapHandler)
	app.Get("/accounts/verify/:token", verifyHandler)
	app.Post("/accounts/logout", logoutHandler)

	log.Printf("Accounts stub listening on :%d", port)
	log.Fatal(app.Listen(fmt.Sprintf(":%d", port)))
}

func mintToken(username string, anonymous bool, expiresAt time.Time) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Username:  username,
		Anonymous: anonymous,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ID:        uuid.New().String(),
		},
	})

	signed, err := token.SignedString(jwtSecret)
	if err != nil {
		log.Printf("Failed to sign token: %v", err)
		return "stub-unsigned-token"
	}
	return signed
}

func tokenPayload(username string, anonymous bool) fiber.Map {
	expiresAt := time.Now().Add(24 * time.Hour)
	return fiber.Map{
		"username":     username,
		"anonymous":    anonymous,
		"access_token": mintToken(username, anonymous, expiresAt),
		"token_type":   "Bearer",
		"expires_at":   strconv.FormatInt(expiresAt.Unix(), 10),
		"scopes":       []string{"api", "execute-query", "store-query"},
	}
}

func setUpstreamCookie(c *fiber.Ctx, value string) {
	c.Cookie(&fiber.Cookie{
		Name:     cookieName(),
		Value:    value,
		Path:     "/",
		HTTPOnly: true,
	})
}

func cookieName() string {
	if name := os.Getenv("API_SESSION_COOKIE_NAME"); name != "" {
		return name
	}
	return "ads_session"
}

func bootstrapHandler(c *fiber.Ctx) error {
	scenario := c.Get("X-Test-Scenario")
	log.Printf("bootstrap scenario=%q", scenario)

	switch scenario {
	case "bootstrap-failure":
		return c.Status(fiber.StatusInternalServerError).SendString("Server Error")

	case "bootstrap-authenticated":
		setUpstreamCookie(c, "authenticated-session")
		return c.JSON(tokenPayload("test@example.com", false))

	case "bootstrap-rotated-cookie":
		current := c.Cookies(cookieName())
		rotated := "rotated-session"
		if current != "" {
			rotated = current + "-rotated"
		}
		setUpstreamCookie(c, rotated)
		return c.JSON(tokenPayload("anonymous@ads", true))

	case "bootstrap-unchanged-cookie":
		setUpstreamCookie(c, "unchanged-session")
		return c.JSON(tokenPayload("anonymous@ads", true))

	default:
		setUpstreamCookie(c, "default-session")
		return c.JSON(tokenPayload("anonymous@ads", true))
	}
}

func verifyHandler(c *fiber.Ctx) error {
	token := c.Params("token")
	scenario := c.Get("X-Test-Scenario")
	log.Printf("verify token=%q scenario=%q", token, scenario)

	switch {
	case scenario == "verify-invalid" || token == "invalid":
		return c.JSON(fiber.Map{"error": "unknown verification token"})
	case scenario == "verify-was-valid" || token == "already-validated":
		return c.JSON(fiber.Map{"error": "this token has already been validated"})
	default:
		setUpstreamCookie(c, "verified-session")
		return c.JSON(fiber.Map{"message": "success"})
	}
}

func logoutHandler(c *fiber.Ctx) error {
	scenario := c.Get("X-Test-Scenario")
	log.Printf("logout scenario=%q", scenario)

	if scenario == "logout-failure" {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "logout failed"})
	}

	setUpstreamCookie(c, "logged-out-session")
	return c.JSON(fiber.Map{"message": "success"})
}
