package middleware

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func TestAppliesToPath(t *testing.T) {
	cases := []struct {
		path string
		want bool
	}{
		{"/", true},
		{"/abs/2020ApJ...900....1S", true},
		{"/user/account/login", true},
		{"/user/libraries", true},
		{"/api/user", true},
		{"/api/health", false},
		{"/api/sessions", false},
		{"/_next/static/chunk.js", false},
		{"/favicon.ico", false},
		{"/site.webmanifest", false},
		{"/images/logo.png", false},
		{"/styles/main.css", false},
	}

	for _, tc := range cases {
		if got := AppliesToPath(tc.path); got != tc.want {
			t.Errorf("AppliesToPath(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestIsStaticAsset(t *testing.T) {
	statics := []string{"/_next/image.png", "/static/app.js", "/logo.svg", "/fonts/a.woff2", "/mockServiceWorker.js"}
	for _, path := range statics {
		if !IsStaticAsset(path) {
			t.Errorf("IsStaticAsset(%q) = false, want true", path)
		}
	}

	pages := []string{"/", "/search", "/user/libraries", "/abs/2020ApJ...900....1S/abstract"}
	for _, path := range pages {
		if IsStaticAsset(path) {
			t.Errorf("IsStaticAsset(%q) = true, want false", path)
		}
	}
}

func TestClientIP(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(ClientIP(c))
	})

	cases := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"forwarded list", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, "203.0.113.7"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.4"}, "198.51.100.4"},
		{"forwarded wins", map[string]string{"X-Forwarded-For": "203.0.113.7", "X-Real-IP": "198.51.100.4"}, "203.0.113.7"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			body, _ := io.ReadAll(resp.Body)
			if string(body) != tc.want {
				t.Errorf("ClientIP = %q, want %q", body, tc.want)
			}
		})
	}
}
