package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

func newTestAccountService(upstream *httptest.Server) *AccountService {
	return &AccountService{
		apiHost:    upstream.URL,
		cookieName: "ads_session",
		client:     upstream.Client(),
	}
}

func TestAccountBootstrap(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/accounts/bootstrap" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if cookie, err := r.Cookie("ads_session"); err != nil || cookie.Value != "incoming" {
			t.Errorf("upstream cookie not forwarded: %v", err)
		}
		http.SetCookie(w, &http.Cookie{Name: "ads_session", Value: "rotated"})
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok","username":"user@example.com","anonymous":false,"expires_at":"4102444800"}`))
	}))
	defer upstream.Close()

	svc := newTestAccountService(upstream)
	token, rotated, err := svc.Bootstrap(context.Background(), "incoming")
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if token.AccessToken != "tok" || token.Username != "user@example.com" || token.Anonymous {
		t.Errorf("unexpected token: %+v", token)
	}
	if !token.Valid() {
		t.Error("token with future expiry reported invalid")
	}
	if rotated != "rotated" {
		t.Errorf("rotated cookie = %q, want %q", rotated, "rotated")
	}
}

func TestAccountBootstrapUpstreamError(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer upstream.Close()

	svc := newTestAccountService(upstream)
	if _, _, err := svc.Bootstrap(context.Background(), ""); err == nil {
		t.Error("500 from upstream did not surface as an error")
	}
}

func TestAccountVerifyOutcomes(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		want    VerifyOutcome
		wantErr bool
	}{
		{"success", `{"message":"success"}`, VerifySuccess, false},
		{"invalid", `{"error":"unknown verification token"}`, VerifyInvalidToken, false},
		{"already", `{"error":"this token has already been validated"}`, VerifyAlreadyValid, false},
		{"other", `{"error":"boom"}`, VerifyError, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/accounts/verify/tok-123" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				if got := r.Header.Get("Authorization"); got != "Bearer:access" {
					t.Errorf("Authorization = %q", got)
				}
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(tc.body))
			}))
			defer upstream.Close()

			svc := newTestAccountService(upstream)
			outcome, _, err := svc.VerifyAccount(context.Background(), "tok-123", "access", "")
			if outcome != tc.want {
				t.Errorf("outcome = %v, want %v", outcome, tc.want)
			}
			if (err != nil) != tc.wantErr {
				t.Errorf("err = %v, wantErr = %v", err, tc.wantErr)
			}
		})
	}
}

func TestAccountLogout(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/accounts/logout" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		http.SetCookie(w, &http.Cookie{Name: "ads_session", Value: "fresh"})
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":"success"}`))
	}))
	defer upstream.Close()

	svc := newTestAccountService(upstream)
	rotated, err := svc.Logout(context.Background(), "access", "old")
	if err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if rotated != "fresh" {
		t.Errorf("rotated cookie = %q, want %q", rotated, "fresh")
	}
}

func TestAccountLogoutFailure(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"error":"no session"}`))
	}))
	defer upstream.Close()

	svc := newTestAccountService(upstream)
	if _, err := svc.Logout(context.Background(), "access", ""); err == nil {
		t.Error("failed upstream logout did not surface as an error")
	}
}

func TestParseExpiresAt(t *testing.T) {
	if got := parseExpiresAt(""); !got.IsZero() {
		t.Errorf("empty input should be zero time, got %v", got)
	}
	if got := parseExpiresAt("garbage"); !got.IsZero() {
		t.Errorf("unparseable input should be zero time, got %v", got)
	}

	want := time.Now().Add(365 * 24 * time.Hour).Truncate(time.Second)
	if got := parseExpiresAt(strconv.FormatInt(want.Unix(), 10)); !got.Equal(want) {
		t.Errorf("parseExpiresAt = %v, want %v", got, want)
	}

	// sentinel far-future values are clamped, not rejected
	clamped := parseExpiresAt("999999999999999999")
	if clamped.IsZero() || clamped.After(time.Now().Add(11*365*24*time.Hour)) {
		t.Errorf("far-future expiry not clamped: %v", clamped)
	}
}
