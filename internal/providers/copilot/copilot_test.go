package copilot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/limitswatch/limitswatch/internal/core"
	"github.com/limitswatch/limitswatch/internal/secrets"
)

func newTestProvider(store core.SecretStore) *Provider {
	p := New(store)
	p.sleep = func(context.Context, time.Duration) error { return nil }
	return p
}

func TestStartAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if r.Form.Get("client_id") != clientID {
			t.Errorf("client_id = %q", r.Form.Get("client_id"))
		}
		json.NewEncoder(w).Encode(map[string]any{
			"device_code":      "dev-123",
			"user_code":        "ABCD-1234",
			"verification_uri": "https://github.com/login/device",
			"expires_in":       900,
			"interval":         5,
		})
	}))
	defer srv.Close()

	p := newTestProvider(secrets.NewMemory())
	p.deviceCodeURL = srv.URL

	flow, err := p.StartAuth(context.Background())
	if err != nil {
		t.Fatalf("StartAuth: %v", err)
	}
	if flow.UserCode != "ABCD-1234" {
		t.Errorf("user code = %q", flow.UserCode)
	}
	if flow.URL != "https://github.com/login/device" {
		t.Errorf("url = %q", flow.URL)
	}
	if flow.PollInterval != 5 {
		t.Errorf("poll interval = %d, want 5", flow.PollInterval)
	}

	if got := p.AuthStatus(); got.State != core.StateAuthenticating {
		t.Errorf("state after StartAuth = %v, want authenticating", got.State)
	}
}

func TestCompleteAuth_SlowDownBackoff(t *testing.T) {
	polls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		polls++
		if polls <= 3 {
			json.NewEncoder(w).Encode(map[string]string{"error": "slow_down"})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-xyz"})
	}))
	defer srv.Close()

	store := secrets.NewMemory()
	p := New(store)
	p.tokenURL = srv.URL
	p.pendingDeviceCode = "dev-123"
	p.pollInterval = 5 * time.Second

	var sleeps []time.Duration
	p.sleep = func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}

	if err := p.CompleteAuth(context.Background(), core.DeviceFlowComplete()); err != nil {
		t.Fatalf("CompleteAuth: %v", err)
	}

	// 5s base, +5s per slow_down: the fourth (successful) poll waits 20s.
	want := []time.Duration{5 * time.Second, 10 * time.Second, 15 * time.Second, 20 * time.Second}
	if len(sleeps) != len(want) {
		t.Fatalf("sleeps = %v, want %v", sleeps, want)
	}
	for i := range want {
		if sleeps[i] != want[i] {
			t.Errorf("sleep %d = %v, want %v", i, sleeps[i], want[i])
		}
	}

	if !p.IsAuthenticated() {
		t.Error("provider should be authenticated")
	}
	key := core.CredentialKey("copilot", "access_token")
	if v, ok, _ := store.Get(key); !ok || v != "tok-xyz" {
		t.Errorf("stored token = (%q, %v), want tok-xyz", v, ok)
	}
}

func TestCompleteAuth_PendingThenToken(t *testing.T) {
	polls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		polls++
		if polls < 3 {
			json.NewEncoder(w).Encode(map[string]string{"error": "authorization_pending"})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-abc"})
	}))
	defer srv.Close()

	p := newTestProvider(secrets.NewMemory())
	p.tokenURL = srv.URL
	p.pendingDeviceCode = "dev-1"

	if err := p.CompleteAuth(context.Background(), core.DeviceFlowComplete()); err != nil {
		t.Fatalf("CompleteAuth: %v", err)
	}
	if polls != 3 {
		t.Errorf("polls = %d, want 3", polls)
	}
}

func TestCompleteAuth_ExpiredToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"error": "expired_token"})
	}))
	defer srv.Close()

	p := newTestProvider(secrets.NewMemory())
	p.tokenURL = srv.URL
	p.pendingDeviceCode = "dev-1"

	err := p.CompleteAuth(context.Background(), core.DeviceFlowComplete())
	if core.ErrKind(err) != core.KindAuthFailed {
		t.Errorf("kind = %v, want auth_failed", core.ErrKind(err))
	}
	if p.IsAuthenticated() {
		t.Error("must not be authenticated after expiry")
	}
}

func TestCompleteAuth_NoPending(t *testing.T) {
	p := newTestProvider(secrets.NewMemory())
	err := p.CompleteAuth(context.Background(), core.DeviceFlowComplete())
	if core.ErrKind(err) != core.KindAuthFailed {
		t.Errorf("kind = %v, want auth_failed", core.ErrKind(err))
	}
}

func TestCompleteAuth_StoreFailureKeepsStateClean(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"access_token": "tok"})
	}))
	defer srv.Close()

	store := secrets.NewMemory()
	store.FailSet = errors.New("keychain locked")

	p := newTestProvider(store)
	p.tokenURL = srv.URL
	p.pendingDeviceCode = "dev-1"

	if err := p.CompleteAuth(context.Background(), core.DeviceFlowComplete()); err == nil {
		t.Fatal("expected persistence error")
	}
	if p.IsAuthenticated() {
		t.Error("token must not be live when persistence failed")
	}
}

func TestCompleteAuth_ContextCancel(t *testing.T) {
	p := New(secrets.NewMemory())
	p.pendingDeviceCode = "dev-1"
	p.pollInterval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.CompleteAuth(ctx, core.DeviceFlowComplete())
	if err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestFetchUsage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("authorization = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"chat_completions":       42,
			"chat_completions_limit": 50,
			"premium_requests":       120,
			"premium_requests_limit": 300,
			"resets_at":              "2026-09-01T00:00:00Z",
			"copilot_plan":           "pro",
		})
	}))
	defer srv.Close()

	p := newTestProvider(secrets.NewMemory())
	p.usageURL = srv.URL
	p.token = "tok-1"

	before := time.Now()
	data, err := p.FetchUsage(context.Background())
	if err != nil {
		t.Fatalf("FetchUsage: %v", err)
	}

	if data.SessionUsed != 42 || data.SessionLimit != 50 {
		t.Errorf("session = %d/%d", data.SessionUsed, data.SessionLimit)
	}
	if data.WeeklyUsed != 120 || data.WeeklyLimit != 300 {
		t.Errorf("weekly = %d/%d", data.WeeklyUsed, data.WeeklyLimit)
	}
	if data.ResetTime == nil || !data.ResetTime.Equal(time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("reset = %v", data.ResetTime)
	}
	if data.LastUpdated.Before(before) {
		t.Errorf("LastUpdated not stamped: %v", data.LastUpdated)
	}
	if data.Error != "" {
		t.Errorf("error should be clear, got %q", data.Error)
	}
}

func TestFetchUsage_StatusMapping(t *testing.T) {
	tests := []struct {
		status int
		header map[string]string
		kind   core.ErrorKind
	}{
		{http.StatusUnauthorized, nil, core.KindTokenExpired},
		{http.StatusForbidden, nil, core.KindAuthFailed},
		{http.StatusTooManyRequests, map[string]string{"Retry-After": "30"}, core.KindRateLimited},
	}

	for _, tc := range tests {
		t.Run(fmt.Sprint(tc.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				for k, v := range tc.header {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			p := newTestProvider(secrets.NewMemory())
			p.usageURL = srv.URL
			p.token = "tok"

			_, err := p.FetchUsage(context.Background())
			if core.ErrKind(err) != tc.kind {
				t.Errorf("kind = %v, want %v", core.ErrKind(err), tc.kind)
			}
			if tc.kind == core.KindRateLimited {
				var pe *core.Error
				if !errors.As(err, &pe) || pe.RetryAfter != 30*time.Second {
					t.Errorf("retry-after not honored: %v", err)
				}
			}
		})
	}
}

func TestFetchUsage_Unauthenticated(t *testing.T) {
	p := newTestProvider(secrets.NewMemory())
	_, err := p.FetchUsage(context.Background())
	if core.ErrKind(err) != core.KindAuthRequired {
		t.Errorf("kind = %v, want auth_required", core.ErrKind(err))
	}
}

func TestLogoutIdempotent(t *testing.T) {
	store := secrets.NewMemory()
	store.Set(core.CredentialKey("copilot", "access_token"), "tok")

	p := New(store) // loads token
	if !p.IsAuthenticated() {
		t.Fatal("expected saved token to load")
	}

	if err := p.Logout(); err != nil {
		t.Fatalf("first logout: %v", err)
	}
	if p.IsAuthenticated() {
		t.Error("still authenticated after logout")
	}
	if err := p.Logout(); err != nil {
		t.Fatalf("second logout: %v", err)
	}
	if _, ok, _ := store.Get(core.CredentialKey("copilot", "access_token")); ok {
		t.Error("token survived logout")
	}
}
