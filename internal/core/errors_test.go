package core

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func responseWithStatus(t *testing.T, status int, headers map[string]string) *http.Response {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		for k, v := range headers {
			w.Header().Set(k, v)
		}
		w.WriteHeader(status)
	}))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	return resp
}

func TestErrFromStatus(t *testing.T) {
	tests := []struct {
		status  int
		headers map[string]string
		kind    ErrorKind
		retry   time.Duration
	}{
		{http.StatusUnauthorized, nil, KindTokenExpired, 0},
		{http.StatusForbidden, nil, KindAuthFailed, 0},
		{http.StatusTooManyRequests, nil, KindRateLimited, 60 * time.Second},
		{http.StatusTooManyRequests, map[string]string{"Retry-After": "17"}, KindRateLimited, 17 * time.Second},
		{http.StatusTooManyRequests, map[string]string{"Retry-After": "garbage"}, KindRateLimited, 60 * time.Second},
	}

	for _, tc := range tests {
		resp := responseWithStatus(t, tc.status, tc.headers)
		err := ErrFromStatus(resp)
		if err == nil {
			t.Errorf("status %d: expected error", tc.status)
			continue
		}
		if err.Kind != tc.kind {
			t.Errorf("status %d: kind = %v, want %v", tc.status, err.Kind, tc.kind)
		}
		if tc.kind == KindRateLimited && err.RetryAfter != tc.retry {
			t.Errorf("status %d: retry = %v, want %v", tc.status, err.RetryAfter, tc.retry)
		}
	}
}

func TestErrFromStatus_OKIsNil(t *testing.T) {
	resp := responseWithStatus(t, http.StatusOK, nil)
	if err := ErrFromStatus(resp); err != nil {
		t.Errorf("expected nil for 200, got %v", err)
	}
}

func TestErrKind_Wrapped(t *testing.T) {
	err := fmt.Errorf("fetching usage: %w", ErrTokenExpired())
	if ErrKind(err) != KindTokenExpired {
		t.Errorf("kind = %v, want token_expired", ErrKind(err))
	}
}

func TestErrKind_Foreign(t *testing.T) {
	if ErrKind(fmt.Errorf("plain")) != KindProvider {
		t.Errorf("foreign errors should classify as provider")
	}
}

func TestErrorMessages(t *testing.T) {
	if got := ErrRateLimited(30 * time.Second).Error(); got != "rate limited, retry after 30 seconds" {
		t.Errorf("unexpected message: %q", got)
	}
	if got := ErrAuthFailed("bad code").Error(); got != "authentication failed: bad code" {
		t.Errorf("unexpected message: %q", got)
	}
}
