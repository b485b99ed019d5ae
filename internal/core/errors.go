package core

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// ErrorKind classifies a provider-layer failure.
type ErrorKind string

const (
	KindAuthRequired  ErrorKind = "auth_required"
	KindAuthFailed    ErrorKind = "auth_failed"
	KindTokenExpired  ErrorKind = "token_expired"
	KindRateLimited   ErrorKind = "rate_limited"
	KindNetwork       ErrorKind = "network"
	KindParse         ErrorKind = "parse"
	KindProvider      ErrorKind = "provider"
	KindNotConfigured ErrorKind = "not_configured"
)

// Error is the typed failure every fetch/auth operation returns. Callers
// classify with ErrKind or errors.As; nothing in the provider layer panics
// or aborts the process.
type Error struct {
	Kind       ErrorKind
	Detail     string
	RetryAfter time.Duration // set for KindRateLimited only
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindAuthRequired:
		return "authentication required"
	case KindAuthFailed:
		return fmt.Sprintf("authentication failed: %s", e.Detail)
	case KindTokenExpired:
		return "token expired"
	case KindRateLimited:
		return fmt.Sprintf("rate limited, retry after %d seconds", int(e.RetryAfter.Seconds()))
	case KindNetwork:
		return fmt.Sprintf("network error: %s", e.Detail)
	case KindParse:
		return fmt.Sprintf("parse error: %s", e.Detail)
	case KindNotConfigured:
		if e.Detail == "" {
			return "not configured"
		}
		return fmt.Sprintf("not configured: %s", e.Detail)
	default:
		return fmt.Sprintf("provider error: %s", e.Detail)
	}
}

func ErrAuthRequired() *Error { return &Error{Kind: KindAuthRequired} }

func ErrAuthFailed(reason string) *Error { return &Error{Kind: KindAuthFailed, Detail: reason} }

func ErrTokenExpired() *Error { return &Error{Kind: KindTokenExpired} }

func ErrRateLimited(retryAfter time.Duration) *Error {
	return &Error{Kind: KindRateLimited, RetryAfter: retryAfter}
}

func ErrNetwork(err error) *Error { return &Error{Kind: KindNetwork, Detail: err.Error()} }

func ErrParse(detail string) *Error { return &Error{Kind: KindParse, Detail: detail} }

func ErrProvider(detail string) *Error { return &Error{Kind: KindProvider, Detail: detail} }

func ErrNotConfigured(detail string) *Error {
	return &Error{Kind: KindNotConfigured, Detail: detail}
}

// ErrKind extracts the taxonomy kind from err, or KindProvider for errors
// that did not originate in the provider layer.
func ErrKind(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindProvider
}

const defaultRetryAfter = 60 * time.Second

// ErrFromStatus maps an upstream HTTP status to the taxonomy:
// 401 → token expired, 403 → auth failed, 429 → rate limited honoring the
// Retry-After header (60s when absent). Other statuses return nil.
func ErrFromStatus(resp *http.Response) *Error {
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return ErrTokenExpired()
	case http.StatusForbidden:
		return ErrAuthFailed(fmt.Sprintf("HTTP %d", resp.StatusCode))
	case http.StatusTooManyRequests:
		retry := defaultRetryAfter
		if v := resp.Header.Get("Retry-After"); v != "" {
			if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
				retry = time.Duration(secs) * time.Second
			}
		}
		return ErrRateLimited(retry)
	}
	return nil
}
