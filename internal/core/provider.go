package core

import (
	"context"
	"fmt"
)

// Provider is the capability interface each integration implements.
//
// Descriptor and AuthStatus are pure in-memory reads and must not touch
// the network. IsAuthenticated may do a cheap local check (credential
// present) but no network call either. FetchUsage is the only
// network-heavy read; it translates transport failures and HTTP statuses
// into the *Error taxonomy and stamps LastUpdated on success.
type Provider interface {
	Descriptor() Descriptor

	IsAuthenticated() bool

	FetchUsage(ctx context.Context) (UsageData, error)

	// StartAuth begins an interactive or delegated handshake. A nil flow
	// with nil error means no user interaction is required.
	StartAuth(ctx context.Context) (*AuthFlow, error)

	// CompleteAuth finalizes the handshake started by StartAuth. Token
	// persistence is all-or-nothing: a failure leaves no half-written
	// credential state behind.
	CompleteAuth(ctx context.Context, resp AuthResponse) error

	// Logout clears in-memory credentials and removes any persisted
	// credential. Idempotent: a second call is not an error.
	Logout() error

	AuthStatus() AuthStatus
}

// SecretStore is the OS-level credential store collaborator. Implementations
// live outside the core; keys are opaque strings from CredentialKey.
type SecretStore interface {
	Set(key, value string) error
	// Get returns ok=false (not an error) when the key is absent.
	Get(key string) (value string, ok bool, err error)
	// Delete of an absent key is not an error.
	Delete(key string) error
}

// CredentialKey builds the conventional "{provider}_{credentialType}"
// secret-store key.
func CredentialKey(providerID, credentialType string) string {
	return fmt.Sprintf("%s_%s", providerID, credentialType)
}

// NotificationSink delivers user-facing alerts. Fire-and-forget: failures
// are the sink's problem, callers never block on delivery.
type NotificationSink interface {
	SendWarning(title, body string)
	SendError(title, body string)
	SendInfo(title, body string)
}

// EventEmitter publishes per-provider updates for an external UI layer.
// Best-effort, at-least-once when a listener is attached, no delivery
// guarantee otherwise.
type EventEmitter interface {
	Emit(event string, payload any)
}

const (
	EventProviderUpdated = "provider-updated"
	EventProviderError   = "provider-error"
)
