package core

import "time"

// AuthMethod is one way a provider can authenticate, in order of preference.
type AuthMethod string

const (
	AuthDeviceFlow   AuthMethod = "device_flow"
	AuthOAuth2       AuthMethod = "oauth2"
	AuthAPIKey       AuthMethod = "api_key"
	AuthCookies      AuthMethod = "cookies"
	AuthLocal        AuthMethod = "local"
	AuthCLIDelegated AuthMethod = "cli"
)

// Descriptor is immutable provider metadata, created once per implementation.
type Descriptor struct {
	ID               string       `json:"id"` // stable, lowercase
	Name             string       `json:"name"`
	Website          string       `json:"website"`
	AuthMethods      []AuthMethod `json:"auth_methods"`
	HasSessionLimits bool         `json:"has_session_limits"`
	HasWeeklyLimits  bool         `json:"has_weekly_limits"`
	HasCredits       bool         `json:"has_credits"`
	Icon             string       `json:"icon"`
}

// ModelQuota is one aggregated per-model quota entry. Instances are produced
// by AggregateQuotas, never hand-built elsewhere.
type ModelQuota struct {
	ModelID     string     `json:"model_id"`
	PercentLeft float64    `json:"percent_left"` // 0..100
	ResetTime   *time.Time `json:"reset_time,omitempty"`
}

// UsageData is a provider's current quota state. A limit of 0 means
// "unknown/unsupported", not "fully consumed"; guard before dividing.
// Used may legitimately exceed Limit. Replaced wholesale on each successful
// fetch, never patched field by field.
type UsageData struct {
	SessionUsed      uint64       `json:"session_used"`
	SessionLimit     uint64       `json:"session_limit"`
	WeeklyUsed       uint64       `json:"weekly_used"`
	WeeklyLimit      uint64       `json:"weekly_limit"`
	CreditsRemaining *uint64      `json:"credits_remaining,omitempty"`
	ResetTime        *time.Time   `json:"reset_time,omitempty"`
	WeeklyResetTime  *time.Time   `json:"weekly_reset_time,omitempty"`
	LastUpdated      time.Time    `json:"last_updated"`
	Error            string       `json:"error,omitempty"`
	ModelQuotas      []ModelQuota `json:"model_quotas,omitempty"`
}

// SessionPercent returns session usage as 0..100+, or -1 when the limit
// is unknown.
func (u UsageData) SessionPercent() float64 {
	if u.SessionLimit == 0 {
		return -1
	}
	return float64(u.SessionUsed) / float64(u.SessionLimit) * 100
}

// WeeklyPercent returns weekly usage as 0..100+, or -1 when the limit
// is unknown.
func (u UsageData) WeeklyPercent() float64 {
	if u.WeeklyLimit == 0 {
		return -1
	}
	return float64(u.WeeklyUsed) / float64(u.WeeklyLimit) * 100
}

// AuthFlow tells the caller how to drive an interactive auth handshake.
// Produced by StartAuth, consumed once by CompleteAuth.
type AuthFlow struct {
	URL          string `json:"url"`
	UserCode     string `json:"user_code,omitempty"`
	Instructions string `json:"instructions"`
	PollInterval int    `json:"poll_interval,omitempty"` // seconds, device flow only
}

// AuthResponseKind tags the payload collected from the user.
type AuthResponseKind string

const (
	AuthResponseOAuthCode  AuthResponseKind = "oauth_code"
	AuthResponseDeviceFlow AuthResponseKind = "device_flow_complete"
	AuthResponseAPIKey     AuthResponseKind = "api_key"
	AuthResponseCookies    AuthResponseKind = "cookies"
)

// AuthResponse is the payload a UI collects and feeds back to CompleteAuth.
type AuthResponse struct {
	Kind  AuthResponseKind `json:"kind"`
	Value string           `json:"value,omitempty"`
}

func OAuthCode(code string) AuthResponse {
	return AuthResponse{Kind: AuthResponseOAuthCode, Value: code}
}

func DeviceFlowComplete() AuthResponse {
	return AuthResponse{Kind: AuthResponseDeviceFlow}
}

func APIKey(key string) AuthResponse {
	return AuthResponse{Kind: AuthResponseAPIKey, Value: key}
}

func Cookies(cookies string) AuthResponse {
	return AuthResponse{Kind: AuthResponseCookies, Value: cookies}
}

// AuthState is the coarse position in the auth state machine.
type AuthState string

const (
	StateNotAuthenticated AuthState = "not_authenticated"
	StateAuthenticating   AuthState = "authenticating"
	StateAuthenticated    AuthState = "authenticated"
	StateError            AuthState = "error"
)

// AuthStatus is derived from in-memory credential state on demand. It backs
// a synchronous status query and must never involve a network call.
type AuthStatus struct {
	State   AuthState  `json:"state"`
	Message string     `json:"message,omitempty"`
	User    string     `json:"user,omitempty"`
	Expires *time.Time `json:"expires,omitempty"`
}

func NotAuthenticated() AuthStatus {
	return AuthStatus{State: StateNotAuthenticated}
}

func Authenticating(message string) AuthStatus {
	return AuthStatus{State: StateAuthenticating, Message: message}
}

func Authenticated(user string, expires *time.Time) AuthStatus {
	return AuthStatus{State: StateAuthenticated, User: user, Expires: expires}
}

func AuthStatusError(message string) AuthStatus {
	return AuthStatus{State: StateError, Message: message}
}
