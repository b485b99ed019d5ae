// Package copilot integrates GitHub Copilot usage via the GitHub device
// flow: the user authorizes on github.com with a short code while we poll
// the token endpoint.
package copilot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/limitswatch/limitswatch/internal/core"
)

const (
	defaultDeviceCodeURL = "https://github.com/login/device/code"
	defaultTokenURL      = "https://github.com/login/oauth/access_token"
	defaultUsageURL      = "https://api.github.com/copilot/usage"

	clientID = "Iv1.b507a08c87ecfe98"

	// On slow_down the authorization server wants the poll cadence backed
	// off by a fixed step, per RFC 8628 §3.5.
	slowDownStep = 5 * time.Second

	defaultPollInterval = 5 * time.Second

	userAgent = "LimitsWatch/1.0"
)

const tokenCredentialType = "access_token"

type Provider struct {
	mu                sync.RWMutex
	token             string
	pendingDeviceCode string
	pollInterval      time.Duration

	client *http.Client
	store  core.SecretStore

	deviceCodeURL string
	tokenURL      string
	usageURL      string

	// sleep is swapped out by tests to observe the poll cadence.
	sleep func(ctx context.Context, d time.Duration) error
}

func New(store core.SecretStore) *Provider {
	p := &Provider{
		client:        &http.Client{Timeout: 30 * time.Second},
		store:         store,
		pollInterval:  defaultPollInterval,
		deviceCodeURL: defaultDeviceCodeURL,
		tokenURL:      defaultTokenURL,
		usageURL:      defaultUsageURL,
		sleep:         sleepCtx,
	}

	if token, ok, err := store.Get(core.CredentialKey(p.Descriptor().ID, tokenCredentialType)); err == nil && ok {
		p.token = token
	}
	return p
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Provider) Descriptor() core.Descriptor {
	return core.Descriptor{
		ID:               "copilot",
		Name:             "GitHub Copilot",
		Website:          "https://github.com/features/copilot",
		AuthMethods:      []core.AuthMethod{core.AuthDeviceFlow},
		HasSessionLimits: true,
		HasWeeklyLimits:  true, // monthly upstream, close enough to the weekly slot
		Icon:             "copilot",
	}
}

func (p *Provider) IsAuthenticated() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.token != ""
}

type usageResponse struct {
	ChatCompletions      *uint64 `json:"chat_completions"`
	ChatCompletionsLimit *uint64 `json:"chat_completions_limit"`
	PremiumRequests      *uint64 `json:"premium_requests"`
	PremiumRequestsLimit *uint64 `json:"premium_requests_limit"`
	ResetsAt             string  `json:"resets_at"`
	CopilotPlan          string  `json:"copilot_plan"`
}

func (p *Provider) FetchUsage(ctx context.Context) (core.UsageData, error) {
	p.mu.RLock()
	token := p.token
	p.mu.RUnlock()
	if token == "" {
		return core.UsageData{}, core.ErrAuthRequired()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.usageURL, nil)
	if err != nil {
		return core.UsageData{}, core.ErrNetwork(err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	req.Header.Set("User-Agent", userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return core.UsageData{}, core.ErrNetwork(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		return core.UsageData{}, core.ErrAuthFailed("Copilot not enabled for this account")
	}
	if statusErr := core.ErrFromStatus(resp); statusErr != nil {
		return core.UsageData{}, statusErr
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return core.UsageData{}, core.ErrNetwork(err)
	}
	var usage usageResponse
	if err := json.Unmarshal(body, &usage); err != nil {
		return core.UsageData{}, core.ErrParse(err.Error())
	}

	var reset *time.Time
	if usage.ResetsAt != "" {
		if t, err := time.Parse(time.RFC3339, usage.ResetsAt); err == nil {
			reset = &t
		}
	}

	data := core.UsageData{
		ResetTime:       reset,
		WeeklyResetTime: reset,
		LastUpdated:     time.Now(),
	}
	if usage.ChatCompletions != nil {
		data.SessionUsed = *usage.ChatCompletions
	}
	if usage.ChatCompletionsLimit != nil {
		data.SessionLimit = *usage.ChatCompletionsLimit
	}
	if usage.PremiumRequests != nil {
		data.WeeklyUsed = *usage.PremiumRequests
	}
	if usage.PremiumRequestsLimit != nil {
		data.WeeklyLimit = *usage.PremiumRequestsLimit
	}
	return data, nil
}

type deviceCodeResponse struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURI string `json:"verification_uri"`
	ExpiresIn       int    `json:"expires_in"`
	Interval        int    `json:"interval"`
}

func (p *Provider) StartAuth(ctx context.Context) (*core.AuthFlow, error) {
	form := url.Values{
		"client_id": {clientID},
		"scope":     {"read:user"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.deviceCodeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, core.ErrNetwork(err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, core.ErrNetwork(err)
	}
	defer resp.Body.Close()

	var dc deviceCodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&dc); err != nil {
		return nil, core.ErrParse(err.Error())
	}
	if dc.DeviceCode == "" {
		return nil, core.ErrAuthFailed("device code endpoint returned no code")
	}

	interval := time.Duration(dc.Interval) * time.Second
	if interval <= 0 {
		interval = defaultPollInterval
	}

	p.mu.Lock()
	p.pendingDeviceCode = dc.DeviceCode
	p.pollInterval = interval
	p.mu.Unlock()

	return &core.AuthFlow{
		URL:          dc.VerificationURI,
		UserCode:     dc.UserCode,
		Instructions: "Visit the URL and enter the code to authorize with GitHub.",
		PollInterval: int(interval.Seconds()),
	}, nil
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// CompleteAuth polls the token endpoint on the interval negotiated by
// StartAuth. authorization_pending keeps polling, slow_down widens the
// interval, expired_token is terminal. The loop checks ctx between polls
// only, so a token exchange is never interrupted mid-flight.
func (p *Provider) CompleteAuth(ctx context.Context, _ core.AuthResponse) error {
	p.mu.Lock()
	deviceCode := p.pendingDeviceCode
	p.pendingDeviceCode = ""
	interval := p.pollInterval
	p.mu.Unlock()

	if deviceCode == "" {
		return core.ErrAuthFailed("no pending device authorization")
	}

	for {
		if err := p.sleep(ctx, interval); err != nil {
			return core.ErrAuthFailed(fmt.Sprintf("authorization canceled: %v", err))
		}

		tr, err := p.pollToken(ctx, deviceCode)
		if err != nil {
			return err
		}

		if tr.AccessToken != "" {
			// Persist first: only a durably stored token becomes live state.
			key := core.CredentialKey(p.Descriptor().ID, tokenCredentialType)
			if err := p.store.Set(key, tr.AccessToken); err != nil {
				return core.ErrProvider(fmt.Sprintf("storing token: %v", err))
			}
			p.mu.Lock()
			p.token = tr.AccessToken
			p.mu.Unlock()
			return nil
		}

		switch tr.Error {
		case "authorization_pending", "":
			continue
		case "slow_down":
			interval += slowDownStep
			p.mu.Lock()
			p.pollInterval = interval
			p.mu.Unlock()
			continue
		case "expired_token":
			return core.ErrAuthFailed("device code expired")
		default:
			reason := tr.ErrorDescription
			if reason == "" {
				reason = tr.Error
			}
			return core.ErrAuthFailed(reason)
		}
	}
}

func (p *Provider) pollToken(ctx context.Context, deviceCode string) (tokenResponse, error) {
	form := url.Values{
		"client_id":   {clientID},
		"device_code": {deviceCode},
		"grant_type":  {"urn:ietf:params:oauth:grant-type:device_code"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return tokenResponse{}, core.ErrNetwork(err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return tokenResponse{}, core.ErrNetwork(err)
	}
	defer resp.Body.Close()

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return tokenResponse{}, core.ErrParse(err.Error())
	}
	return tr, nil
}

func (p *Provider) Logout() error {
	p.mu.Lock()
	p.token = ""
	p.pendingDeviceCode = ""
	p.mu.Unlock()

	if err := p.store.Delete(core.CredentialKey(p.Descriptor().ID, tokenCredentialType)); err != nil {
		return core.ErrProvider(fmt.Sprintf("deleting token: %v", err))
	}
	return nil
}

func (p *Provider) AuthStatus() core.AuthStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()

	switch {
	case p.pendingDeviceCode != "":
		return core.Authenticating("Waiting for GitHub authorization...")
	case p.token != "":
		return core.Authenticated("", nil)
	default:
		return core.NotAuthenticated()
	}
}
