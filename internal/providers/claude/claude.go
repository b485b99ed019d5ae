// Package claude tracks Claude plan usage through the claude.ai web API,
// authenticated with a browser session cookie. The cookie is either pasted
// by the user or discovered in an installed browser's cookie store.
package claude

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/browserutils/kooky"
	_ "github.com/browserutils/kooky/browser/all"

	"github.com/limitswatch/limitswatch/internal/core"
)

const (
	defaultBaseURL = "https://claude.ai"

	userAgent          = "LimitsWatch/1.0"
	cookieName         = "sessionKey"
	cookieDomainSuffix = "claude.ai"

	cookieCredentialType = "cookies"

	// Utilization comes back as a percentage, so the limit is fixed.
	utilizationLimit = 100
)

type Provider struct {
	mu     sync.RWMutex
	cookie string
	orgID  string

	client  *http.Client
	store   core.SecretStore
	baseURL string

	// discoverCookie finds a claude.ai session cookie in installed
	// browsers. Swapped out in tests.
	discoverCookie func() (string, error)
}

func New(store core.SecretStore) *Provider {
	p := &Provider{
		client:         &http.Client{Timeout: 30 * time.Second},
		store:          store,
		baseURL:        defaultBaseURL,
		discoverCookie: discoverBrowserCookie,
	}
	if v, ok, err := store.Get(core.CredentialKey("claude", cookieCredentialType)); err == nil && ok {
		p.cookie = v
	}
	return p
}

// discoverBrowserCookie scans every supported browser's cookie store for a
// valid claude.ai session cookie.
func discoverBrowserCookie() (string, error) {
	cookies := kooky.ReadCookies(kooky.Valid,
		kooky.DomainHasSuffix(cookieDomainSuffix),
		kooky.Name(cookieName))
	if len(cookies) == 0 {
		return "", core.ErrAuthFailed("no claude.ai session cookie found in installed browsers")
	}
	return cookies[0].Value, nil
}

func (p *Provider) Descriptor() core.Descriptor {
	return core.Descriptor{
		ID:               "claude",
		Name:             "Claude",
		Website:          "https://claude.ai",
		AuthMethods:      []core.AuthMethod{core.AuthOAuth2, core.AuthCookies},
		HasSessionLimits: true,
		HasWeeklyLimits:  true,
		Icon:             "claude",
	}
}

func (p *Provider) IsAuthenticated() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cookie != ""
}

type usageWindow struct {
	Utilization float64 `json:"utilization"`
	ResetsAt    string  `json:"resets_at,omitempty"`
}

type usageResponse struct {
	FiveHour *usageWindow `json:"five_hour,omitempty"`
	SevenDay *usageWindow `json:"seven_day,omitempty"`
}

func (p *Provider) FetchUsage(ctx context.Context) (core.UsageData, error) {
	p.mu.RLock()
	cookie := p.cookie
	p.mu.RUnlock()
	if cookie == "" {
		return core.UsageData{}, core.ErrAuthRequired()
	}

	orgID, err := p.ensureOrg(ctx, cookie)
	if err != nil {
		return core.UsageData{}, err
	}

	url := fmt.Sprintf("%s/api/organizations/%s/usage", p.baseURL, orgID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return core.UsageData{}, core.ErrNetwork(err)
	}
	p.setHeaders(req, cookie)

	resp, err := p.client.Do(req)
	if err != nil {
		return core.UsageData{}, core.ErrNetwork(err)
	}
	defer resp.Body.Close()

	if statusErr := core.ErrFromStatus(resp); statusErr != nil {
		return core.UsageData{}, statusErr
	}

	var usage usageResponse
	if err := json.NewDecoder(resp.Body).Decode(&usage); err != nil {
		return core.UsageData{}, core.ErrParse(err.Error())
	}

	data := core.UsageData{LastUpdated: time.Now()}
	if usage.FiveHour != nil {
		data.SessionUsed = uint64(usage.FiveHour.Utilization)
		data.SessionLimit = utilizationLimit
		if t, err := time.Parse(time.RFC3339, usage.FiveHour.ResetsAt); err == nil {
			data.ResetTime = &t
		}
	}
	if usage.SevenDay != nil {
		data.WeeklyUsed = uint64(usage.SevenDay.Utilization)
		data.WeeklyLimit = utilizationLimit
		if t, err := time.Parse(time.RFC3339, usage.SevenDay.ResetsAt); err == nil {
			data.WeeklyResetTime = &t
		}
	}
	return data, nil
}

type organization struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
}

// ensureOrg resolves and caches the account's organization id.
func (p *Provider) ensureOrg(ctx context.Context, cookie string) (string, error) {
	p.mu.RLock()
	orgID := p.orgID
	p.mu.RUnlock()
	if orgID != "" {
		return orgID, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/organizations", nil)
	if err != nil {
		return "", core.ErrNetwork(err)
	}
	p.setHeaders(req, cookie)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", core.ErrNetwork(err)
	}
	defer resp.Body.Close()

	if statusErr := core.ErrFromStatus(resp); statusErr != nil {
		return "", statusErr
	}

	var orgs []organization
	if err := json.NewDecoder(resp.Body).Decode(&orgs); err != nil {
		return "", core.ErrParse(err.Error())
	}
	if len(orgs) == 0 {
		return "", core.ErrProvider("no organizations on this account")
	}

	p.mu.Lock()
	p.orgID = orgs[0].UUID
	p.mu.Unlock()
	return orgs[0].UUID, nil
}

func (p *Provider) setHeaders(req *http.Request, cookie string) {
	req.Header.Set("Cookie", cookieName+"="+cookie)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
}

// StartAuth is purely informational: there is no server-side flow to kick
// off, the user either pastes a cookie or lets browser discovery find one.
func (p *Provider) StartAuth(context.Context) (*core.AuthFlow, error) {
	return &core.AuthFlow{
		URL: "https://claude.ai",
		Instructions: "Sign in to claude.ai in your browser, then either:\n" +
			"- submit an empty value to search installed browsers for the session cookie, or\n" +
			"- paste the `sessionKey` cookie value from your browser's dev tools",
	}, nil
}

// CompleteAuth accepts a pasted cookie, or with an empty value falls back
// to browser cookie discovery. The cookie is persisted before it goes live.
func (p *Provider) CompleteAuth(_ context.Context, response core.AuthResponse) error {
	if response.Kind != core.AuthResponseCookies {
		return core.ErrAuthFailed(fmt.Sprintf("unexpected auth response %q", response.Kind))
	}

	cookie := strings.TrimSpace(response.Value)
	if cookie == "" {
		found, err := p.discoverCookie()
		if err != nil {
			return err
		}
		cookie = found
	}

	if err := p.store.Set(core.CredentialKey("claude", cookieCredentialType), cookie); err != nil {
		return core.ErrProvider(fmt.Sprintf("storing cookie: %v", err))
	}

	p.mu.Lock()
	p.cookie = cookie
	p.orgID = ""
	p.mu.Unlock()
	return nil
}

// Logout clears the in-memory cookie and the stored copy. Idempotent.
func (p *Provider) Logout() error {
	p.mu.Lock()
	p.cookie = ""
	p.orgID = ""
	p.mu.Unlock()

	if err := p.store.Delete(core.CredentialKey("claude", cookieCredentialType)); err != nil {
		return fmt.Errorf("deleting stored cookie: %w", err)
	}
	return nil
}

func (p *Provider) AuthStatus() core.AuthStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.cookie == "" {
		return core.NotAuthenticated()
	}
	return core.Authenticated("claude.ai session", nil)
}
