// Package gemini integrates Gemini quota via credentials delegated from
// the Gemini CLI: it reads the CLI's on-disk OAuth credentials, silently
// refreshes them when expired, and queries the Cloud Code private API for
// per-model quota buckets.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/limitswatch/limitswatch/internal/core"
)

const (
	defaultQuotaURL    = "https://cloudcode-pa.googleapis.com/v1internal:retrieveUserQuota"
	defaultAssistURL   = "https://cloudcode-pa.googleapis.com/v1internal:loadCodeAssist"
	defaultProjectsURL = "https://cloudresourcemanager.googleapis.com/v1/projects"
	defaultTokenURI    = "https://oauth2.googleapis.com/token"

	userAgent = "LimitsWatch/1.0"

	// The quota API reports remaining fractions; UsageData wants used/limit
	// integers. A fixed 10000 scale keeps two decimal places of precision.
	percentScale = 10000
)

// Credentials mirrors the Gemini CLI's oauth_creds.json.
type Credentials struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenURI     string `json:"token_uri,omitempty"`
	ClientID     string `json:"client_id,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"`
	ExpiryDate   int64  `json:"expiry_date,omitempty"` // epoch millis
	IDToken      string `json:"id_token,omitempty"`
}

func (c Credentials) expired(now time.Time) bool {
	return c.ExpiryDate > 0 && c.ExpiryDate < now.UnixMilli()
}

type tier string

const (
	tierFree     tier = "FREE"
	tierStandard tier = "STANDARD"
	tierLegacy   tier = "LEGACY"
)

type Provider struct {
	mu      sync.RWMutex
	creds   *Credentials
	project string
	tier    tier
	account *core.IdentityClaims

	client *http.Client

	credPath    string
	quotaURL    string
	assistURL   string
	projectsURL string

	// discoverClient locates the OAuth client id/secret embedded in the
	// companion CLI's installed files. Best-effort and fallible; swapped
	// out in tests.
	discoverClient func() (id, secret string, err error)
}

func New() *Provider {
	p := &Provider{
		client:         &http.Client{Timeout: 30 * time.Second},
		credPath:       defaultCredentialsPath(),
		quotaURL:       defaultQuotaURL,
		assistURL:      defaultAssistURL,
		projectsURL:    defaultProjectsURL,
		discoverClient: discoverOAuthClient,
	}
	p.loadCredentials()
	return p
}

func defaultCredentialsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".gemini", "oauth_creds.json")
}

// loadCredentials re-reads the CLI's credential file into memory.
// Malformed identity tokens degrade to an anonymous display.
func (p *Provider) loadCredentials() bool {
	if p.credPath == "" {
		return false
	}
	data, err := os.ReadFile(p.credPath)
	if err != nil {
		return false
	}
	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return false
	}
	if creds.TokenURI == "" {
		creds.TokenURI = defaultTokenURI
	}

	var account *core.IdentityClaims
	if creds.IDToken != "" {
		if claims, err := core.DecodeIdentityToken(creds.IDToken); err == nil {
			account = &claims
		}
	}

	p.mu.Lock()
	p.creds = &creds
	p.account = account
	p.mu.Unlock()
	return true
}

func (p *Provider) Descriptor() core.Descriptor {
	return core.Descriptor{
		ID:               "gemini",
		Name:             "Gemini",
		Website:          "https://gemini.google.com",
		AuthMethods:      []core.AuthMethod{core.AuthCLIDelegated},
		HasSessionLimits: true,
		Icon:             "gemini",
	}
}

func (p *Provider) IsAuthenticated() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.creds != nil
}

type quotaResponse struct {
	Buckets []quotaBucket `json:"buckets"`
}

type quotaBucket struct {
	ModelID           string  `json:"modelId"`
	RemainingFraction float64 `json:"remainingFraction"`
	ResetTime         string  `json:"resetTime,omitempty"`
	TokenType         string  `json:"tokenType,omitempty"`
}

func (p *Provider) FetchUsage(ctx context.Context) (core.UsageData, error) {
	token, err := p.ensureValidToken(ctx)
	if err != nil {
		return core.UsageData{}, err
	}

	project, err := p.ensureProject(ctx, token)
	if err != nil {
		return core.UsageData{}, err
	}

	quota, err := p.fetchQuota(ctx, token, project)
	if err != nil {
		return core.UsageData{}, err
	}

	buckets := make([]core.QuotaBucket, 0, len(quota.Buckets))
	for _, b := range quota.Buckets {
		qb := core.QuotaBucket{ModelID: b.ModelID, RemainingFraction: b.RemainingFraction}
		if b.ResetTime != "" {
			if t, err := time.Parse(time.RFC3339, b.ResetTime); err == nil {
				qb.ResetTime = &t
			}
		}
		buckets = append(buckets, qb)
	}

	quotas, overallPercent, overallReset := core.AggregateQuotas(buckets)

	return core.UsageData{
		SessionUsed:  uint64((100 - overallPercent) * 100),
		SessionLimit: percentScale,
		ResetTime:    overallReset,
		LastUpdated:  time.Now(),
		ModelQuotas:  quotas,
	}, nil
}

// ensureValidToken returns a usable access token, silently refreshing
// first when the stored expiry is in the past.
func (p *Provider) ensureValidToken(ctx context.Context) (string, error) {
	p.mu.RLock()
	creds := p.creds
	p.mu.RUnlock()
	if creds == nil {
		return "", core.ErrAuthRequired()
	}

	if creds.expired(time.Now()) {
		if err := p.refreshToken(ctx); err != nil {
			return "", err
		}
		p.mu.RLock()
		creds = p.creds
		p.mu.RUnlock()
	}
	return creds.AccessToken, nil
}

type tokenRefreshResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	IDToken     string `json:"id_token,omitempty"`
}

func (p *Provider) refreshToken(ctx context.Context) error {
	p.mu.RLock()
	creds := p.creds
	p.mu.RUnlock()
	if creds == nil {
		return core.ErrAuthRequired()
	}

	clientID, clientSecret := creds.ClientID, creds.ClientSecret
	if clientID == "" || clientSecret == "" {
		var err error
		clientID, clientSecret, err = p.discoverClient()
		if err != nil {
			return err
		}
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {creds.RefreshToken},
		"client_id":     {clientID},
		"client_secret": {clientSecret},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, creds.TokenURI, strings.NewReader(form.Encode()))
	if err != nil {
		return core.ErrNetwork(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return core.ErrNetwork(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return core.ErrAuthFailed("token refresh failed; run `gemini` to re-authenticate")
	}

	var tr tokenRefreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return core.ErrParse(err.Error())
	}
	if tr.AccessToken == "" {
		return core.ErrParse("empty access_token in refresh response")
	}

	updated := *creds
	updated.AccessToken = tr.AccessToken
	if tr.ExpiresIn > 0 {
		updated.ExpiryDate = time.Now().UnixMilli() + tr.ExpiresIn*1000
	} else {
		updated.ExpiryDate = 0
	}

	var account *core.IdentityClaims
	if tr.IDToken != "" {
		updated.IDToken = tr.IDToken
		if claims, err := core.DecodeIdentityToken(tr.IDToken); err == nil {
			account = &claims
		}
	}

	p.mu.Lock()
	p.creds = &updated
	if account != nil {
		p.account = account
	}
	p.mu.Unlock()

	if err := p.writeCredentials(updated); err != nil {
		return core.ErrProvider(fmt.Sprintf("persisting credentials: %v", err))
	}
	return nil
}

// writeCredentials rewrites the CLI credential file via temp-then-rename so
// a crash mid-write never corrupts the previous valid file.
func (p *Provider) writeCredentials(creds Credentials) error {
	if p.credPath == "" {
		return nil
	}
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling credentials: %w", err)
	}

	tmp := p.credPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing temp credentials: %w", err)
	}
	if err := os.Rename(tmp, p.credPath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming credentials: %w", err)
	}
	return nil
}

func (p *Provider) ensureProject(ctx context.Context, token string) (string, error) {
	p.mu.RLock()
	project := p.project
	p.mu.RUnlock()
	if project != "" {
		return project, nil
	}

	project, err := p.discoverProject(ctx, token)
	if err != nil {
		return "", err
	}

	p.mu.Lock()
	p.project = project
	p.mu.Unlock()
	return project, nil
}

type assistResponse struct {
	CurrentTier *struct {
		ID string `json:"id"`
	} `json:"currentTier,omitempty"`
	ManagedProjectID string `json:"managedProjectId,omitempty"`
}

type projectsResponse struct {
	Projects []struct {
		ProjectID string            `json:"projectId"`
		Labels    map[string]string `json:"labels,omitempty"`
	} `json:"projects"`
}

// discoverProject asks loadCodeAssist for the managed project, falling back
// to scanning the account's GCP projects for a generative-language one.
func (p *Provider) discoverProject(ctx context.Context, token string) (string, error) {
	if project, err := p.loadCodeAssist(ctx, token); err == nil {
		return project, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.projectsURL, nil)
	if err != nil {
		return "", core.ErrNetwork(err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", core.ErrNetwork(err)
	}
	defer resp.Body.Close()

	if statusErr := core.ErrFromStatus(resp); statusErr != nil {
		return "", statusErr
	}

	var projects projectsResponse
	if err := json.NewDecoder(resp.Body).Decode(&projects); err != nil {
		return "", core.ErrParse(err.Error())
	}

	for _, project := range projects.Projects {
		if strings.HasPrefix(project.ProjectID, "gen-lang-client") {
			return project.ProjectID, nil
		}
		if _, ok := project.Labels["generative-language"]; ok {
			return project.ProjectID, nil
		}
	}
	return "", core.ErrProvider("no Gemini project found")
}

func (p *Provider) loadCodeAssist(ctx context.Context, token string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.assistURL, strings.NewReader("{}"))
	if err != nil {
		return "", core.ErrNetwork(err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", core.ErrNetwork(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", core.ErrProvider(fmt.Sprintf("loadCodeAssist HTTP %d", resp.StatusCode))
	}

	var assist assistResponse
	if err := json.NewDecoder(resp.Body).Decode(&assist); err != nil {
		return "", core.ErrParse(err.Error())
	}

	if assist.CurrentTier != nil {
		p.mu.Lock()
		switch assist.CurrentTier.ID {
		case "STANDARD":
			p.tier = tierStandard
		case "LEGACY":
			p.tier = tierLegacy
		default:
			p.tier = tierFree
		}
		p.mu.Unlock()
	}

	if assist.ManagedProjectID == "" {
		return "", core.ErrProvider("no managed project id")
	}
	return assist.ManagedProjectID, nil
}

func (p *Provider) fetchQuota(ctx context.Context, token, project string) (*quotaResponse, error) {
	body, err := json.Marshal(map[string]string{"project": project})
	if err != nil {
		return nil, core.ErrParse(err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.quotaURL, bytes.NewReader(body))
	if err != nil {
		return nil, core.ErrNetwork(err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, core.ErrNetwork(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, core.ErrProvider("quota API not found; the installed Gemini CLI may be outdated")
	}
	if statusErr := core.ErrFromStatus(resp); statusErr != nil {
		return nil, statusErr
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, core.ErrNetwork(err)
	}
	var quota quotaResponse
	if err := json.Unmarshal(raw, &quota); err != nil {
		return nil, core.ErrParse(err.Error())
	}
	return &quota, nil
}

// StartAuth never touches the network: authentication is delegated to the
// companion CLI, so all we hand back is instructions.
func (p *Provider) StartAuth(context.Context) (*core.AuthFlow, error) {
	return &core.AuthFlow{
		URL: "https://ai.google.dev/gemini-api/docs/downloads",
		Instructions: "Gemini authenticates through the Gemini CLI.\n" +
			"1. Install the Gemini CLI\n" +
			"2. Run `gemini` and sign in\n" +
			"3. Re-check credentials here",
	}, nil
}

// CompleteAuth re-reads the CLI's credential file; it succeeds only when
// the external CLI has produced credentials since StartAuth.
func (p *Provider) CompleteAuth(context.Context, core.AuthResponse) error {
	if !p.loadCredentials() {
		return core.ErrAuthFailed("Gemini CLI not authenticated; run `gemini` in a terminal")
	}
	return nil
}

// Logout forgets delegated state. The CLI owns the on-disk credential
// file, so only in-memory state is cleared. Idempotent.
func (p *Provider) Logout() error {
	p.mu.Lock()
	p.creds = nil
	p.project = ""
	p.tier = ""
	p.account = nil
	p.mu.Unlock()
	return nil
}

func (p *Provider) AuthStatus() core.AuthStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.creds == nil {
		return core.NotAuthenticated()
	}

	user := "via Gemini CLI"
	if p.account != nil && p.account.Email != "" {
		user = fmt.Sprintf("%s (%s)", p.account.Email, p.planDisplay())
	}

	var expires *time.Time
	if p.creds.ExpiryDate > 0 {
		t := time.UnixMilli(p.creds.ExpiryDate)
		expires = &t
	}
	return core.Authenticated(user, expires)
}

// planDisplay maps tier + hosted domain onto the user-facing plan label.
// Callers hold p.mu.
func (p *Provider) planDisplay() string {
	hostedDomain := p.account != nil && p.account.HostedDomain != ""
	switch {
	case p.tier == tierStandard:
		return "Paid"
	case p.tier == tierLegacy:
		return "Legacy"
	case p.tier == tierFree && hostedDomain:
		return "Workspace"
	case p.tier == tierFree:
		return "Free"
	default:
		return "Unknown"
	}
}
