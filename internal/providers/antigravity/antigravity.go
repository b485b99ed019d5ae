// Package antigravity registers the Antigravity editor as a tracked
// provider. Its quota API is local-only and not reachable from a separate
// process yet, so every network operation reports not-configured while the
// entry still shows up in listings.
package antigravity

import (
	"context"

	"github.com/limitswatch/limitswatch/internal/core"
)

type Provider struct{}

func New() *Provider {
	return &Provider{}
}

func (p *Provider) Descriptor() core.Descriptor {
	return core.Descriptor{
		ID:               "antigravity",
		Name:             "Antigravity",
		Website:          "https://antigravity.google",
		AuthMethods:      []core.AuthMethod{core.AuthLocal},
		HasSessionLimits: true,
		HasCredits:       true,
		Icon:             "antigravity",
	}
}

func (p *Provider) IsAuthenticated() bool {
	return false
}

func (p *Provider) FetchUsage(context.Context) (core.UsageData, error) {
	return core.UsageData{}, core.ErrNotConfigured("Antigravity exposes usage only inside the editor")
}

func (p *Provider) StartAuth(context.Context) (*core.AuthFlow, error) {
	return nil, core.ErrNotConfigured("Antigravity authenticates inside the editor")
}

func (p *Provider) CompleteAuth(context.Context, core.AuthResponse) error {
	return core.ErrNotConfigured("Antigravity authenticates inside the editor")
}

func (p *Provider) Logout() error {
	return nil
}

func (p *Provider) AuthStatus() core.AuthStatus {
	return core.NotAuthenticated()
}
