// Package providers owns the provider registry and the concrete
// integrations living in its subpackages.
package providers

import (
	"context"
	"sort"
	"sync"

	"github.com/samber/lo"

	"github.com/limitswatch/limitswatch/internal/core"
)

// Handle wraps one provider instance behind its own exclusive lock.
// Handles are shared: the registry hands out the same *Handle to every
// caller, so a long-running fetch on one provider serializes with other
// credential-mutating calls on that provider but never blocks the
// registry or any other provider.
//
// Descriptor, IsAuthenticated and AuthStatus bypass the handle lock:
// they are cheap in-memory reads and must stay responsive while a fetch
// on the same provider is in flight.
type Handle struct {
	mu       sync.Mutex
	provider core.Provider
}

func (h *Handle) ID() string { return h.provider.Descriptor().ID }

func (h *Handle) Descriptor() core.Descriptor { return h.provider.Descriptor() }

func (h *Handle) IsAuthenticated() bool { return h.provider.IsAuthenticated() }

func (h *Handle) AuthStatus() core.AuthStatus { return h.provider.AuthStatus() }

func (h *Handle) FetchUsage(ctx context.Context) (core.UsageData, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.provider.FetchUsage(ctx)
}

func (h *Handle) StartAuth(ctx context.Context) (*core.AuthFlow, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.provider.StartAuth(ctx)
}

func (h *Handle) CompleteAuth(ctx context.Context, resp core.AuthResponse) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.provider.CompleteAuth(ctx, resp)
}

// Unwrap exposes the underlying provider for integration-specific
// extras (credential file watching). Callers must not invoke the
// credential-mutating interface methods on it directly.
func (h *Handle) Unwrap() core.Provider { return h.provider }

func (h *Handle) Logout() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.provider.Logout()
}

// Registry owns all provider instances and their enabled flags. Membership
// is fixed at construction; only the enabled flags mutate at runtime, so
// the registry lock protects the flags map alone and is held briefly.
type Registry struct {
	handles map[string]*Handle
	order   []string

	mu      sync.RWMutex
	enabled map[string]bool
}

// New registers the given providers. Every provider starts disabled; a
// provider participates in background polling only after the user opts in
// with SetEnabled.
func New(provs ...core.Provider) *Registry {
	r := &Registry{
		handles: make(map[string]*Handle, len(provs)),
		enabled: make(map[string]bool, len(provs)),
	}
	for _, p := range provs {
		id := p.Descriptor().ID
		if _, dup := r.handles[id]; dup {
			continue
		}
		r.handles[id] = &Handle{provider: p}
		r.enabled[id] = false
		r.order = append(r.order, id)
	}
	sort.Strings(r.order)
	return r
}

// Get returns the shared handle for id. Callers lock the handle through
// its methods, not the registry.
func (r *Registry) Get(id string) (*Handle, bool) {
	h, ok := r.handles[id]
	return h, ok
}

func (r *Registry) IsEnabled(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.enabled[id]
}

// SetEnabled flips the opt-in flag for a registered provider. Unknown ids
// are ignored.
func (r *Registry) SetEnabled(id string, enabled bool) {
	if _, ok := r.handles[id]; !ok {
		return
	}
	r.mu.Lock()
	r.enabled[id] = enabled
	r.mu.Unlock()
}

// AllIDs returns every registered provider id in ascending order.
func (r *Registry) AllIDs() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Enabled returns the handles of all opted-in providers, in id order.
func (r *Registry) Enabled() []*Handle {
	r.mu.RLock()
	ids := lo.Filter(r.order, func(id string, _ int) bool { return r.enabled[id] })
	r.mu.RUnlock()

	return lo.Map(ids, func(id string, _ int) *Handle { return r.handles[id] })
}
