package providers

import (
	"context"
	"testing"
	"time"

	"github.com/limitswatch/limitswatch/internal/core"
)

// fakeProvider lets tests control fetch latency and results.
type fakeProvider struct {
	id         string
	fetchDelay time.Duration
	usage      core.UsageData
	fetchErr   error
}

func (f *fakeProvider) Descriptor() core.Descriptor {
	return core.Descriptor{ID: f.id, Name: f.id, AuthMethods: []core.AuthMethod{core.AuthLocal}}
}

func (f *fakeProvider) IsAuthenticated() bool { return true }

func (f *fakeProvider) FetchUsage(ctx context.Context) (core.UsageData, error) {
	if f.fetchDelay > 0 {
		select {
		case <-time.After(f.fetchDelay):
		case <-ctx.Done():
			return core.UsageData{}, ctx.Err()
		}
	}
	if f.fetchErr != nil {
		return core.UsageData{}, f.fetchErr
	}
	out := f.usage
	out.LastUpdated = time.Now()
	return out, nil
}

func (f *fakeProvider) StartAuth(context.Context) (*core.AuthFlow, error) {
	return nil, core.ErrNotConfigured("no auth flow")
}

func (f *fakeProvider) CompleteAuth(context.Context, core.AuthResponse) error {
	return core.ErrNotConfigured("no auth flow")
}

func (f *fakeProvider) Logout() error { return nil }

func (f *fakeProvider) AuthStatus() core.AuthStatus { return core.Authenticated("", nil) }

func TestRegistry_DefaultsDisabled(t *testing.T) {
	r := New(&fakeProvider{id: "alpha"}, &fakeProvider{id: "beta"})

	for _, id := range r.AllIDs() {
		if r.IsEnabled(id) {
			t.Errorf("%s should start disabled", id)
		}
	}
	if len(r.Enabled()) != 0 {
		t.Errorf("expected no enabled providers, got %d", len(r.Enabled()))
	}
}

func TestRegistry_EnableDisable(t *testing.T) {
	r := New(&fakeProvider{id: "alpha"}, &fakeProvider{id: "beta"})

	r.SetEnabled("beta", true)
	if !r.IsEnabled("beta") {
		t.Errorf("beta should be enabled")
	}

	enabled := r.Enabled()
	if len(enabled) != 1 || enabled[0].ID() != "beta" {
		t.Fatalf("enabled = %v, want [beta]", enabled)
	}

	r.SetEnabled("beta", false)
	if r.IsEnabled("beta") {
		t.Errorf("beta should be disabled again")
	}

	// Unknown ids are ignored, not registered.
	r.SetEnabled("ghost", true)
	if r.IsEnabled("ghost") {
		t.Errorf("unknown provider must not become enabled")
	}
}

func TestRegistry_AllIDsSorted(t *testing.T) {
	r := New(&fakeProvider{id: "zeta"}, &fakeProvider{id: "alpha"}, &fakeProvider{id: "mid"})

	ids := r.AllIDs()
	want := []string{"alpha", "mid", "zeta"}
	for i, id := range want {
		if ids[i] != id {
			t.Fatalf("ids = %v, want %v", ids, want)
		}
	}
}

// A slow fetch on provider A must not block a status query on provider B,
// nor a status query on A itself.
func TestRegistry_LockIndependence(t *testing.T) {
	slow := &fakeProvider{id: "slow", fetchDelay: 2 * time.Second}
	fast := &fakeProvider{id: "fast"}
	r := New(slow, fast)

	slowHandle, _ := r.Get("slow")
	fastHandle, _ := r.Get("fast")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fetchStarted := make(chan struct{})
	go func() {
		close(fetchStarted)
		_, _ = slowHandle.FetchUsage(ctx)
	}()
	<-fetchStarted
	time.Sleep(20 * time.Millisecond) // let the fetch take the handle lock

	done := make(chan struct{})
	go func() {
		_ = fastHandle.AuthStatus()
		_, _ = fastHandle.FetchUsage(ctx)
		_ = slowHandle.AuthStatus() // bypasses the handle lock
		_ = r.IsEnabled("slow")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("status/fetch on independent provider blocked behind slow fetch")
	}
}

func TestRegistry_HandleSerializesFetches(t *testing.T) {
	p := &fakeProvider{id: "one", fetchDelay: 50 * time.Millisecond}
	r := New(p)
	h, _ := r.Get("one")

	start := time.Now()
	done := make(chan struct{}, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, _ = h.FetchUsage(context.Background())
			done <- struct{}{}
		}()
	}
	<-done
	<-done

	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Errorf("two fetches on one handle finished in %v, expected serialized >= 100ms", elapsed)
	}
}
