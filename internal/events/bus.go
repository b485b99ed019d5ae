// Package events is a minimal in-process pub/sub bus for UI-facing
// state-change announcements.
package events

import "sync"

// Bus fans events out to subscribers. Delivery is synchronous and
// best-effort; emitting with no subscribers is fine.
type Bus struct {
	mu   sync.RWMutex
	subs []func(event string, payload any)
}

func New() *Bus {
	return &Bus{}
}

// Subscribe registers fn for every future event. Handlers run on the
// emitter's goroutine and should return quickly.
func (b *Bus) Subscribe(fn func(event string, payload any)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, fn)
}

func (b *Bus) Emit(event string, payload any) {
	b.mu.RLock()
	subs := b.subs
	b.mu.RUnlock()

	for _, fn := range subs {
		fn(event, payload)
	}
}
