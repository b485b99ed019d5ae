package events

import (
	"sync"
	"testing"
)

func TestEmitWithoutSubscribers(t *testing.T) {
	b := New()
	// Must not panic or block.
	b.Emit("provider-updated", "copilot")
}

func TestFanOut(t *testing.T) {
	b := New()

	var got []string
	for i := 0; i < 3; i++ {
		b.Subscribe(func(event string, payload any) {
			got = append(got, event+":"+payload.(string))
		})
	}

	b.Emit("provider-error", "gemini")

	if len(got) != 3 {
		t.Fatalf("deliveries = %d, want 3", len(got))
	}
	for _, g := range got {
		if g != "provider-error:gemini" {
			t.Errorf("delivery = %q", g)
		}
	}
}

func TestConcurrentEmit(t *testing.T) {
	b := New()

	var mu sync.Mutex
	count := 0
	b.Subscribe(func(string, any) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Emit("provider-updated", nil)
		}()
	}
	wg.Wait()

	if count != 10 {
		t.Errorf("deliveries = %d, want 10", count)
	}
}
