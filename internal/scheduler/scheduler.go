// Package scheduler drives periodic usage refreshes across all enabled
// providers.
package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/samber/lo"

	"github.com/limitswatch/limitswatch/internal/cache"
	"github.com/limitswatch/limitswatch/internal/core"
	"github.com/limitswatch/limitswatch/internal/history"
	"github.com/limitswatch/limitswatch/internal/notify"
	"github.com/limitswatch/limitswatch/internal/providers"
)

// Interval is a user-selectable refresh cadence. "manual" disables
// automatic refreshes entirely.
type Interval string

const (
	IntervalManual     Interval = "manual"
	IntervalOneMin     Interval = "1m"
	IntervalTwoMin     Interval = "2m"
	IntervalFiveMin    Interval = "5m"
	IntervalFifteenMin Interval = "15m"

	// How often the loop re-checks the interval setting while in manual
	// mode, so switching back to automatic takes effect promptly.
	manualPollPeriod = 10 * time.Second
)

var intervals = []Interval{IntervalManual, IntervalOneMin, IntervalTwoMin, IntervalFiveMin, IntervalFifteenMin}

// ParseInterval validates a stored or user-supplied interval string.
func ParseInterval(s string) (Interval, bool) {
	return Interval(s), lo.Contains(intervals, Interval(s))
}

// Duration returns the cadence and ok=false for manual mode.
func (i Interval) Duration() (time.Duration, bool) {
	switch i {
	case IntervalOneMin:
		return time.Minute, true
	case IntervalTwoMin:
		return 2 * time.Minute, true
	case IntervalFiveMin:
		return 5 * time.Minute, true
	case IntervalFifteenMin:
		return 15 * time.Minute, true
	default:
		return 0, false
	}
}

// Scheduler refreshes enabled providers on a cadence, feeding the cache,
// the history store, threshold notifications and the event bus.
type Scheduler struct {
	registry *providers.Registry
	cache    *cache.Manager
	history  *history.Store
	notifier *notify.Notifier
	emitter  core.EventEmitter

	intervalCh chan Interval
	interval   Interval
}

// New wires a scheduler. history and emitter may be nil; notifier may be
// nil to disable threshold alerts.
func New(registry *providers.Registry, cacheMgr *cache.Manager, hist *history.Store, notifier *notify.Notifier, emitter core.EventEmitter, interval Interval) *Scheduler {
	return &Scheduler{
		registry:   registry,
		cache:      cacheMgr,
		history:    hist,
		notifier:   notifier,
		emitter:    emitter,
		intervalCh: make(chan Interval, 1),
		interval:   interval,
	}
}

// SetInterval changes the cadence. Takes effect at the next loop wakeup;
// safe to call from any goroutine.
func (s *Scheduler) SetInterval(interval Interval) {
	// Keep only the newest pending change.
	select {
	case <-s.intervalCh:
	default:
	}
	s.intervalCh <- interval
}

// Run blocks until ctx is done. In manual mode it only watches for an
// interval change; otherwise it refreshes every interval.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		d, automatic := s.interval.Duration()
		wait := manualPollPeriod
		if automatic {
			wait = d
		}

		select {
		case <-ctx.Done():
			return
		case next := <-s.intervalCh:
			if next != s.interval {
				log.Printf("[scheduler] interval %s -> %s", s.interval, next)
				s.interval = next
			}
			continue
		case <-time.After(wait):
			if automatic {
				s.RefreshAll(ctx)
			}
		}
	}
}

// RefreshAll fetches usage for every enabled provider sequentially. A
// failing provider is logged and announced but never clobbers its cached
// snapshot, and never stops the sweep.
func (s *Scheduler) RefreshAll(ctx context.Context) {
	for _, handle := range s.registry.Enabled() {
		s.refresh(ctx, handle)
		if ctx.Err() != nil {
			return
		}
	}
	s.save()
}

// RefreshOne refreshes a single provider on demand, enabled or not.
func (s *Scheduler) RefreshOne(ctx context.Context, id string) (core.UsageData, error) {
	handle, ok := s.registry.Get(id)
	if !ok {
		return core.UsageData{}, core.ErrProvider("unknown provider " + id)
	}
	data, err := s.refresh(ctx, handle)
	s.save()
	return data, err
}

func (s *Scheduler) refresh(ctx context.Context, handle *providers.Handle) (core.UsageData, error) {
	id := handle.ID()

	data, err := handle.FetchUsage(ctx)
	if err != nil {
		// The previous snapshot stays; stale data beats a blank panel.
		log.Printf("[scheduler] refresh %s: %v", id, err)
		if s.emitter != nil {
			s.emitter.Emit(core.EventProviderError, map[string]string{
				"provider": id,
				"error":    err.Error(),
			})
		}
		return core.UsageData{}, err
	}

	s.cache.Set(id, data)
	if s.history != nil {
		if err := s.history.Record(id, data); err != nil {
			log.Printf("[scheduler] history %s: %v", id, err)
		}
	}
	if s.notifier != nil {
		s.notifier.Check(handle.Descriptor().Name, data)
	}
	if s.emitter != nil {
		s.emitter.Emit(core.EventProviderUpdated, map[string]any{
			"provider": id,
			"usage":    data,
		})
	}
	return data, nil
}

func (s *Scheduler) save() {
	if err := s.cache.Save(); err != nil {
		log.Printf("[scheduler] saving cache: %v", err)
	}
}
