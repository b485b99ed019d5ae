// Package notify raises threshold warnings at most once per condition.
package notify

import (
	"fmt"
	"sync"

	"github.com/limitswatch/limitswatch/internal/core"
)

const (
	sessionWarnFraction = 0.80
	weeklyWarnFraction  = 0.90
)

// Warning is one user-facing alert.
type Warning struct {
	Title string
	Body  string
}

// CheckThresholds returns the warnings data currently trips. Unknown
// limits (zero) never warn.
func CheckThresholds(providerName string, data core.UsageData) []Warning {
	var warnings []Warning
	if data.SessionLimit > 0 && float64(data.SessionUsed)/float64(data.SessionLimit) >= sessionWarnFraction {
		warnings = append(warnings, Warning{
			Title: fmt.Sprintf("%s session limit", providerName),
			Body: fmt.Sprintf("%.0f%% of the session quota is used (%d/%d)",
				data.SessionPercent(), data.SessionUsed, data.SessionLimit),
		})
	}
	if data.WeeklyLimit > 0 && float64(data.WeeklyUsed)/float64(data.WeeklyLimit) >= weeklyWarnFraction {
		warnings = append(warnings, Warning{
			Title: fmt.Sprintf("%s weekly limit", providerName),
			Body: fmt.Sprintf("%.0f%% of the weekly quota is used (%d/%d)",
				data.WeeklyPercent(), data.WeeklyUsed, data.WeeklyLimit),
		})
	}
	return warnings
}

// Tracker remembers which warnings were already delivered so a condition
// that stays tripped across refreshes alerts only once.
type Tracker struct {
	mu   sync.Mutex
	sent map[string]struct{}
}

func NewTracker() *Tracker {
	return &Tracker{sent: make(map[string]struct{})}
}

func key(w Warning) string {
	return w.Title + ":" + w.Body
}

func (t *Tracker) WasSent(w Warning) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.sent[key(w)]
	return ok
}

func (t *Tracker) MarkSent(w Warning) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent[key(w)] = struct{}{}
}

// Reset forgets delivered warnings, typically after a quota reset.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = make(map[string]struct{})
}

// Notifier pushes deduplicated warnings to a sink.
type Notifier struct {
	tracker *Tracker
	sink    core.NotificationSink
}

func New(sink core.NotificationSink) *Notifier {
	return &Notifier{tracker: NewTracker(), sink: sink}
}

// Check evaluates data and delivers each newly tripped warning exactly
// once.
func (n *Notifier) Check(providerName string, data core.UsageData) {
	for _, w := range CheckThresholds(providerName, data) {
		if n.tracker.WasSent(w) {
			continue
		}
		n.tracker.MarkSent(w)
		n.sink.SendWarning(w.Title, w.Body)
	}
}

func (n *Notifier) Reset() {
	n.tracker.Reset()
}
