package notify

import (
	"log"

	"github.com/gen2brain/beeep"
)

// DesktopSink shows alerts as native desktop notifications. Delivery
// failures are logged and swallowed.
type DesktopSink struct{}

func NewDesktopSink(appName string) *DesktopSink {
	beeep.AppName = appName
	return &DesktopSink{}
}

func (d *DesktopSink) SendWarning(title, body string) {
	d.send("⚠️ "+title, body)
}

func (d *DesktopSink) SendError(title, body string) {
	d.send("❌ "+title, body)
}

func (d *DesktopSink) SendInfo(title, body string) {
	d.send(title, body)
}

func (d *DesktopSink) send(title, body string) {
	if err := beeep.Notify(title, body, ""); err != nil {
		log.Printf("[notify] desktop notification %q: %v", title, err)
	}
}
