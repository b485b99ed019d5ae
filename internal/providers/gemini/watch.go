package gemini

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// WatchCredentials reloads in-memory credentials whenever the CLI rewrites
// its credential file, so a `gemini` login or refresh in another terminal
// is picked up without restarting. Blocks until ctx is done.
func (p *Provider) WatchCredentials(ctx context.Context) error {
	if p.credPath == "" {
		return fmt.Errorf("no credential path to watch")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory, not the file: the CLI replaces the file via
	// rename, which would drop a direct file watch.
	if err := watcher.Add(filepath.Dir(p.credPath)); err != nil {
		return fmt.Errorf("watching credential dir: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != p.credPath {
				continue
			}
			if event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Rename) {
				if p.loadCredentials() {
					log.Printf("[gemini] credentials reloaded from %s", p.credPath)
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("[gemini] watcher error: %v", err)
		}
	}
}
