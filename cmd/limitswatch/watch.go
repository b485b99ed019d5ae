package main

import (
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/limitswatch/limitswatch/internal/events"
	"github.com/limitswatch/limitswatch/internal/history"
	"github.com/limitswatch/limitswatch/internal/notify"
	"github.com/limitswatch/limitswatch/internal/providers/gemini"
	"github.com/limitswatch/limitswatch/internal/scheduler"
)

const historyRetention = 30 * 24 * time.Hour

func newWatchCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Poll enabled providers in the background until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			interval, ok := scheduler.ParseInterval(a.cfg.RefreshInterval)
			if !ok {
				return fmt.Errorf("invalid refresh_interval %q in config", a.cfg.RefreshInterval)
			}

			store, err := history.Open(a.configDir)
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Prune(historyRetention); err != nil {
				log.Printf("[watch] pruning history: %v", err)
			}

			var notifier *notify.Notifier
			if a.cfg.Notifications {
				notifier = notify.New(notify.NewDesktopSink("LimitsWatch"))
			}

			bus := events.New()
			bus.Subscribe(func(event string, payload any) {
				log.Printf("[watch] %s: %v", event, payload)
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// Pick up external `gemini` logins while we run.
			if handle, ok := a.registry.Get("gemini"); ok {
				if watcher, ok := handle.Unwrap().(*gemini.Provider); ok {
					go func() {
						if err := watcher.WatchCredentials(ctx); err != nil && ctx.Err() == nil {
							log.Printf("[watch] gemini credentials: %v", err)
						}
					}()
				}
			}

			s := scheduler.New(a.registry, a.cache, store, notifier, bus, interval)

			fmt.Fprintf(cmd.OutOrStdout(), "Watching %d provider(s) every %s. Ctrl-C to stop.\n",
				len(a.registry.Enabled()), a.cfg.RefreshInterval)

			// One sweep up front so the first data appears immediately.
			s.RefreshAll(ctx)
			s.Run(ctx)

			if err := a.cache.Save(); err != nil {
				return fmt.Errorf("saving cache on exit: %w", err)
			}
			return nil
		},
	}
}
