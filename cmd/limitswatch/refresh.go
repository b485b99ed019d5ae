package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/limitswatch/limitswatch/internal/scheduler"
)

func newRefreshCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh [provider]",
		Short: "Fetch fresh usage now",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := scheduler.New(a.registry, a.cache, nil, nil, nil, scheduler.IntervalManual)

			if len(args) == 1 {
				if _, err := s.RefreshOne(cmd.Context(), args[0]); err != nil {
					return fmt.Errorf("refreshing %s: %w", args[0], err)
				}
				printStatus(cmd.OutOrStdout(), a, args[0])
				return nil
			}

			enabled := a.registry.Enabled()
			if len(enabled) == 0 {
				return fmt.Errorf("no providers enabled (see `limitswatch enable`)")
			}
			s.RefreshAll(cmd.Context())
			for _, handle := range enabled {
				printStatus(cmd.OutOrStdout(), a, handle.ID())
			}
			return nil
		},
	}
}
