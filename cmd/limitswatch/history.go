package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/limitswatch/limitswatch/internal/history"
)

func newHistoryCommand(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history <provider>",
		Short: "Show recent usage samples",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, ok := a.registry.Get(args[0]); !ok {
				return fmt.Errorf("unknown provider %q", args[0])
			}

			store, err := history.Open(a.configDir)
			if err != nil {
				return err
			}
			defer store.Close()

			samples, err := store.Recent(args[0], limit)
			if err != nil {
				return err
			}
			if len(samples) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No samples recorded yet.")
				return nil
			}
			for _, sample := range samples {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  session %d/%d  weekly %d/%d\n",
					sample.RecordedAt.Local().Format(time.RFC822),
					sample.SessionUsed, sample.SessionLimit,
					sample.WeeklyUsed, sample.WeeklyLimit)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum samples to show")
	return cmd
}
