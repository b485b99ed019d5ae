package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/limitswatch/limitswatch/internal/core"
)

func newStatusCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status [provider]",
		Short: "Show cached usage and auth state",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := a.registry.AllIDs()
			if len(args) == 1 {
				if _, ok := a.registry.Get(args[0]); !ok {
					return fmt.Errorf("unknown provider %q", args[0])
				}
				ids = args[:1]
			}
			for _, id := range ids {
				printStatus(cmd.OutOrStdout(), a, id)
			}
			return nil
		},
	}
}

func printStatus(w io.Writer, a *app, id string) {
	handle, _ := a.registry.Get(id)
	desc := handle.Descriptor()

	fmt.Fprintf(w, "%s (%s)\n", desc.Name, desc.ID)

	status := handle.AuthStatus()
	switch status.State {
	case core.StateAuthenticated:
		line := "  auth: signed in"
		if status.User != "" {
			line += " as " + status.User
		}
		if status.Expires != nil {
			line += ", expires " + status.Expires.Local().Format(time.RFC822)
		}
		fmt.Fprintln(w, line)
	case core.StateAuthenticating:
		fmt.Fprintf(w, "  auth: in progress (%s)\n", status.Message)
	case core.StateError:
		fmt.Fprintf(w, "  auth: error: %s\n", status.Message)
	default:
		fmt.Fprintln(w, "  auth: not signed in")
	}

	data, ok := a.cache.Get(id)
	if !ok {
		fmt.Fprintln(w, "  usage: no data yet (run `limitswatch refresh`)")
		return
	}

	if data.SessionLimit > 0 {
		fmt.Fprintf(w, "  session: %d/%d (%.0f%%)%s\n",
			data.SessionUsed, data.SessionLimit, data.SessionPercent(),
			resetSuffix(data.ResetTime))
	}
	if data.WeeklyLimit > 0 {
		fmt.Fprintf(w, "  weekly:  %d/%d (%.0f%%)%s\n",
			data.WeeklyUsed, data.WeeklyLimit, data.WeeklyPercent(),
			resetSuffix(data.WeeklyResetTime))
	}
	if data.CreditsRemaining != nil {
		fmt.Fprintf(w, "  credits: %d remaining\n", *data.CreditsRemaining)
	}
	for _, q := range data.ModelQuotas {
		fmt.Fprintf(w, "  model %-24s %.0f%% left%s\n",
			q.ModelID, q.PercentLeft, resetSuffix(q.ResetTime))
	}
	fmt.Fprintf(w, "  updated: %s\n", data.LastUpdated.Local().Format(time.RFC822))
}

func resetSuffix(t *time.Time) string {
	if t == nil {
		return ""
	}
	return ", resets " + t.Local().Format(time.RFC822)
}
