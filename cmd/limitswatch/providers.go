package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newProvidersCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List known providers and their state",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			for _, id := range a.registry.AllIDs() {
				handle, _ := a.registry.Get(id)
				desc := handle.Descriptor()

				state := "disabled"
				if a.registry.IsEnabled(id) {
					state = "enabled"
				}
				auth := "not signed in"
				if handle.IsAuthenticated() {
					auth = "signed in"
				}

				methods := make([]string, len(desc.AuthMethods))
				for i, m := range desc.AuthMethods {
					methods[i] = string(m)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-12s %-9s %-14s auth: %s\n",
					desc.ID, state, auth, strings.Join(methods, ", "))
			}
		},
	}
}

func newEnableCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "enable <provider>",
		Short: "Include a provider in background refreshes",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return a.setEnabled(args[0], true)
		},
	}
}

func newDisableCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "disable <provider>",
		Short: "Exclude a provider from background refreshes",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return a.setEnabled(args[0], false)
		},
	}
}

func (a *app) setEnabled(id string, enabled bool) error {
	if _, ok := a.registry.Get(id); !ok {
		return fmt.Errorf("unknown provider %q (see `limitswatch providers`)", id)
	}
	a.registry.SetEnabled(id, enabled)
	return a.saveConfig()
}
