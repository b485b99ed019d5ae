package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/limitswatch/limitswatch/internal/core"
)

func newLoginCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "login <provider>",
		Short: "Authenticate a provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			handle, ok := a.registry.Get(args[0])
			if !ok {
				return fmt.Errorf("unknown provider %q", args[0])
			}
			out := cmd.OutOrStdout()

			flow, err := handle.StartAuth(cmd.Context())
			if err != nil {
				return fmt.Errorf("starting auth: %w", err)
			}
			if flow == nil {
				// No interaction needed; completion validates directly.
				return handle.CompleteAuth(cmd.Context(), core.AuthResponse{})
			}

			if flow.Instructions != "" {
				fmt.Fprintln(out, flow.Instructions)
			}
			if flow.URL != "" {
				fmt.Fprintf(out, "Open: %s\n", flow.URL)
			}
			if flow.UserCode != "" {
				fmt.Fprintf(out, "Enter code: %s\n", flow.UserCode)
			}

			response, err := collectResponse(cmd, handle.Descriptor(), flow)
			if err != nil {
				return err
			}

			fmt.Fprintln(out, "Waiting for authorization...")
			if err := handle.CompleteAuth(cmd.Context(), response); err != nil {
				return fmt.Errorf("completing auth: %w", err)
			}

			status := handle.AuthStatus()
			if status.User != "" {
				fmt.Fprintf(out, "Signed in as %s\n", status.User)
			} else {
				fmt.Fprintln(out, "Signed in.")
			}
			return nil
		},
	}
}

// collectResponse gathers whatever the provider's primary auth method
// needs from the terminal.
func collectResponse(cmd *cobra.Command, desc core.Descriptor, flow *core.AuthFlow) (core.AuthResponse, error) {
	if len(desc.AuthMethods) == 0 {
		return core.AuthResponse{}, nil
	}
	switch desc.AuthMethods[0] {
	case core.AuthDeviceFlow:
		// The provider polls; nothing to collect.
		return core.DeviceFlowComplete(), nil
	case core.AuthCLIDelegated, core.AuthLocal:
		fmt.Fprintln(cmd.OutOrStdout(), "Press enter once done.")
		readLine(cmd)
		return core.AuthResponse{}, nil
	case core.AuthAPIKey:
		fmt.Fprint(cmd.OutOrStdout(), "API key: ")
		return core.APIKey(readLine(cmd)), nil
	default:
		fmt.Fprint(cmd.OutOrStdout(), "Cookie value (empty to search browsers): ")
		return core.Cookies(readLine(cmd)), nil
	}
}

func readLine(cmd *cobra.Command) string {
	scanner := bufio.NewScanner(cmd.InOrStdin())
	if !scanner.Scan() {
		return ""
	}
	return strings.TrimSpace(scanner.Text())
}

func newLogoutCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout <provider>",
		Short: "Clear a provider's stored credentials",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			handle, ok := a.registry.Get(args[0])
			if !ok {
				return fmt.Errorf("unknown provider %q", args[0])
			}
			if err := handle.Logout(); err != nil {
				return fmt.Errorf("logging out: %w", err)
			}
			a.cache.Clear(args[0])
			if err := a.cache.Save(); err != nil {
				return fmt.Errorf("saving cache: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		},
	}
}
