package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/limitswatch/limitswatch/internal/core"
	"github.com/limitswatch/limitswatch/internal/secrets"
)

// credentialTypes lists every secret-store slot a provider may occupy.
var credentialTypes = []string{"access_token", "cookies", "api_key"}

type credentialBackup struct {
	Secrets map[string]string `json:"secrets"`
	Enabled map[string]bool   `json:"enabled_providers"`
}

func newExportCommand(a *app, store core.SecretStore) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "export <file>",
		Short: "Write credentials and settings to an encrypted backup file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backup := credentialBackup{
				Secrets: make(map[string]string),
				Enabled: make(map[string]bool),
			}
			for _, id := range a.registry.AllIDs() {
				backup.Enabled[id] = a.registry.IsEnabled(id)
				for _, credType := range credentialTypes {
					key := core.CredentialKey(id, credType)
					if value, ok, err := store.Get(key); err == nil && ok {
						backup.Secrets[key] = value
					}
				}
			}

			plaintext, err := json.Marshal(backup)
			if err != nil {
				return fmt.Errorf("marshaling backup: %w", err)
			}
			if err := secrets.EncryptToFile(args[0], plaintext, password); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d credential(s) to %s\n",
				len(backup.Secrets), args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "encryption password (machine-bound key when empty)")
	return cmd
}

func newImportCommand(a *app, store core.SecretStore) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Restore credentials and settings from an encrypted backup file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plaintext, err := secrets.DecryptFromFile(args[0], password)
			if err != nil {
				return err
			}
			var backup credentialBackup
			if err := json.Unmarshal(plaintext, &backup); err != nil {
				return fmt.Errorf("parsing backup: %w", err)
			}

			for key, value := range backup.Secrets {
				if err := store.Set(key, value); err != nil {
					return fmt.Errorf("restoring %s: %w", key, err)
				}
			}
			for id, enabled := range backup.Enabled {
				a.registry.SetEnabled(id, enabled)
			}
			if err := a.saveConfig(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restored %d credential(s); restart sessions with `limitswatch status`\n",
				len(backup.Secrets))
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "decryption password (machine-bound key when empty)")
	return cmd
}
