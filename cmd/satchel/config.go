package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/satchelworks/satchel/internal/config"
)

// --- config commands ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		fmt.Printf("\n  secrets (set with 'satchel config set-secret'): %s\n",
			strings.Join(config.SecretKeys(), ", "))
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value",
	Long: `Set a config value in the platform backend. Environment variables
(SATCHEL_*) override stored values at load time.

Examples:
  satchel config set server.port 4700
  satchel config set research.parallel 8
  satchel config set ncbi.email research@example.org`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetKey(args[0], args[1]); err != nil {
			return err
		}
		printSuccess("Set %s = %s", args[0], args[1])
		return nil
	},
}

var configSetSecretCmd = &cobra.Command{
	Use:   "set-secret <key> <value>",
	Short: "Store an API key in the platform secret store",
	Long: `Store a secret in the platform secret store (macOS Keychain, or a
secrets file under XDG_DATA_HOME elsewhere).

Examples:
  satchel config set-secret ncbi.api_key abc123
  satchel config set-secret openfda.api_key def456`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetSecret(args[0], args[1]); err != nil {
			return err
		}
		printSuccess("Stored %s in the secret store", args[0])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configSetSecretCmd)
}
