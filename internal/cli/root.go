// Package cli implements aegisctl, the operator-facing command line:
// starting the daemon in the foreground, checking and toggling
// protection state against a running Decision API, printing the CA
// install hint, and setting the dashboard admin password directly
// against the State Store. Grounded on AI-Agentic-Shield's
// internal/cli package shape (a package-level rootCmd, one file per
// subcommand, each appending itself to rootCmd from init).
package cli

import (
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "aegisctl",
	Short: "Aegis — on-device AI safety gateway control",
	Long: `aegisctl operates an Aegis gateway: run it in the foreground, check or
toggle protection, print the CA trust instructions, and set the
dashboard administrator password.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "configs/aegis.json", "Path to config file")
}

// Execute runs aegisctl's root command.
func Execute() error {
	return rootCmd.Execute()
}
