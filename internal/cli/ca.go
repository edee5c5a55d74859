package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/aegis-gateway/aegis/internal/ca"
	"github.com/aegis-gateway/aegis/internal/config"
	"github.com/aegis-gateway/aegis/internal/daemon"
)

var caCmd = &cobra.Command{
	Use:   "ca",
	Short: "Certificate authority operations",
}

var caInstallHintCmd = &cobra.Command{
	Use:   "install-hint",
	Short: "Generate the root CA if needed and print how to trust it",
	RunE:  caInstallHintCommand,
}

func init() {
	caCmd.AddCommand(caInstallHintCmd)
	rootCmd.AddCommand(caCmd)
}

func caInstallHintCommand(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if _, err := ca.LoadOrGenerate(cfg.Storage.DataDir); err != nil {
		return fmt.Errorf("load or generate CA: %w", err)
	}

	certPath := filepath.Join(cfg.Storage.DataDir, "root.crt")
	fmt.Printf("Root certificate: %s\n", certPath)
	fmt.Printf("To trust it: %s\n", daemon.InstallHint())
	return nil
}
