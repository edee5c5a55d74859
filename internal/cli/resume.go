package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aegis-gateway/aegis/internal/config"
)

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume content filtering",
	RunE:  resumeCommand,
}

func init() {
	rootCmd.AddCommand(resumeCmd)
}

func resumeCommand(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	resp, err := apiPost(cfg, "/protection/resume", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return fmt.Errorf("aegisd returned %s", resp.Status)
	}
	fmt.Println("Protection resumed.")
	return nil
}
