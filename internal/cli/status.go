package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aegis-gateway/aegis/internal/config"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current protection state",
	RunE:  statusCommand,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func statusCommand(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	resp, err := apiGet(cfg, "/protection/status")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var status struct {
		State      string  `json:"state"`
		PauseUntil *string `json:"pause_until,omitempty"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	fmt.Printf("Protection: %s\n", status.State)
	if status.PauseUntil != nil {
		fmt.Printf("Paused until: %s\n", *status.PauseUntil)
	}
	return nil
}
