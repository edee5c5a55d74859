package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aegis-gateway/aegis/internal/api/handlers"
	"github.com/aegis-gateway/aegis/internal/config"
)

var (
	pauseMinutes    int
	pauseIndefinite bool
)

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause content filtering for a duration, or indefinitely",
	RunE:  pauseCommand,
}

func init() {
	pauseCmd.Flags().IntVar(&pauseMinutes, "minutes", 0, "Pause duration in minutes")
	pauseCmd.Flags().BoolVar(&pauseIndefinite, "indefinite", false, "Pause until explicitly resumed")
	rootCmd.AddCommand(pauseCmd)
}

func pauseCommand(cmd *cobra.Command, args []string) error {
	if pauseMinutes <= 0 && !pauseIndefinite {
		return fmt.Errorf("either --minutes or --indefinite is required")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	resp, err := apiPost(cfg, "/protection/pause", handlers.PauseRequest{
		DurationMinutes: pauseMinutes,
		Indefinite:      pauseIndefinite,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return fmt.Errorf("aegisd returned %s", resp.Status)
	}
	fmt.Println("Protection paused.")
	return nil
}
