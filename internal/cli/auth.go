package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/aegis-gateway/aegis/internal/config"
	"github.com/aegis-gateway/aegis/internal/logging"
	"github.com/aegis-gateway/aegis/internal/models"
	"github.com/aegis-gateway/aegis/internal/store"
)

// readPassword is a test seam for term.ReadPassword, grounded on
// gophkeeper's internal/client/cli/input.go idiom.
var readPassword = term.ReadPassword

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Dashboard administrator account operations",
}

var authSetPasswordCmd = &cobra.Command{
	Use:   "set-password",
	Short: "Set the dashboard administrator password",
	RunE:  authSetPasswordCommand,
}

func init() {
	authCmd.AddCommand(authSetPasswordCmd)
	rootCmd.AddCommand(authCmd)
}

func authSetPasswordCommand(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	password, err := promptPassword()
	if err != nil {
		return err
	}

	hash, err := store.HashPassword(password)
	if err != nil {
		if errors.Is(err, store.ErrPasswordTooShort) {
			return fmt.Errorf("password must be at least %d characters", store.MinPasswordLength)
		}
		return err
	}

	if err := os.MkdirAll(cfg.Storage.DataDir, 0o700); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	ctx := context.Background()
	st, err := store.Open(ctx, filepath.Join(cfg.Storage.DataDir, "aegis.db"), logging.Nop())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	if err := st.SetAdminPassword(ctx, "admin", hash); err != nil {
		if errors.Is(err, store.ErrAdminNotFound) {
			return st.CreateAdmin(ctx, models.Admin{ID: uuid.NewString(), Username: "admin", PasswordHash: hash})
		}
		return err
	}

	fmt.Println("Password updated.")
	return nil
}

func promptPassword() (string, error) {
	fmt.Fprint(os.Stdout, "New password: ")
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stdout)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(pw), nil
}
