package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/parleylabs/parley/pkg/api"
	"github.com/parleylabs/parley/pkg/config"
	"github.com/parleylabs/parley/pkg/identity"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check backend liveness and session validity",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings := config.Get()
		client := api.NewClientWithTimeout(settings.Server.URL, settings.Server.Token, settings.Server.Timeout)

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		fmt.Printf("Server:       %s\n", settings.Server.URL)

		if err := client.Probe(ctx); err != nil {
			fmt.Printf("Backend:      unreachable (%v)\n", err)
		} else {
			fmt.Println("Backend:      up")
		}

		switch err := client.ValidateSession(ctx); {
		case err == nil:
			fmt.Println("Session:      valid")
		case errors.Is(err, api.ErrSessionExpired):
			fmt.Println("Session:      expired")
		default:
			fmt.Printf("Session:      unknown (%v)\n", err)
		}

		ids, err := identity.NewStore(config.BuildSettingsPath(settings.Conversation.File))
		if err != nil {
			return fmt.Errorf("failed to open conversation store: %w", err)
		}
		if id := ids.Get(); id != "" {
			fmt.Printf("Conversation: %s\n", id)
		} else {
			fmt.Println("Conversation: none")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
