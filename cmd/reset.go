package cmd

import (
	"fmt"

	"github.com/parleylabs/parley/pkg/config"
	"github.com/parleylabs/parley/pkg/identity"
	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget the saved conversation",
	Long: `Clears the durable conversation identity so the next message starts a
fresh conversation on the backend.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings := config.Get()
		ids, err := identity.NewStore(config.BuildSettingsPath(settings.Conversation.File))
		if err != nil {
			return fmt.Errorf("failed to open conversation store: %w", err)
		}
		prev := ids.Get()
		if err := ids.Reset(); err != nil {
			return fmt.Errorf("failed to clear conversation: %w", err)
		}
		if prev == "" {
			fmt.Println("No saved conversation.")
		} else {
			fmt.Printf("Cleared conversation %s.\n", prev)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resetCmd)
}
