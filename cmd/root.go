package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/parleylabs/parley/pkg/api"
	"github.com/parleylabs/parley/pkg/config"
	"github.com/parleylabs/parley/pkg/console"
	"github.com/parleylabs/parley/pkg/controllers"
	"github.com/parleylabs/parley/pkg/identity"
	"github.com/parleylabs/parley/pkg/logger"
	"github.com/parleylabs/parley/pkg/stream"
	"github.com/parleylabs/parley/pkg/warmup"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "parley",
	Short: "Terminal client for a streaming agent backend",
	Long: `Parley keeps a long-lived event stream open to an agent backend and
rebuilds the conversation from it: partial answers, reasoning, tool use,
reconnects, and cold-start detection, all from the terminal.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd.Context())
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default .parley/settings.yaml)")
	rootCmd.PersistentFlags().String("server", "", "backend base URL")
	rootCmd.PersistentFlags().String("token", "", "session bearer token")
	viper.BindPFlag("server.url", rootCmd.PersistentFlags().Lookup("server"))
	viper.BindPFlag("server.token", rootCmd.PersistentFlags().Lookup("token"))
}

func initConfig() {
	if err := config.Init(cfgFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
}

func runChat(ctx context.Context) error {
	settings := config.Get()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := api.NewClientWithTimeout(settings.Server.URL, settings.Server.Token, settings.Server.Timeout)

	if err := client.ValidateSession(ctx); err != nil {
		if errors.Is(err, api.ErrSessionExpired) {
			return fmt.Errorf("session expired: sign in again and restart with a fresh token")
		}
		// An unreachable backend is the cold-start detector's problem, not
		// a reason to refuse to start.
		logger.Warn("Session check failed, continuing anyway", "error", err)
	}

	ids, err := identity.NewStore(config.BuildSettingsPath(settings.Conversation.File))
	if err != nil {
		return fmt.Errorf("failed to open conversation store: %w", err)
	}

	manager := stream.NewManager(
		stream.NewSSEDialer(settings.Server.URL, settings.Server.Token),
		ids.Get,
		stream.Options{
			ReconnectDelay: settings.Stream.ReconnectDelay,
			BackoffBase:    settings.Stream.BackoffBase,
			BackoffCap:     settings.Stream.BackoffCap,
		},
	)

	detector := warmup.NewDetector(client, warmup.Options{
		InitialTimeout: settings.Warmup.InitialTimeout,
		PollInterval:   settings.Warmup.PollInterval,
		MaxWait:        settings.Warmup.MaxWait,
	})

	controller := controllers.NewChatController(client, ids, manager)
	runner := console.NewRunner(controller, manager, detector, os.Stdin, os.Stdout)

	err = runner.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func Execute() {
	defer logger.Close()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
