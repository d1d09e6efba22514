package commands

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"projectdesk/console/internal/app"
	"projectdesk/console/internal/config"
)

// NewRootCmd creates the console command. Without a subcommand it serves.
func NewRootCmd() *cobra.Command {
	var configFile string

	serve := func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := app.New(ctx, cfg)
		if err != nil {
			return fmt.Errorf("create app: %w", err)
		}
		if err := a.Run(ctx); err != nil {
			return fmt.Errorf("run app: %w", err)
		}
		return nil
	}

	rootCmd := &cobra.Command{
		Use:          "console",
		Short:        "Projectdesk web console",
		SilenceUsage: true,
		RunE:         serve,
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (yaml, json or toml)")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Serve the console over HTTP",
			RunE:  serve,
		},
		NewWaitPostgresCommand(),
	)
	return rootCmd
}
