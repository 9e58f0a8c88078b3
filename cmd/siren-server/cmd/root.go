package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zainal/disaster-siren/internal/config"
	"github.com/zainal/disaster-siren/internal/service/server"
	"github.com/zainal/disaster-siren/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string

	// rootCmd represents the base command for running the siren server.
	rootCmd = &cobra.Command{
		Use:   "siren-server [listen-address]",
		Short: "Run the siren appliance: buttons, playback and the HTTP API.",
		Long: `Starts the siren coordinator together with its HTTP control API.

The server drives the external audio player, debounces physical button input
and serves remote control requests on the configured listen address.
Listen address can be provided as argument to override config (e.g., :8443).
The siren always boots silent; only the Custom mode's asset path persists
across restarts.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			// Use listen address argument if provided, otherwise rely on config.
			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			return server.Run(ctx, &server.Options{
				ConfigPath:    configPath,
				ListenAddress: listenAddress,
			})
		},
	}
)

// Execute runs the siren-server CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
}
