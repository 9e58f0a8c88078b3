package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zainal/disaster-siren/internal/config"
	"github.com/zainal/disaster-siren/internal/service/client"
	"github.com/zainal/disaster-siren/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// serverURL overrides the appliance base URL.
	serverURL string
	// insecure skips TLS certificate verification.
	insecure bool

	// rootCmd represents the base command for controlling the siren remotely.
	rootCmd = &cobra.Command{
		Use:   "siren-ctl",
		Short: "Control a running siren appliance over its HTTP API.",
		Long: `Sends control requests to a running siren-server.

The appliance URL is taken from --server, or derived from the configuration
file when the flag is omitted. Commands are acknowledged with a correlation
id; use 'siren-ctl status' to observe the resulting state.`,
	}
)

// Execute runs the siren-ctl CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// run performs one control action with graceful interrupt handling.
func run(action client.Action, modeID string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	return client.Run(ctx, &client.Options{
		ConfigPath: configPath,
		ServerURL:  serverURL,
		Action:     action,
		ModeID:     modeID,
		Insecure:   insecure,
	})
}

//nolint:gochecknoinits,funlen // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().
		StringVarP(&serverURL, "server", "s", "", "appliance base URL (e.g. https://siren:5000)")
	rootCmd.PersistentFlags().
		BoolVarP(&insecure, "insecure", "k", false, "skip TLS certificate verification")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "status",
			Short: "Print the current siren state and mode table.",
			Args:  cobra.NoArgs,
			RunE: func(_ *cobra.Command, _ []string) error {
				return run(client.ActionStatus, "")
			},
		},
		&cobra.Command{
			Use:   "toggle",
			Short: "Start the selected siren mode, or stop the active one.",
			Args:  cobra.NoArgs,
			RunE: func(_ *cobra.Command, _ []string) error {
				return run(client.ActionToggle, "")
			},
		},
		&cobra.Command{
			Use:   "cycle",
			Short: "Advance the selected mode to the next one.",
			Args:  cobra.NoArgs,
			RunE: func(_ *cobra.Command, _ []string) error {
				return run(client.ActionCycleMode, "")
			},
		},
		&cobra.Command{
			Use:   "mode <id>",
			Short: "Select a specific siren mode by id.",
			Args:  cobra.ExactArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				return run(client.ActionSelectMode, args[0])
			},
		},
		&cobra.Command{
			Use:   "stop-announcement",
			Short: "Cut a running announcement short.",
			Args:  cobra.NoArgs,
			RunE: func(_ *cobra.Command, _ []string) error {
				return run(client.ActionStopAnnouncement, "")
			},
		},
	)
}
