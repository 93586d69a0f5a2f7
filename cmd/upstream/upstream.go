// Package upstream implements the upstream command.
package upstream

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/tphakala/birdnet-display/internal/conf"
	"github.com/tphakala/birdnet-display/internal/logger"
)

// Command creates the upstream command and its subcommands. A running
// server picks up changes through its configuration watcher.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upstream",
		Short: "Show or change the BirdNET-Pi station",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the configured station base URL",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				rec := newStore(settings).Load()
				if !rec.Configured() {
					_, err := fmt.Fprintln(cmd.OutOrStdout(), "No base URL configured")
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s (config version %d)\n", rec.BaseURL, rec.ConfigVersion)
				return err
			},
		},
		&cobra.Command{
			Use:   "set <url>",
			Short: "Set the station base URL",
			Example: `  birdnet-display upstream set birdnetpi.local
  birdnet-display upstream set http://192.168.1.20:8080`,
			Args: cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				base, err := conf.NormalizeBaseURL(args[0])
				if err != nil {
					return err
				}
				rec, err := newStore(settings).SetBaseURL(base)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Base URL set to %s (config version %d)\n", rec.BaseURL, rec.ConfigVersion)
				return err
			},
		},
	)

	return cmd
}

func newStore(settings *conf.Settings) *conf.UpstreamStore {
	return conf.NewUpstreamStore(afero.NewOsFs(), settings.Display.StateFile, logger.Global().Module("conf"))
}
