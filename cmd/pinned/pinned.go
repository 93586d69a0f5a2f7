// Package pinned implements the pinned command.
package pinned

import (
	"fmt"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/tphakala/birdnet-display/internal/conf"
	"github.com/tphakala/birdnet-display/internal/logger"
	"github.com/tphakala/birdnet-display/internal/pinned"
)

// Command creates the pinned command and its subcommands.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pinned",
		Short: "Inspect and dismiss pinned species",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List species that are still pinned",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				pins := newStore(settings).ListActive()
				out := cmd.OutOrStdout()
				if len(pins) == 0 {
					_, err := fmt.Fprintln(out, "No pinned species")
					return err
				}
				for _, p := range pins {
					if _, err := fmt.Fprintf(out, "%s\tuntil %s\t%dh left\n",
						p.Name, p.PinnedUntil.Format(time.DateTime), p.HoursRemaining); err != nil {
						return err
					}
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "dismiss <species>",
			Short: "Dismiss a pinned species",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if !newStore(settings).Dismiss(args[0]) {
					return fmt.Errorf("%s not found in pinned list", args[0])
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s dismissed\n", args[0])
				return err
			},
		},
		&cobra.Command{
			Use:   "dismiss-all",
			Short: "Dismiss every pinned species",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				newStore(settings).DismissAll()
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "All pinned species dismissed")
				return err
			},
		},
	)

	return cmd
}

func newStore(settings *conf.Settings) *pinned.Store {
	return pinned.NewStore(pinned.Config{
		Fs:       afero.NewOsFs(),
		Path:     settings.Display.PinnedFile,
		Duration: settings.Display.PinDuration,
		Logger:   logger.Global().Module("pinned"),
	})
}
