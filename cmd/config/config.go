// Package config implements the config command.
package config

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/tphakala/birdnet-display/internal/conf"
)

// Command creates the config command and its subcommands.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "init [path]",
			Short: "Write the default configuration file",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				path := "config.yaml"
				if len(args) == 1 {
					path = args[0]
				}
				written, err := conf.WriteDefaultConfig(afero.NewOsFs(), path)
				if err != nil {
					return err
				}
				if !written {
					_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s already exists, left unchanged\n", path)
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Default configuration written to %s\n", path)
				return err
			},
		},
		&cobra.Command{
			Use:   "save <path>",
			Short: "Write the effective configuration, including flags and environment",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := conf.SaveYAMLConfig(afero.NewOsFs(), args[0], settings); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "Configuration saved to %s\n", args[0])
				return err
			},
		},
	)

	return cmd
}
