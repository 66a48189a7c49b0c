// Package validateconfig implements the "validate-config" subcommand: load
// config.yaml, the environment overlay, and parameters.json, run
// conf.Validate, and report the result without starting any pipeline
// component. Useful in CI and on first-boot provisioning.
package validateconfig

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/robudan/acoustic-logger/internal/conf"
)

// Command returns the "validate-config" subcommand.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-config",
		Short: "Validate configuration and parameters.json without starting the logger",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := conf.Load()
			if err != nil {
				return fmt.Errorf("configuration invalid: %w", err)
			}
			fmt.Printf("configuration valid: device=%s driver=%s weighting=%s audio_enabled=%t\n",
				settings.Device.SerialNumber,
				settings.LocalStore.Driver,
				settings.Acquisition.Weighting,
				settings.Audio.Enabled,
			)
			return nil
		},
	}
}
