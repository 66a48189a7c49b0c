// root.go viper root command code
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/robudan/acoustic-logger/cmd/run"
	"github.com/robudan/acoustic-logger/cmd/validateconfig"
)

// RootCommand creates and returns the root command for the acoustic
// logger CLI, following the teacher's cmd/root.go pattern (a bare root
// command plus subcommands, global flags bound through viper).
func RootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "logger",
		Short: "Acoustic field data logger CLI",
	}

	if err := setupFlags(rootCmd); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
	}

	rootCmd.AddCommand(
		run.Command(),
		validateconfig.Command(),
		versionCommand(),
	)

	return rootCmd
}

func setupFlags(rootCmd *cobra.Command) error {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug-level logging")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}
