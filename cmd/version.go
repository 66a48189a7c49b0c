package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/robudan/acoustic-logger/internal/buildinfo"
)

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			info := buildinfo.Default()
			fmt.Printf("version=%s build_date=%s system_id=%s\n", info.Version(), info.BuildDate(), info.SystemID())
			return nil
		},
	}
}
