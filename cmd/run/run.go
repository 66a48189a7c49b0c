// Package run implements the "run" subcommand: start the full acoustic
// logger pipeline and block until a termination signal arrives.
// Grounded on the teacher's cmd/realtime, which plays the same
// "start the long-running pipeline and hand it a cobra RunE" role.
package run

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/robudan/acoustic-logger/internal/app"
)

// Command returns the "run" subcommand.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start acquisition, aggregation, audio capture, and remote sync",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.New()
			if err != nil {
				return err
			}
			return a.Run(ctx)
		},
	}
}
