package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/storyorder/internal/ports/secondary"
	"github.com/example/storyorder/internal/wire"
)

// ReportCmd returns the report command
func ReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Show the most recent build report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := wire.OrderAdapterWithOutput(cmd.OutOrStdout()).Report(commandContext(cmd))
			if errors.Is(err, secondary.ErrNoBuildRuns) {
				fmt.Fprintln(cmd.OutOrStdout(), "No builds recorded yet.")
				fmt.Fprintln(cmd.OutOrStdout())
				fmt.Fprintln(cmd.OutOrStdout(), "Run a build first:")
				fmt.Fprintln(cmd.OutOrStdout(), "  storyorder build")
				return nil
			}
			return err
		},
	}
}
