package cli

import (
	"github.com/spf13/cobra"

	"github.com/example/storyorder/internal/ports/primary"
	"github.com/example/storyorder/internal/wire"
)

// EventsCmd returns the events command
func EventsCmd() *cobra.Command {
	var includeReplicate bool
	var limit int
	var chapters bool

	cmd := &cobra.Command{
		Use:   "events",
		Short: "List events with story files",
		Long: `List the events that have story files, newest first.

Examples:
  storyorder events                      # all events except reruns
  storyorder events --limit 10           # the ten most recent
  storyorder events --chapters           # main story chapters instead`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			adapter := wire.OrderAdapterWithOutput(cmd.OutOrStdout())
			ctx := commandContext(cmd)
			if chapters {
				_, err := adapter.Chapters(ctx)
				return err
			}
			_, err := adapter.Events(ctx, primary.ListEventsRequest{
				IncludeReplicate: includeReplicate,
				Limit:            limit,
			})
			return err
		},
	}

	cmd.Flags().BoolVar(&includeReplicate, "include-replicate", false, "Include rerun events")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show at most N events (0 = all)")
	cmd.Flags().BoolVar(&chapters, "chapters", false, "List main story chapters")

	return cmd
}
