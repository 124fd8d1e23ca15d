package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/storyorder/internal/ports/primary"
	"github.com/example/storyorder/internal/wire"
)

// BuildCmd returns the build command
func BuildCmd() *cobra.Command {
	var req primary.BuildRequest

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Resolve many events and chapters and record a report",
		Long: `Resolve the reading order of every selected event and chapter in
parallel. A failing id is reported without stopping the others; the command
exits non-zero when any id failed. The report is kept in the local database
(see 'storyorder report').

Examples:
  storyorder build                              # every event
  storyorder build --limit 5 --include-main     # five newest events plus main story
  storyorder build --event act9d0 --event act15mini
  storyorder build --main-only --main-chapters 5,6`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(req.Chapters) > 0 && !req.MainOnly {
				req.IncludeMain = true
			}
			for _, n := range req.Chapters {
				if n < 0 {
					return fmt.Errorf("invalid chapter number %d", n)
				}
			}

			report, err := wire.OrderAdapterWithOutput(cmd.OutOrStdout()).Build(commandContext(cmd), req)
			if err != nil {
				return err
			}
			if report.HasFailures() {
				return fmt.Errorf("%d of %d ids failed to resolve", report.Failed, report.Events+report.Chapters)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&req.EventIDs, "event", "e", nil, "Event IDs to build (default: all events)")
	cmd.Flags().IntVarP(&req.Limit, "limit", "n", 0, "Build at most N events, newest first (0 = all)")
	cmd.Flags().BoolVar(&req.IncludeMain, "include-main", false, "Also build main story chapters")
	cmd.Flags().BoolVar(&req.MainOnly, "main-only", false, "Build main story chapters only")
	cmd.Flags().IntSliceVar(&req.Chapters, "main-chapters", nil, "Main story chapters to build (default: all)")
	cmd.Flags().BoolVar(&req.IncludeReplicate, "include-replicate", false, "Include rerun events")
	cmd.MarkFlagsMutuallyExclusive("event", "main-only")

	return cmd
}
